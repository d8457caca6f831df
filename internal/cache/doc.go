// Package cache defines the disk-backed store that materializes artifacts at
// <root>/<segment>/.../<name>. Writes stream into a uniquely named temp file in
// the destination directory and are renamed into place only after the producer
// finished successfully, so the canonical path only ever holds a complete file
// (or the previous one). A failed write removes its temp file and leaves the
// canonical path untouched. The store does not lock: concurrent writers to the
// same locator resolve as last-writer-wins. All filesystem access goes through
// afero so tests can swap in an in-memory filesystem.
package cache

// Package archive opens members of cached archives and decompresses cached
// streams. Every opener takes a callback so the underlying file handles are
// closed on all exit paths, including a failing callback.
package archive

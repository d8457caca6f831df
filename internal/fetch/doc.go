// Package fetch implements the pull-style transfer capability consumed by the
// ensure pipeline. A Registry dispatches a Source to the Fetcher registered for
// its URL scheme (http, https, file, s3, gdrive) and streams the body into the
// destination writer. Every failure is reported as a *TransferError.
package fetch

// Package server hosts the read-only Fiber cache browser started by
// `stow serve`. It exposes the resolved base location, the module directories
// below it and the raw cached files, so a shared cache can be inspected over
// HTTP without shell access to the machine. The app never downloads or
// deletes anything on GET; the only mutating route is the explicit ensure
// endpoint registered by the routes subpackage.
package server

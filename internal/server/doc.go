// Package server hosts the Fiber HTTP service, the request middleware chain,
// and the mount registry that maps URL prefixes onto sandboxed directories.
// Handlers that actually stream bytes live elsewhere and are injected through
// AppOptions.Stream, so keep exports narrow and accept explicit dependencies.
package server

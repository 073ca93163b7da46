// Package stream serves files over HTTP with byte-range support. A Piper
// resolves the file size (memoized), the byte window from the Range header and
// the MIME type from the extension table, then either pipes the window
// straight to the response or hands it to the transforms registered for the
// extension. Handler adapts one Piper per mount to the server package.
package stream

// Package mediatype holds the extension → MIME type table consulted when a file
// is piped to a client. Keys always carry the leading dot (".mp4"). The core
// only reads the table; callers extend it at startup from configuration.
package mediatype

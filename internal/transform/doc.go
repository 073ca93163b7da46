// Package transform holds the per-extension registry of stream transforms.
// A transform receives the raw bytes of the requested file and writes the
// response body itself; every transform registered for an extension runs, in
// registration order, against a shared idempotent Finish.
//
// Built-in transforms live in sub-packages and register a kind from init() so
// configuration can attach them to extensions by name:
//
//	[[Transform]]
//	Extension = ".srt"
//	Kind = "srt-vtt"
package transform

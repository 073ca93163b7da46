// Package cache memoizes file sizes so repeated range requests for the same
// path do not stat the filesystem every time. Entries live for the whole
// process: a file that changes size on disk keeps its old size until caching is
// switched off or the process restarts. The stream pipe depends on this package
// for the total it feeds into range resolution and response headers.
package cache

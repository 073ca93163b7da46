package mediatype

import (
	"sort"
	"strings"
	"sync"
)

// builtin maps file extensions to MIME types served when no override exists.
var builtin = map[string]string{
	// Video
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
	".ogv":  "video/ogg",

	// Audio
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".weba": "audio/webm",

	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",

	// Playlists and subtitles
	".m3u":  "audio/x-mpegurl",
	".m3u8": "application/vnd.apple.mpegurl",
	".mpd":  "application/dash+xml",
	".srt":  "application/x-subrip",
	".vtt":  "text/vtt",

	// Documents
	".txt":  "text/plain",
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".pdf":  "application/pdf",
}

// Table is an extension → MIME type lookup shared by every pipe of a server.
type Table struct {
	mu    sync.RWMutex
	types map[string]string
}

// New returns an empty table.
func New() *Table {
	return &Table{types: make(map[string]string)}
}

// Default returns a table seeded with the built-in extension map.
func Default() *Table {
	t := New()
	for ext, typ := range builtin {
		t.types[ext] = typ
	}
	return t
}

// Lookup returns the MIME type registered for ext. The extension must include
// the leading dot; case is ignored.
func (t *Table) Lookup(ext string) (string, bool) {
	key := normalizeExt(ext)
	if key == "" {
		return "", false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	typ, ok := t.types[key]
	return typ, ok && typ != ""
}

// Set registers or replaces the MIME type for ext.
func (t *Table) Set(ext, typ string) {
	key := normalizeExt(ext)
	if key == "" {
		return
	}

	t.mu.Lock()
	t.types[key] = strings.TrimSpace(typ)
	t.mu.Unlock()
}

// Delete removes ext from the table.
func (t *Table) Delete(ext string) {
	key := normalizeExt(ext)

	t.mu.Lock()
	delete(t.types, key)
	t.mu.Unlock()
}

// Extensions returns the registered extensions in lexical order.
func (t *Table) Extensions() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, len(t.types))
	for key := range t.types {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot copies the table for diagnostics output.
func (t *Table) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]string, len(t.types))
	for key, typ := range t.types {
		out[key] = typ
	}
	return out
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimSpace(ext))
}

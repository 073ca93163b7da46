package transform

import (
	"sort"
	"strings"
	"sync"
)

// Registration identifies one registered transform. Keep it to remove the
// transform later.
type Registration struct {
	ID        uint64
	Extension string

	transform Transform
}

// Registry keeps an ordered list of transforms per file extension.
// Registration order is dispatch order.
type Registry struct {
	mu      sync.RWMutex
	lastID  uint64
	buckets map[string][]*Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{buckets: make(map[string][]*Registration)}
}

// Register appends t to the list for ext and assigns it the next identity.
// It returns nil when ext is empty or t is nil.
func (r *Registry) Register(ext string, t Transform) *Registration {
	key := normalizeKey(ext)
	if key == "" || t == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	reg := &Registration{ID: r.lastID, Extension: key, transform: t}
	r.buckets[key] = append(r.buckets[key], reg)
	return reg
}

// Remove drops the entry matching reg. Other entries keep their relative
// order. Nil or unknown registrations are ignored.
func (r *Registry) Remove(reg *Registration) {
	if reg == nil || reg.ID == 0 || reg.Extension == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.buckets[reg.Extension]
	for i, entry := range bucket {
		if entry.ID != reg.ID {
			continue
		}
		rest := make([]*Registration, 0, len(bucket)-1)
		rest = append(rest, bucket[:i]...)
		rest = append(rest, bucket[i+1:]...)
		if len(rest) == 0 {
			delete(r.buckets, reg.Extension)
		} else {
			r.buckets[reg.Extension] = rest
		}
		return
	}
}

// HandlersFor returns the transforms registered for ext in dispatch order.
func (r *Registry) HandlersFor(ext string) []Transform {
	key := normalizeKey(ext)
	if key == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.buckets[key]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]Transform, len(bucket))
	for i, entry := range bucket {
		out[i] = entry.transform
	}
	return out
}

// Has reports whether ext has at least one transform.
func (r *Registry) Has(ext string) bool {
	key := normalizeKey(ext)

	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.buckets[key]) > 0
}

// Snapshot returns the number of transforms per extension.
func (r *Registry) Snapshot() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.buckets))
	for key, bucket := range r.buckets {
		out[key] = len(bucket)
	}
	return out
}

// Extensions returns the extensions with registered transforms, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.buckets))
	for key := range r.buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

package transform

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// KindFactory builds a fresh transform for a named kind.
type KindFactory func() Transform

// ErrDuplicateKind indicates a kind name already has a factory.
var ErrDuplicateKind = errors.New("transform kind already registered")

var globalKinds = newKindCatalog()

type kindCatalog struct {
	mu        sync.RWMutex
	factories map[string]KindFactory
}

func newKindCatalog() *kindCatalog {
	return &kindCatalog{factories: make(map[string]KindFactory)}
}

// RegisterKind makes a built-in transform available to configuration under kind.
func RegisterKind(kind string, factory KindFactory) error {
	return globalKinds.register(kind, factory)
}

// MustRegisterKind panics on registration failure; meant for init().
func MustRegisterKind(kind string, factory KindFactory) {
	if err := RegisterKind(kind, factory); err != nil {
		panic(err)
	}
}

// LookupKind returns the factory registered for kind.
func LookupKind(kind string) (KindFactory, bool) {
	return globalKinds.lookup(kind)
}

// Kinds returns all registered kind names, sorted.
func Kinds() []string {
	return globalKinds.list()
}

func (c *kindCatalog) register(kind string, factory KindFactory) error {
	key := normalizeKey(kind)
	if key == "" {
		return errors.New("transform kind is required")
	}
	if factory == nil {
		return fmt.Errorf("transform kind %s: factory is nil", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, key)
	}
	c.factories[key] = factory
	return nil
}

func (c *kindCatalog) lookup(kind string) (KindFactory, bool) {
	key := normalizeKey(kind)
	if key == "" {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	factory, ok := c.factories[key]
	return factory, ok
}

func (c *kindCatalog) list() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.factories) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.factories))
	for key := range c.factories {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

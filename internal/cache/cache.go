// Package cache memoises oracle-path results by normalised question text.
//
// Entries live for the life of the process; there is no eviction. The map is
// mutex-guarded so concurrent HTTP handlers can share one cache, but two
// identical questions in flight may both compute.
package cache

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// KeyPrefix namespaces question keys.
const KeyPrefix = "nl2sql:"

// Key normalises a question into a cache key: NFKC, Unicode case folding,
// trimmed, with internal whitespace runs collapsed to one space.
//
// Questions differing only in case, width or spacing share a key.
func Key(question string) string {
	s := norm.NFKC.String(question)
	s = cases.Fold().String(s)
	return KeyPrefix + strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Cache is a process-lifetime map from normalised question to value.
//
// Thread-safety: All methods are safe for concurrent use.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// New creates an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{entries: make(map[string]V)}
}

// Get returns the value stored for question.
func (c *Cache[V]) Get(question string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[Key(question)]
	return v, ok
}

// Put stores v for question, replacing any earlier value.
func (c *Cache[V]) Put(question string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(question)] = v
}

// Len returns the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// GetOrCompute returns the cached value for question, or calls compute and
// stores its value when compute reports it cacheable and returns no error.
// hit reports whether the value came from the cache.
//
// The lock is not held while compute runs.
func (c *Cache[V]) GetOrCompute(question string, compute func() (V, bool, error)) (v V, hit bool, err error) {
	if v, ok := c.Get(question); ok {
		return v, true, nil
	}
	v, cacheable, err := compute()
	if err != nil {
		return v, false, err
	}
	if cacheable {
		c.Put(question, v)
	}
	return v, false, nil
}

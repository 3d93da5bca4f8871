// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package hottoh

import (
	"sync"
	"time"
)

// Reading is one cached telemetry value and when it was received.
type Reading struct {
	Value   any
	Updated time.Time
}

// Snapshot is an immutable copy of the state cache.
type Snapshot map[Attribute]Reading

// Float returns a numeric attribute as float64.
func (s Snapshot) Float(a Attribute) (float64, bool) {
	switch v := s[a].Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Int returns an integer attribute.
func (s Snapshot) Int(a Attribute) (int, bool) {
	v, ok := s[a].Value.(int)
	return v, ok
}

// Bool returns a boolean attribute.
func (s Snapshot) Bool(a Attribute) (bool, bool) {
	v, ok := s[a].Value.(bool)
	return v, ok
}

// String returns a text attribute.
func (s Snapshot) String(a Attribute) (string, bool) {
	v, ok := s[a].Value.(string)
	return v, ok
}

// Cache holds the last-known telemetry. The session's read loop is the only
// writer; any number of goroutines may read. Every update group bumps the
// version and wakes watchers.
type Cache struct {
	mu      sync.RWMutex
	values  map[Attribute]Reading
	version uint64
	changed chan struct{}
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		values:  make(map[Attribute]Reading),
		changed: make(chan struct{}),
	}
}

// Get returns the cached reading for a. It never blocks on I/O.
func (c *Cache) Get(a Attribute) (Reading, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.values[a]
	return r, ok
}

// Snapshot copies the whole cache.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(Snapshot, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Len returns the number of cached attributes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Watch returns the current version and a channel closed on the next update.
func (c *Cache) Watch() (uint64, <-chan struct{}) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version, c.changed
}

// Version returns the number of update groups applied so far.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// apply stores a group of values atomically: readers see all of them or none.
func (c *Cache) apply(update map[Attribute]any, at time.Time) {
	if len(update) == 0 {
		return
	}
	c.mu.Lock()
	for k, v := range update {
		c.values[k] = Reading{Value: v, Updated: at}
	}
	c.version++
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}

package cache

import (
	"sync"
	"time"
)

// Store is the key-value backend contract. Backends are treated as external,
// eventually-consistent services: writes are idempotent overwrites and
// unavailability degrades to a miss, never a request failure.
type Store interface {
	Get(key string) (*Entry, bool)
	Put(key string, entry *Entry, ttl time.Duration) error
	Delete(key string) error
	Close() error
}

// MemoryStore is an in-process Store used in tests and single-node setups
// without persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	entry    Entry
	deadline time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry)}
}

// Get returns a copy of the stored entry, honoring the store-level TTL.
func (m *MemoryStore) Get(key string) (*Entry, bool) {
	m.mu.RLock()
	me, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(me.deadline) {
		_ = m.Delete(key)
		return nil, false
	}
	entry := me.entry
	return &entry, true
}

// Put stores a copy of the entry with the given TTL.
func (m *MemoryStore) Put(key string, entry *Entry, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[key] = memEntry{entry: *entry, deadline: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Delete removes an entry.
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

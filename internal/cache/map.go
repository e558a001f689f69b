package cache

import (
	"sync"
	"sync/atomic"
)

// MapStore is an unbounded Store backed by a map.
type MapStore struct {
	mu      sync.RWMutex
	data    map[string]Entry
	hits    atomic.Uint64
	misses  atomic.Uint64
	written atomic.Uint64
}

// NewMapStore creates an empty map-backed store.
func NewMapStore() *MapStore {
	return &MapStore{data: make(map[string]Entry)}
}

func (m *MapStore) Get(key string) (Entry, bool) {
	m.mu.RLock()
	e, found := m.data[key]
	m.mu.RUnlock()
	if found {
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	return e, found
}

func (m *MapStore) Set(key string, e Entry) {
	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	m.written.Add(1)
}

func (m *MapStore) Delete(key string) {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
}

func (m *MapStore) Clear() {
	m.mu.Lock()
	m.data = make(map[string]Entry)
	m.mu.Unlock()
}

func (m *MapStore) Stats() Stats {
	m.mu.RLock()
	items := int64(len(m.data))
	m.mu.RUnlock()
	return Stats{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		KeysAdded: m.written.Load(),
		Items:     items,
	}
}

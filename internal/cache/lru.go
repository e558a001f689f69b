package cache

import (
	"errors"

	"github.com/dgraph-io/ristretto"
)

// LRUStore is a size-bounded Store backed by ristretto. Each entry costs 1,
// so capacity is counted in entries. Admission is decided by ristretto's
// TinyLFU policy: a write may be dropped when the store is full, which readers
// observe as a plain miss.
type LRUStore struct {
	cache *ristretto.Cache
}

// NewLRU creates a bounded store holding roughly maxEntries entries.
func NewLRU(maxEntries int64) (*LRUStore, error) {
	if maxEntries <= 0 {
		return nil, errors.New("cache: maxEntries must be positive")
	}
	// NumCounters should be ~10x the number of entries for optimal performance
	numCounters := maxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        numCounters,
		MaxCost:            maxEntries,
		BufferItems:        64, // Number of keys per Get buffer
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &LRUStore{cache: c}, nil
}

func (s *LRUStore) Get(key string) (Entry, bool) {
	val, found := s.cache.Get(key)
	if !found {
		return Entry{}, false
	}
	e, ok := val.(Entry)
	if !ok {
		// Invalid item type, delete it
		s.cache.Del(key)
		return Entry{}, false
	}
	return e, true
}

func (s *LRUStore) Set(key string, e Entry) {
	// Set may refuse the item; ristretto handles eviction internally
	_ = s.cache.Set(key, e, 1)
	// Wait for value to pass through buffers so a following Get observes it
	s.cache.Wait()
}

func (s *LRUStore) Delete(key string) {
	s.cache.Del(key)
}

func (s *LRUStore) Clear() {
	s.cache.Clear()
}

func (s *LRUStore) Stats() Stats {
	m := s.cache.Metrics
	items := int64(m.KeysAdded()) - int64(m.KeysEvicted())
	if items < 0 {
		items = 0
	}
	return Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeysAdded: m.KeysAdded(),
		Evictions: m.KeysEvicted(),
		Items:     items, // Approximate: explicit deletes are not subtracted
	}
}

// Close releases the store's background goroutines.
func (s *LRUStore) Close() error {
	s.cache.Close()
	return nil
}

package cache

import "time"

// Entry is one cached result. Entries are replaced wholesale, never mutated in place.
type Entry struct {
	Value    any
	StoredAt time.Time
}

// Age reports how old the entry is at now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// FreshAt reports whether the entry is still within ttl at now.
func (e Entry) FreshAt(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}

// Store holds at most one Entry per key. Implementations must be safe for concurrent use.
// Stores never expire entries on their own; freshness is the reader's decision.
type Store interface {
	// Get returns the entry for key, if present.
	Get(key string) (Entry, bool)

	// Set stores or replaces the entry for key.
	Set(key string, e Entry)

	// Delete removes the entry for key. Deleting a missing key is a no-op.
	Delete(key string)

	// Clear removes all entries.
	Clear()

	// Stats returns store statistics.
	Stats() Stats
}

// Stats represents store statistics.
type Stats struct {
	Hits      uint64 `json:"hits"`      // Total lookups that found an entry
	Misses    uint64 `json:"misses"`    // Total lookups that found nothing
	KeysAdded uint64 `json:"keysAdded"` // Total entries written
	Evictions uint64 `json:"evictions"` // Total entries evicted for capacity
	Items     int64  `json:"items"`     // Current (or approximate) number of entries
}

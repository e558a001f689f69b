package cache

import (
	"testing"
	"time"
)

func newTestLRU(t *testing.T, entries int64) *LRUStore {
	t.Helper()
	s, err := NewLRU(entries)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLRUStore_SetAndGet(t *testing.T) {
	s := newTestLRU(t, 100)

	stored := time.Unix(1000, 0)
	s.Set("story-1", Entry{Value: "the title", StoredAt: stored})

	e, found := s.Get("story-1")
	if !found {
		t.Fatal("Expected to find stored entry")
	}
	if e.Value != "the title" || !e.StoredAt.Equal(stored) {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestLRUStore_GetNonExistent(t *testing.T) {
	s := newTestLRU(t, 100)
	if _, found := s.Get("nonexistent"); found {
		t.Error("Expected not to find nonexistent key")
	}
}

func TestLRUStore_ReplaceWholesale(t *testing.T) {
	s := newTestLRU(t, 100)
	s.Set("k", Entry{Value: 1, StoredAt: time.Unix(1, 0)})
	s.Set("k", Entry{Value: 2, StoredAt: time.Unix(2, 0)})

	e, found := s.Get("k")
	if !found {
		t.Fatal("Expected to find entry")
	}
	if e.Value != 2 || e.StoredAt.Unix() != 2 {
		t.Errorf("expected the second write to win, got %+v", e)
	}
}

func TestLRUStore_Delete(t *testing.T) {
	s := newTestLRU(t, 100)
	s.Set("delete-key", Entry{Value: "v", StoredAt: time.Now()})
	if _, found := s.Get("delete-key"); !found {
		t.Fatal("Expected to find value before delete")
	}

	s.Delete("delete-key")
	if _, found := s.Get("delete-key"); found {
		t.Error("Expected value to be deleted")
	}
}

func TestLRUStore_Clear(t *testing.T) {
	s := newTestLRU(t, 100)
	s.Set("key1", Entry{Value: 1})
	s.Set("key2", Entry{Value: 2})

	s.Clear()

	for _, k := range []string{"key1", "key2"} {
		if _, found := s.Get(k); found {
			t.Errorf("Expected %s to be cleared", k)
		}
	}
}

func TestLRUStore_StatsDoesNotPanic(t *testing.T) {
	s := newTestLRU(t, 100)
	s.Set("key1", Entry{Value: 1})
	s.Get("key1")
	s.Get("missing")

	// ristretto's metrics are updated asynchronously, so only sanity-check them
	stats := s.Stats()
	if stats.Items < 0 {
		t.Errorf("Items should never be negative, got %d", stats.Items)
	}
}

func TestNewLRU_RejectsNonPositive(t *testing.T) {
	if _, err := NewLRU(0); err == nil {
		t.Fatal("expected error for zero capacity")
	}
}

package cache

import (
	"sync"
	"testing"
	"time"
)

func TestMapStore_Basics(t *testing.T) {
	s := NewMapStore()

	if _, found := s.Get("user-1-profile"); found {
		t.Fatal("expected empty store")
	}

	s.Set("user-1-profile", Entry{Value: "reader", StoredAt: time.Unix(10, 0)})
	e, found := s.Get("user-1-profile")
	if !found || e.Value != "reader" {
		t.Fatalf("unexpected lookup result %+v, %v", e, found)
	}

	s.Delete("user-1-profile")
	s.Delete("never-set") // no-op
	if _, found := s.Get("user-1-profile"); found {
		t.Fatal("expected entry to be deleted")
	}

	s.Set("a", Entry{Value: 1})
	s.Set("b", Entry{Value: 2})
	s.Clear()
	if st := s.Stats(); st.Items != 0 {
		t.Fatalf("expected empty store after Clear, got %d items", st.Items)
	}
}

func TestMapStore_Stats(t *testing.T) {
	s := NewMapStore()
	s.Set("a", Entry{Value: 1})
	s.Get("a")
	s.Get("b")

	st := s.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.KeysAdded != 1 || st.Items != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestMapStore_ConcurrentAccess(t *testing.T) {
	s := NewMapStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.Set("k", Entry{Value: j})
				s.Get("k")
			}
		}()
	}
	wg.Wait()
	if _, found := s.Get("k"); !found {
		t.Fatal("expected key to be present")
	}
}

func TestEntryFreshness(t *testing.T) {
	base := time.Unix(0, 0)
	e := Entry{StoredAt: base}
	if !e.FreshAt(base.Add(500*time.Millisecond), time.Second) {
		t.Error("entry should be fresh at 500ms with 1s ttl")
	}
	if e.FreshAt(base.Add(time.Second), time.Second) {
		t.Error("entry must be stale exactly at ttl")
	}
	if e.FreshAt(base.Add(1500*time.Millisecond), time.Second) {
		t.Error("entry should be stale at 1500ms with 1s ttl")
	}
}

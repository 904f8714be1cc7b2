package types

import "time"

// CacheEntry is what the store keeps for a key.
// Entries are replaced, never mutated, once they are visible to readers.
type CacheEntry struct {
	Key      string
	Value    any
	StoredAt time.Time
	TTL      time.Duration
}

// Age returns how long ago the entry was stored or last refreshed.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

/*
Entry is the typed view of a CacheEntry.

The store is shared by every call site, so it keeps values as `any`.
Callers that know what they stored (an avatar URL, a project blob, ...)
get an Entry[T] back from the generic helpers instead of asserting types
themselves.
*/
type Entry[T any] struct {
	Key      string
	Value    T
	StoredAt time.Time
	TTL      time.Duration
}

// Stats is a point-in-time snapshot of the store counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Lookups   uint64
}

// HitRatio returns hits / (hits + misses), or 0 when nothing was recorded.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// This file defines when a cache entry stops being fresh.

package expiration

import (
	"time"

	"github.com/krisalay/warmcache/types"
)

/*
Strategy is the interface that all expiration rules must follow. The store
asks the strategy instead of comparing timestamps itself, so the freshness
rule lives in one place.
*/
type Strategy interface {

	// IsExpired reports whether the entry is stale at `now`.
	IsExpired(*types.CacheEntry, time.Time) bool

	// OnWrite is called whenever an entry is written or refreshed.
	OnWrite(*types.CacheEntry, time.Time)
}

/*
FixedTTL measures freshness from the moment an entry was stored:

	stale  <=>  now - StoredAt > TTL

Reads never extend the window. An entry written with a zero TTL takes
Default instead.
*/
type FixedTTL struct {
	Default time.Duration
}

// IsExpired checks whether the entry is stale at this moment.
func (f FixedTTL) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return now.Sub(ent.StoredAt) > ent.TTL
}

// OnWrite stamps the entry with the write time and fills in the default TTL.
func (f FixedTTL) OnWrite(ent *types.CacheEntry, now time.Time) {
	ent.StoredAt = now
	if ent.TTL <= 0 {
		ent.TTL = f.Default
	}
}

package api

import (
	"context"

	"github.com/krisalay/warmcache/types"
)

/*
Cache defines the PUBLIC API of the cache subsystem.
Screens and the predictive warmer only ever talk to this contract; sharding,
expiration and loader coalescing stay hidden behind it.
*/
type Cache interface {

	/*
		GetOrCompute returns the value for key.

		BEHAVIOR:
		-------------------
		1. If ForceRefresh is false and the stored entry is fresh:
		   - Return it immediately (WasHit = true)

		2. Otherwise:
		   - Run the loader
		   - Store the result with the requested TTL
		   - Return it (WasHit = false)

		3. If the loader fails:
		   - Nothing is written, a previous entry stays untouched
		   - The error matches cache.ErrLoadFailed
	*/
	GetOrCompute(ctx context.Context, key string, loader types.Loader, opts types.Options) (types.Result, error)

	/*
		Invalidate removes key so the next GetOrCompute has to load.
		Used after a mutation makes a cached value obsolete, for example when
		a user uploads a new avatar.

		This operation is idempotent.
	*/
	Invalidate(key string) bool

	/*
		Peek returns whatever is stored for key, stale or not, without loading.
		Callers that prefer an old value over a fallback state after a failed
		load use this.
	*/
	Peek(key string) (types.CacheEntry, bool)

	// Stats returns a snapshot of the hit / miss / eviction counters.
	Stats() types.Stats
}

package types

import (
	"context"
	"time"
)

/*
Loader produces the value for a key when the cache cannot answer.

	1. Orchestrator checks the store → key missing or stale
	2. Orchestrator calls the loader
	3. Loader fetches from the hosted backend (profile, avatar URL, project)
	4. Orchestrator stores the result with its TTL
	5. Orchestrator returns the value

Loaders may run more than once for the same key over the life of the
process, so they must not have side effects that matter for correctness.
*/
type Loader func(ctx context.Context) (any, error)

// Options control a single get-or-compute call.
type Options struct {
	// TTL is the freshness window of the stored entry.
	// Zero means "use the orchestrator default".
	TTL time.Duration

	// ForceRefresh bypasses the freshness check and always loads.
	ForceRefresh bool
}

// Result is what a get-or-compute call returns.
// WasHit reports whether THIS call was served from the cache.
type Result struct {
	Value  any
	WasHit bool
}

// ResultOf is the typed form of Result.
type ResultOf[T any] struct {
	Value  T
	WasHit bool
}

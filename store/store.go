// Package store holds cache entries with a time-to-live.
//
// The store never calls a loader and never returns errors: a missing key
// is a normal answer. Freshness is decided by an expiration.Strategy
// against an injected clock.
package store

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/krisalay/warmcache/expiration"
	"github.com/krisalay/warmcache/types"
)

// DefaultShards is used when no shard count is configured.
const DefaultShards = 16

// Store is the process-wide key → entry mapping plus its counters.
type Store struct {
	shards   []*shard
	selector Selector

	clock      clockwork.Clock
	expiration expiration.Strategy
	metrics    types.Metrics

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	lookups   atomic.Uint64
}

// Option configures a Store.
type Option func(*Store)

// WithShards sets the number of shards. Values below 1 are ignored.
func WithShards(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shards = make([]*shard, n)
		}
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithDefaultTTL sets the TTL used for entries written without one.
func WithDefaultTTL(d time.Duration) Option {
	return func(s *Store) { s.expiration = expiration.FixedTTL{Default: d} }
}

// WithExpiration replaces the freshness rule.
func WithExpiration(e expiration.Strategy) Option {
	return func(s *Store) { s.expiration = e }
}

// WithMetrics sets the metrics sink. Nil keeps the no-op sink.
func WithMetrics(m types.Metrics) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		shards:     make([]*shard, DefaultShards),
		selector:   HashSelector{},
		clock:      clockwork.NewRealClock(),
		expiration: expiration.FixedTTL{},
		metrics:    types.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = newShard()
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	return s.shards[s.selector.Select(key, len(s.shards))]
}

// Get returns the entry for key regardless of staleness.
// The only side effect is bumping the lookup counter.
func (s *Store) Get(key string) (*types.CacheEntry, bool) {
	s.lookups.Add(1)
	return s.shardFor(key).entries.get(key)
}

// Set inserts or overwrites key and resets its storage time to now.
// A nil value is refused: present keys always hold a value.
func (s *Store) Set(key string, value any, ttl time.Duration) bool {
	if value == nil {
		return false
	}

	ent := &types.CacheEntry{
		Key:   key,
		Value: value,
		TTL:   ttl,
	}
	s.expiration.OnWrite(ent, s.clock.Now())

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.entries.put(key, ent)
	return true
}

// Invalidate removes key if present. It is safe to call for absent keys.
func (s *Store) Invalidate(key string) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	removed := sh.entries.remove(key)
	sh.mu.Unlock()

	if removed == 0 {
		return false
	}
	s.evictions.Add(1)
	s.metrics.Eviction()
	return true
}

// IsFresh reports whether key is present and within its TTL.
func (s *Store) IsFresh(key string) bool {
	ent, ok := s.shardFor(key).entries.get(key)
	return ok && !s.expiration.IsExpired(ent, s.clock.Now())
}

// Fresh returns the entry only when it is present and within its TTL.
// It counts as a lookup, like Get.
func (s *Store) Fresh(key string) (*types.CacheEntry, bool) {
	s.lookups.Add(1)
	ent, ok := s.shardFor(key).entries.get(key)
	if !ok || s.expiration.IsExpired(ent, s.clock.Now()) {
		return nil, false
	}
	return ent, true
}

// RecordHit counts a get-or-compute call served from the store.
func (s *Store) RecordHit() {
	s.hits.Add(1)
	s.metrics.Hit()
}

// RecordMiss counts a get-or-compute call that had to load.
func (s *Store) RecordMiss() {
	s.misses.Add(1)
	s.metrics.Miss()
}

// Stats returns a snapshot of the counters.
func (s *Store) Stats() types.Stats {
	return types.Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Lookups:   s.lookups.Load(),
	}
}

// ResetStats zeroes every counter.
func (s *Store) ResetStats() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.evictions.Store(0)
	s.lookups.Store(0)
}

// Len returns the number of entries, stale ones included.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.entries.size()
	}
	return n
}

// Keys returns every stored key in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, s.Len())
	for _, sh := range s.shards {
		for k := range sh.entries.snapshot() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Clock returns the time source the store uses.
func (s *Store) Clock() clockwork.Clock {
	return s.clock
}

// Metrics returns the metrics sink the store reports to.
func (s *Store) Metrics() types.Metrics {
	return s.metrics
}

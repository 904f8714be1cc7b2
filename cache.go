package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/singleflight"

	"github.com/krisalay/warmcache/api"
	"github.com/krisalay/warmcache/store"
	"github.com/krisalay/warmcache/types"
)

// LoaderPolicyType names how concurrent loads of one key are handled.
type LoaderPolicyType string

const (
	// AtLeastOnce lets every concurrent caller run its own loader.
	AtLeastOnce LoaderPolicyType = "at-least-once"

	// SingleFlight makes concurrent callers for the same key share one load.
	SingleFlight LoaderPolicyType = "single-flight"
)

// LoaderPolicy is the policy the Orchestrator implements.
//
// Concurrent GetOrCompute calls for a key that is missing or stale share
// one loader execution. A forced refresh always runs its own loader; when
// several race, the last one to finish wins. Sequential calls never coalesce,
// and a call made after Invalidate never joins a load that started before it.
const LoaderPolicy = SingleFlight

// DefaultTTL is used when neither the call nor the orchestrator sets a TTL.
const DefaultTTL = 5 * time.Minute

/*
Orchestrator is the get-or-compute layer in front of the store.
It is the only component callers use directly and the only error boundary:

- freshness check against the store
- loader execution, coalesced with singleflight
- writing successful results back with their TTL
- hit / miss accounting per call
*/
type Orchestrator struct {
	store      *store.Store
	defaultTTL time.Duration

	// sf prevents concurrent callers from loading the same key twice.
	sf singleflight.Group

	// mu orders load write-backs against Invalidate. inflight holds the
	// loads currently running per key.
	mu       sync.Mutex
	inflight map[string]map[*flight]struct{}
}

// flight is one running loader execution.
type flight struct {
	// invalidated is set when Invalidate ran after the load started; the
	// result is then returned to its callers but not stored.
	invalidated bool
}

var _ api.Cache = (*Orchestrator)(nil)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDefaultTTL sets the TTL used when a call passes none.
func WithDefaultTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.defaultTTL = d
		}
	}
}

// New creates an Orchestrator over st. A nil store gets a fresh one.
func New(st *store.Store, opts ...Option) *Orchestrator {
	if st == nil {
		st = store.New()
	}
	o := &Orchestrator{
		store:      st,
		defaultTTL: DefaultTTL,
		inflight:   make(map[string]map[*flight]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

/*
GetOrCompute returns the value stored for key, running loader when the
entry is missing, stale, or ForceRefresh is set.

If ctx is cancelled while waiting, the caller gets the context error but the
load itself keeps going and its result is still stored, unless the key is
invalidated meanwhile.
*/
func (o *Orchestrator) GetOrCompute(
	ctx context.Context,
	key string,
	loader types.Loader,
	opts types.Options,
) (types.Result, error) {

	if !opts.ForceRefresh {
		if ent, ok := o.store.Fresh(key); ok {
			o.store.RecordHit()
			return types.Result{Value: ent.Value, WasHit: true}, nil
		}
	}

	if loader == nil {
		return types.Result{}, &LoadFailedError{Key: key, Err: errors.New("nil loader")}
	}
	if err := ctx.Err(); err != nil {
		return types.Result{}, &LoadFailedError{Key: key, Err: err}
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = o.defaultTTL
	}

	loadCtx := context.WithoutCancel(ctx)
	var ch <-chan singleflight.Result
	if opts.ForceRefresh {
		forced := make(chan singleflight.Result, 1)
		go func() {
			val, err := o.load(loadCtx, key, loader, ttl)
			forced <- singleflight.Result{Val: val, Err: err}
		}()
		ch = forced
	} else {
		ch = o.sf.DoChan(key, func() (any, error) {
			return o.load(loadCtx, key, loader, ttl)
		})
	}

	select {
	case <-ctx.Done():
		return types.Result{}, &LoadFailedError{Key: key, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return types.Result{}, res.Err
		}
		o.store.RecordMiss()
		return types.Result{Value: res.Val}, nil
	}
}

// load runs the loader once and stores a successful, non-nil result.
func (o *Orchestrator) load(
	ctx context.Context,
	key string,
	loader types.Loader,
	ttl time.Duration,
) (val any, err error) {

	defer func() {
		if r := recover(); r != nil {
			val, err = nil, panicError{value: r}
		}
		if err != nil {
			o.store.Metrics().LoadFailed()
			log.WithField("key", key).WithError(err).Debug("load failed")
			err = &LoadFailedError{Key: key, Err: err}
		}
	}()

	f := o.begin(key)
	defer o.end(key, f)

	val, err = loader(ctx)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case f.invalidated:
		log.WithField("key", key).Debug("key invalidated during load, not caching")
	case !o.store.Set(key, val, ttl):
		log.WithField("key", key).Debug("loader returned nil, not caching")
	}
	return val, nil
}

func (o *Orchestrator) begin(key string) *flight {
	f := &flight{}
	o.mu.Lock()
	defer o.mu.Unlock()
	set, ok := o.inflight[key]
	if !ok {
		set = make(map[*flight]struct{})
		o.inflight[key] = set
	}
	set[f] = struct{}{}
	return f
}

func (o *Orchestrator) end(key string, f *flight) {
	o.mu.Lock()
	defer o.mu.Unlock()
	set := o.inflight[key]
	delete(set, f)
	if len(set) == 0 {
		delete(o.inflight, key)
	}
}

/*
Invalidate removes key from the store.

Loads of key that are still running are detached: their callers still get
the result, but it is not written back, and the next GetOrCompute starts a
new load instead of joining them.
*/
func (o *Orchestrator) Invalidate(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for f := range o.inflight[key] {
		f.invalidated = true
	}
	o.sf.Forget(key)
	return o.store.Invalidate(key)
}

// Peek returns the stored entry for key, stale or not.
func (o *Orchestrator) Peek(key string) (types.CacheEntry, bool) {
	ent, ok := o.store.Get(key)
	if !ok {
		return types.CacheEntry{}, false
	}
	return *ent, true
}

// Stats returns the store counters.
func (o *Orchestrator) Stats() types.Stats {
	return o.store.Stats()
}

// Store returns the underlying store.
func (o *Orchestrator) Store() *store.Store {
	return o.store
}

package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cache "github.com/krisalay/warmcache"
	"github.com/krisalay/warmcache/store"
	"github.com/krisalay/warmcache/types"
)

//
// ================= TEST LOADER =================
//

// countingLoader returns value (or err) and counts how often it ran.
type countingLoader struct {
	calls atomic.Int64
	value any
	err   error
}

func (l *countingLoader) Load(context.Context) (any, error) {
	l.calls.Add(1)
	return l.value, l.err
}

func newTestCache(t *testing.T) (*cache.Orchestrator, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	st := store.New(store.WithClock(clock), store.WithShards(2))
	return cache.New(st), clock
}

var errBackend = errors.New("backend unavailable")

//
// ================= HIT / MISS =================
//

func TestSecondCallIsHit(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(t)
	l := &countingLoader{value: "x"}

	res, err := c.GetOrCompute(ctx, "u", l.Load, types.Options{TTL: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "x", res.Value)
	assert.False(t, res.WasHit)

	clock.Advance(10 * time.Millisecond)

	res, err = c.GetOrCompute(ctx, "u", l.Load, types.Options{TTL: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "x", res.Value)
	assert.True(t, res.WasHit)

	assert.Equal(t, int64(1), l.calls.Load())

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
}

func TestExpiredEntryReloads(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(t)

	c.Store().Set("a", 1, time.Second)

	ent, ok := c.Peek("a")
	require.True(t, ok)
	assert.Equal(t, 1, ent.Value)

	clock.Advance(1500 * time.Millisecond)
	assert.False(t, c.Store().IsFresh("a"))

	l := &countingLoader{value: 2}
	res, err := c.GetOrCompute(ctx, "a", l.Load, types.Options{TTL: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Value)
	assert.False(t, res.WasHit)
	assert.Equal(t, int64(1), l.calls.Load())
}

func TestForceRefreshAlwaysLoads(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	l := &countingLoader{value: "v"}

	for i := 0; i < 3; i++ {
		res, err := c.GetOrCompute(ctx, "k", l.Load, types.Options{TTL: time.Hour, ForceRefresh: true})
		require.NoError(t, err)
		assert.False(t, res.WasHit)
	}
	assert.Equal(t, int64(3), l.calls.Load())
}

func TestInvalidateForcesLoad(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	l := &countingLoader{value: "avatar-v1"}

	_, err := c.GetOrCompute(ctx, "user_avatar:1", l.Load, types.Options{TTL: time.Hour})
	require.NoError(t, err)

	assert.True(t, c.Invalidate("user_avatar:1"))
	assert.False(t, c.Invalidate("user_avatar:1"))

	res, err := c.GetOrCompute(ctx, "user_avatar:1", l.Load, types.Options{TTL: time.Hour})
	require.NoError(t, err)
	assert.False(t, res.WasHit)
	assert.Equal(t, int64(2), l.calls.Load())
}

func TestDefaultTTLApplies(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := cache.New(store.New(store.WithClock(clock)), cache.WithDefaultTTL(time.Minute))
	l := &countingLoader{value: 1}

	_, err := c.GetOrCompute(ctx, "k", l.Load, types.Options{})
	require.NoError(t, err)

	ent, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, time.Minute, ent.TTL)
}

//
// ================= FAILURES =================
//

func TestLoaderFailureKeepsExistingEntry(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(t)

	c.Store().Set("k", "good", time.Second)
	before, ok := c.Peek("k")
	require.True(t, ok)

	clock.Advance(2 * time.Second)

	l := &countingLoader{err: errBackend}
	_, err := c.GetOrCompute(ctx, "k", l.Load, types.Options{TTL: time.Second})
	require.Error(t, err)
	assert.ErrorIs(t, err, cache.ErrLoadFailed)
	assert.ErrorIs(t, err, errBackend)

	var lf *cache.LoadFailedError
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, "k", lf.Key)

	after, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestLoaderFailureOnForcedRefresh(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	c.Store().Set("k", "good", time.Hour)
	before, _ := c.Peek("k")

	l := &countingLoader{err: errBackend}
	_, err := c.GetOrCompute(ctx, "k", l.Load, types.Options{ForceRefresh: true})
	assert.ErrorIs(t, err, cache.ErrLoadFailed)

	after, _ := c.Peek("k")
	assert.Equal(t, before, after)
	assert.Zero(t, c.Stats().Misses)
}

func TestLoaderPanicBecomesLoadFailed(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	_, err := c.GetOrCompute(ctx, "k", func(context.Context) (any, error) {
		panic("boom")
	}, types.Options{})
	assert.ErrorIs(t, err, cache.ErrLoadFailed)
	assert.Contains(t, err.Error(), "boom")

	_, ok := c.Peek("k")
	assert.False(t, ok)
}

func TestNilLoader(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.GetOrCompute(context.Background(), "k", nil, types.Options{})
	assert.ErrorIs(t, err, cache.ErrLoadFailed)
}

func TestNilResultNotCached(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	l := &countingLoader{}

	res, err := c.GetOrCompute(ctx, "k", l.Load, types.Options{TTL: time.Hour})
	require.NoError(t, err)
	assert.Nil(t, res.Value)

	_, err = c.GetOrCompute(ctx, "k", l.Load, types.Options{TTL: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, int64(2), l.calls.Load())
}

func TestCancelledContext(t *testing.T) {
	c, _ := newTestCache(t)
	l := &countingLoader{value: 1}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetOrCompute(ctx, "k", l.Load, types.Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, cache.ErrLoadFailed)
	assert.Zero(t, l.calls.Load())
}

func TestAbandonedCallStillStores(t *testing.T) {
	c, _ := newTestCache(t)

	release := make(chan struct{})
	started := make(chan struct{})
	loader := func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "late", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctx, "k", loader, types.Options{TTL: time.Hour})
		errCh <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		_, ok := c.Peek("k")
		return ok
	}, time.Second, 5*time.Millisecond)
}

//
// ================= CONCURRENCY =================
//

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	assert.Equal(t, cache.SingleFlight, cache.LoaderPolicy)

	c, _ := newTestCache(t)

	var calls atomic.Int64
	gate := make(chan struct{})
	loader := func(context.Context) (any, error) {
		calls.Add(1)
		<-gate
		return "value", nil
	}

	const callers = 10
	var ready, wg sync.WaitGroup
	ready.Add(callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			ready.Done()
			res, err := c.GetOrCompute(context.Background(), "key", loader, types.Options{TTL: time.Minute})
			assert.NoError(t, err)
			assert.Equal(t, "value", res.Value)
		}()
	}

	ready.Wait()
	// let every caller reach the flight before releasing the loader
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	st := c.Stats()
	assert.Equal(t, uint64(callers), st.Hits+st.Misses)
}

func TestInvalidateDetachesRunningLoad(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	gate := make(chan struct{})
	started := make(chan struct{})
	oldLoad := func(context.Context) (any, error) {
		close(started)
		<-gate
		return "old-avatar", nil
	}

	oldRes := make(chan types.Result, 1)
	go func() {
		res, err := c.GetOrCompute(ctx, "user_avatar:1", oldLoad, types.Options{TTL: time.Hour})
		assert.NoError(t, err)
		oldRes <- res
	}()
	<-started

	c.Invalidate("user_avatar:1")

	l := &countingLoader{value: "new-avatar"}
	res, err := c.GetOrCompute(ctx, "user_avatar:1", l.Load, types.Options{TTL: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, "new-avatar", res.Value)
	assert.Equal(t, int64(1), l.calls.Load())

	// the load that started before the invalidation must not be written back
	close(gate)
	assert.Equal(t, "old-avatar", (<-oldRes).Value)

	ent, ok := c.Peek("user_avatar:1")
	require.True(t, ok)
	assert.Equal(t, "new-avatar", ent.Value)
}

func TestConcurrentForcedRefreshesEachLoad(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	gate := make(chan struct{})
	started := make(chan struct{})
	first := func(context.Context) (any, error) {
		close(started)
		<-gate
		return "v1", nil
	}

	firstRes := make(chan types.Result, 1)
	go func() {
		res, err := c.GetOrCompute(ctx, "k", first, types.Options{TTL: time.Hour, ForceRefresh: true})
		assert.NoError(t, err)
		firstRes <- res
	}()
	<-started

	l := &countingLoader{value: "v2"}
	res, err := c.GetOrCompute(ctx, "k", l.Load, types.Options{TTL: time.Hour, ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, "v2", res.Value)
	assert.Equal(t, int64(1), l.calls.Load())

	close(gate)
	assert.Equal(t, "v1", (<-firstRes).Value)
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, cache.Default(), cache.Default())
}

package cache_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	cache "github.com/krisalay/warmcache"
	"github.com/krisalay/warmcache/store"
	"github.com/krisalay/warmcache/types"
)

func newBenchmarkCache() *cache.Orchestrator {
	return cache.New(store.New(store.WithShards(8)), cache.WithDefaultTTL(time.Minute))
}

func constLoader(v any) types.Loader {
	return func(context.Context) (any, error) { return v, nil }
}

//
// ================= SINGLE THREAD BENCH =================
//

func BenchmarkGetOrComputeHit(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache()
	load := constLoader("value")

	c.GetOrCompute(ctx, "key", load, types.Options{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.GetOrCompute(ctx, "key", load, types.Options{})
	}
}

func BenchmarkGetOrComputeMiss(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache()
	load := constLoader("value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.GetOrCompute(ctx, fmt.Sprintf("miss-%d", i), load, types.Options{})
	}
}

//
// ================= PARALLEL BENCH =================
//

func BenchmarkGetOrComputeParallel(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache()

	for i := 0; i < 1000; i++ {
		c.Store().Set(fmt.Sprintf("key-%d", i), i, time.Minute)
	}
	load := constLoader(42)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.GetOrCompute(ctx, "key-42", load, types.Options{})
		}
	})
}

//
// ================= WRITE BENCH =================
//

func BenchmarkStoreSet(b *testing.B) {
	c := newBenchmarkCache()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Store().Set(fmt.Sprintf("key-%d", i%1024), i, time.Minute)
	}
}

//
// ================= HIGH CONCURRENCY =================
//

func BenchmarkHighConcurrency(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache()

	keys := make([]string, 10000)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
		c.Store().Set(keys[i], i, time.Minute)
	}
	load := constLoader(0)

	b.ResetTimer()

	wg := sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < b.N/100; j++ {
				c.GetOrCompute(ctx, keys[j%len(keys)], load, types.Options{})
			}
		}()
	}
	wg.Wait()
}

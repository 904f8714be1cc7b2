package store

import (
	"hash/fnv"
	"sync"
)

/*
A shard is a small, independent piece of the store.
Instead of one big map behind one big lock, keys are spread over several
shards. Each shard:
- Holds some portion of the entries
- Has its own lock for writes

Reads never take the lock.
*/
type shard struct {
	entries *cowMap

	// mu serializes writers on this shard.
	mu sync.Mutex
}

func newShard() *shard {
	return &shard{entries: newCOWMap()}
}

/*
Selector decides which shard should handle a given key.
The store does not care HOW this decision is made.
*/
type Selector interface {
	Select(key string, shards int) int
}

// HashSelector spreads keys with FNV-1a, a fast non-cryptographic hash.
type HashSelector struct{}

func hash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// Select returns the shard index for key.
func (HashSelector) Select(key string, shards int) int {
	return int(hash(key) % uint32(shards))
}

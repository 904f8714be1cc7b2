package store

import (
	"sync/atomic"

	"github.com/krisalay/warmcache/types"
)

/*
This file defines how entries are actually held inside a shard.
- Reads should be very fast
- Reads should NOT require locks
- Writes are less frequent and can afford extra work

To achieve this, we use a technique called: "Copy-On-Write" (COW)
*/

/*
cowMap is a Copy-On-Write map of key → entry.

- Readers always see an immutable snapshot
- Writers create a NEW copy of the map
- The new map replaces the old one atomically

Writers must be serialized by the owning shard's mutex.
*/
type cowMap struct {
	data atomic.Pointer[map[string]*types.CacheEntry]
}

func newCOWMap() *cowMap {
	m := &cowMap{}
	empty := make(map[string]*types.CacheEntry)
	m.data.Store(&empty)
	return m
}

func (m *cowMap) snapshot() map[string]*types.CacheEntry {
	return *m.data.Load()
}

// get retrieves an entry without locking.
func (m *cowMap) get(key string) (*types.CacheEntry, bool) {
	ent, ok := m.snapshot()[key]
	return ent, ok
}

/*
put inserts or replaces an entry.

1. Load the current map
2. Create a NEW map and copy all existing entries
3. Add the new entry
4. Atomically replace the old map
*/
func (m *cowMap) put(key string, ent *types.CacheEntry) {
	old := m.snapshot()

	n := make(map[string]*types.CacheEntry, len(old)+1)
	for k, v := range old {
		n[k] = v
	}
	n[key] = ent

	m.data.Store(&n)
}

// remove deletes the given keys and returns how many were present.
func (m *cowMap) remove(keys ...string) int {
	old := m.snapshot()

	found := 0
	for _, k := range keys {
		if _, ok := old[k]; ok {
			found++
		}
	}
	if found == 0 {
		return 0
	}

	n := make(map[string]*types.CacheEntry, len(old)-found)
	for k, v := range old {
		n[k] = v
	}
	for _, k := range keys {
		delete(n, k)
	}

	m.data.Store(&n)
	return found
}

func (m *cowMap) size() int {
	return len(m.snapshot())
}

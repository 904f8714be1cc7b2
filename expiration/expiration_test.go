package expiration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/krisalay/warmcache/types"
)

func TestFixedTTL(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f := FixedTTL{Default: time.Minute}

	ent := &types.CacheEntry{Key: "a", Value: 1, TTL: time.Second}
	f.OnWrite(ent, now)

	assert.Equal(t, now, ent.StoredAt)
	assert.False(t, f.IsExpired(ent, now))
	assert.False(t, f.IsExpired(ent, now.Add(time.Second)), "boundary is still fresh")
	assert.True(t, f.IsExpired(ent, now.Add(time.Second+time.Millisecond)))
}

func TestFixedTTLDefault(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f := FixedTTL{Default: time.Minute}

	ent := &types.CacheEntry{Key: "a", Value: 1}
	f.OnWrite(ent, now)

	assert.Equal(t, time.Minute, ent.TTL)
	assert.False(t, f.IsExpired(ent, now.Add(59*time.Second)))
	assert.True(t, f.IsExpired(ent, now.Add(61*time.Second)))
}

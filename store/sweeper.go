package store

import (
	"context"
	"time"

	"github.com/apex/log"
)

// Sweep removes every expired entry and returns how many were removed.
// Sweeping only bounds memory; IsFresh never depends on it.
func (s *Store) Sweep() int {
	now := s.clock.Now()
	total := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		var expired []string
		for k, ent := range sh.entries.snapshot() {
			if s.expiration.IsExpired(ent, now) {
				expired = append(expired, k)
			}
		}
		removed := sh.entries.remove(expired...)
		sh.mu.Unlock()

		for i := 0; i < removed; i++ {
			s.evictions.Add(1)
			s.metrics.Eviction()
			s.metrics.Expire()
		}
		total += removed
	}
	return total
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
// The returned channel is closed when the sweeper has stopped.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}

	ticker := s.clock.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if n := s.Sweep(); n > 0 {
					log.WithField("removed", n).Debug("swept expired entries")
				}
			}
		}
	}()
	return done
}

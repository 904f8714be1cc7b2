// Package behavior keeps a short, per-user history of screen visits.
//
// The history only feeds the predictive warmer's ranking. It is bounded both
// by count and by age, and losing entries is harmless.
package behavior

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultMaxEntries = 50
	DefaultRetention  = 7 * 24 * time.Hour
)

// Entry is one screen focus event.
type Entry struct {
	UserID    string
	Route     string
	ProjectID string // empty when the screen is not project scoped
	Timestamp time.Time
}

// Log is an append-only, bounded history per user.
type Log struct {
	mu      sync.RWMutex
	entries map[string][]Entry

	maxEntries int
	retention  time.Duration
	clock      clockwork.Clock
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithMaxEntries caps how many entries are kept per user.
func WithMaxEntries(n int) LogOption {
	return func(l *Log) {
		if n > 0 {
			l.maxEntries = n
		}
	}
}

// WithRetention drops entries older than d.
func WithRetention(d time.Duration) LogOption {
	return func(l *Log) {
		if d > 0 {
			l.retention = d
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c clockwork.Clock) LogOption {
	return func(l *Log) { l.clock = c }
}

// NewLog creates an empty history.
func NewLog(opts ...LogOption) *Log {
	l := &Log{
		entries:    make(map[string][]Entry),
		maxEntries: DefaultMaxEntries,
		retention:  DefaultRetention,
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records e, stamping it with the current time when it has none.
// Entries without a user or route are ignored.
func (l *Log) Append(e Entry) {
	if e.UserID == "" || e.Route == "" {
		return
	}
	now := l.clock.Now()
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	list := append(l.entries[e.UserID], e)
	list = l.prune(list, now)
	l.entries[e.UserID] = list
}

// prune drops entries outside the retention window, then the oldest ones
// beyond the count limit. Entries are kept in append order.
func (l *Log) prune(list []Entry, now time.Time) []Entry {
	cutoff := now.Add(-l.retention)

	start := 0
	for start < len(list) && list[start].Timestamp.Before(cutoff) {
		start++
	}
	if over := len(list) - start - l.maxEntries; over > 0 {
		start += over
	}
	if start == 0 {
		return list
	}

	kept := make([]Entry, len(list)-start)
	copy(kept, list[start:])
	return kept
}

// Recent returns a copy of the user's entries inside the retention window,
// oldest first.
func (l *Log) Recent(userID string) []Entry {
	cutoff := l.clock.Now().Add(-l.retention)

	l.mu.RLock()
	defer l.mu.RUnlock()

	list := l.entries[userID]
	out := make([]Entry, 0, len(list))
	for _, e := range list {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Forget drops everything recorded for a user, e.g. on sign-out.
func (l *Log) Forget(userID string) {
	l.mu.Lock()
	delete(l.entries, userID)
	l.mu.Unlock()
}

// Users returns how many users have history.
func (l *Log) Users() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clock returns the log's time source.
func (l *Log) Clock() clockwork.Clock {
	return l.clock
}

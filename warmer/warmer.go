// Package warmer keeps the cache warm for screens a user is about to open.
//
// Every screen focus is recorded in a short behavior history. From that
// history the warmer plans a ranked list of keys (the user's avatar, the
// projects they keep opening, the screens they visit most) and runs
// get-or-compute for each of them without forcing a refresh, so fresh
// entries are left alone and only missing or stale ones are loaded.
//
// Nothing the warmer does is ever surfaced as a user-facing error.
package warmer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/krisalay/warmcache/api"
	"github.com/krisalay/warmcache/behavior"
	"github.com/krisalay/warmcache/keys"
	"github.com/krisalay/warmcache/types"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultConcurrency = 4
	DefaultMaxProjects = 3
	DefaultMaxRoutes   = 3
	DefaultTTL         = 10 * time.Minute
)

// Report summarizes one warm pass.
type Report struct {
	UserID       string
	Planned      int
	Skipped      int // no loader for the candidate
	Attempted    int
	Loaded       int // missing or stale, loaded now
	AlreadyFresh int
	Failures     []*WarmAttemptFailedError
	Duration     time.Duration
}

// Failed returns how many attempts failed.
func (r Report) Failed() int {
	return len(r.Failures)
}

// Warmer plans and runs warm passes.
type Warmer struct {
	cache    api.Cache
	resolver Resolver
	recorder *behavior.Recorder
	clock    clockwork.Clock
	metrics  types.Metrics

	interval    time.Duration
	concurrency int
	maxProjects int
	maxRoutes   int
	ttl         time.Duration

	mu       sync.Mutex
	sessions map[string]*SyncHandle
}

// Option configures a Warmer.
type Option func(*Warmer)

// WithRecorder sets the behavior recorder. By default the warmer owns one.
func WithRecorder(r *behavior.Recorder) Option {
	return func(w *Warmer) { w.recorder = r }
}

// WithClock replaces the wall clock used for ranking and ticking.
func WithClock(c clockwork.Clock) Option {
	return func(w *Warmer) { w.clock = c }
}

// WithMetrics sets where pass results are reported.
func WithMetrics(m types.Metrics) Option {
	return func(w *Warmer) {
		if m != nil {
			w.metrics = m
		}
	}
}

// WithInterval sets the background sync period.
func WithInterval(d time.Duration) Option {
	return func(w *Warmer) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithConcurrency bounds how many loads one pass runs at once.
func WithConcurrency(n int) Option {
	return func(w *Warmer) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithLimits sets how many projects and routes are planned per pass.
// Negative values are ignored; zero disables that kind.
func WithLimits(projects, routes int) Option {
	return func(w *Warmer) {
		if projects >= 0 {
			w.maxProjects = projects
		}
		if routes >= 0 {
			w.maxRoutes = routes
		}
	}
}

// WithTTL sets the TTL used when the resolver does not choose one.
func WithTTL(d time.Duration) Option {
	return func(w *Warmer) {
		if d > 0 {
			w.ttl = d
		}
	}
}

// New creates a Warmer over c.
func New(c api.Cache, resolver Resolver, opts ...Option) *Warmer {
	w := &Warmer{
		cache:       c,
		resolver:    resolver,
		clock:       clockwork.NewRealClock(),
		metrics:     types.NoopMetrics{},
		interval:    DefaultInterval,
		concurrency: DefaultConcurrency,
		maxProjects: DefaultMaxProjects,
		maxRoutes:   DefaultMaxRoutes,
		ttl:         DefaultTTL,
		sessions:    make(map[string]*SyncHandle),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.recorder == nil {
		w.recorder = behavior.NewRecorder(behavior.NewLog(behavior.WithClock(w.clock)), behavior.DefaultBuffer)
	}
	return w
}

// TrackBehavior records a screen focus. It never blocks and never fails.
func (w *Warmer) TrackBehavior(userID, route, projectID string) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("user", userID).Errorf("track behavior: %v", r)
		}
	}()

	ok := w.recorder.Record(behavior.Entry{
		UserID:    userID,
		Route:     route,
		ProjectID: projectID,
		Timestamp: w.clock.Now(),
	})
	if !ok {
		log.WithFields(log.Fields{"user": userID, "route": route}).Debug("behavior entry dropped")
	}
}

// Plan returns the ranked candidates for a user, without duplicates.
func (w *Warmer) Plan(userID string) []Candidate {
	if userID == "" {
		return nil
	}

	now := w.clock.Now()
	recent := w.recorder.Log().Recent(userID)

	seen := make(map[string]bool)
	var out []Candidate
	add := func(c Candidate) {
		if seen[c.Key] {
			return
		}
		seen[c.Key] = true
		out = append(out, c)
	}

	add(Candidate{Kind: KindAvatar, UserID: userID, ID: userID, Key: keys.UserAvatar(userID)})

	projects := behavior.RankProjects(recent, now)
	for i, id := range behavior.Top(projects, w.maxProjects) {
		score := projects[i].Score
		add(Candidate{Kind: KindProjectDetail, UserID: userID, ID: id, Key: keys.ProjectDetail(id), Score: score})
		add(Candidate{Kind: KindProjectMembers, UserID: userID, ID: id, Key: keys.ProjectMembers(id), Score: score})
	}

	routes := behavior.RankRoutes(recent, now)
	for i, route := range behavior.Top(routes, w.maxRoutes) {
		add(Candidate{Kind: KindRoute, UserID: userID, ID: route, Key: keys.RouteData(userID, route), Score: routes[i].Score})
	}

	return out
}

/*
Warm runs one pass for userID and waits for it.

Every candidate goes through GetOrCompute with ForceRefresh=false. A failing
candidate is logged and reported; the rest of the batch still runs.
*/
func (w *Warmer) Warm(ctx context.Context, userID string) Report {
	start := w.clock.Now()
	report := Report{UserID: userID}

	// make behavior tracked just before this pass visible to the planner
	if err := w.recorder.Flush(ctx); err != nil {
		log.WithError(err).Debug("behavior flush interrupted")
	}

	candidates := w.Plan(userID)
	report.Planned = len(candidates)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(w.concurrency)

	for _, c := range candidates {
		loader, ttl, ok := w.resolver.Resolve(c)
		if !ok || loader == nil {
			report.Skipped++
			continue
		}
		if ttl <= 0 {
			ttl = w.ttl
		}

		g.Go(func() error {
			res, err := w.warmOne(ctx, c.Key, loader, ttl)

			mu.Lock()
			defer mu.Unlock()

			report.Attempted++
			switch {
			case err != nil:
				failure := &WarmAttemptFailedError{UserID: userID, Key: c.Key, Err: err}
				report.Failures = append(report.Failures, failure)
				log.WithFields(log.Fields{
					"user": userID,
					"key":  c.Key,
					"kind": c.Kind.String(),
				}).WithError(err).Warn("warm attempt failed")
			case res.WasHit:
				report.AlreadyFresh++
			default:
				report.Loaded++
			}
			// per-key failures never abort the batch
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = w.clock.Since(start)
	w.metrics.WarmPass(report.Duration, report.Attempted, report.Failed())

	log.WithFields(log.Fields{
		"user":     userID,
		"planned":  report.Planned,
		"loaded":   report.Loaded,
		"fresh":    report.AlreadyFresh,
		"failed":   report.Failed(),
		"skipped":  report.Skipped,
		"duration": report.Duration,
	}).Debug("warm pass finished")

	return report
}

// warmOne isolates a single candidate, including from a panicking cache.
func (w *Warmer) warmOne(
	ctx context.Context,
	key string,
	loader types.Loader,
	ttl time.Duration,
) (res types.Result, err error) {

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while warming: %v", r)
		}
	}()
	return w.cache.GetOrCompute(ctx, key, loader, types.Options{TTL: ttl})
}

/*
WarmDuringIdle starts a pass in the background and returns at once.
The channel receives the pass report and is then closed; callers that do
not care can ignore it.
*/
func (w *Warmer) WarmDuringIdle(ctx context.Context, userID string) <-chan Report {
	out := make(chan Report, 1)
	go func() {
		defer close(out)
		out <- w.Warm(ctx, userID)
	}()
	return out
}

/*
SignOut stops the user's background sync and drops their behavior history,
so nothing is warmed for them until they are tracked again. Cached values
are left in place.
*/
func (w *Warmer) SignOut(ctx context.Context, userID string) {
	w.mu.Lock()
	h, ok := w.sessions[userID]
	w.mu.Unlock()
	if ok {
		h.Cancel()
	}

	// entries still queued would otherwise land after the Forget
	if err := w.recorder.Flush(ctx); err != nil {
		log.WithError(err).Debug("behavior flush interrupted")
	}
	w.recorder.Log().Forget(userID)
	log.WithField("user", userID).Debug("signed out")
}

// Recorder returns the behavior recorder.
func (w *Warmer) Recorder() *behavior.Recorder {
	return w.recorder
}

// Close stops every background sync, waits for running passes and drains
// the behavior recorder.
func (w *Warmer) Close() {
	w.mu.Lock()
	handles := make([]*SyncHandle, 0, len(w.sessions))
	for _, h := range w.sessions {
		handles = append(handles, h)
	}
	w.sessions = make(map[string]*SyncHandle)
	w.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
		h.Wait()
	}
	w.recorder.Close()
}

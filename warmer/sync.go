package warmer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/apex/log"
	"github.com/jonboulle/clockwork"
)

// State is where a background sync session is.
type State int32

const (
	Idle State = iota
	Warming
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Warming:
		return "warming"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

/*
SyncHandle controls one user's background sync.

	Idle -> Warming -> Idle
	Idle -> Stopped            (Cancel)
	Warming -> Stopped         (Cancel during a pass, once the pass ends)

Cancel stops future ticks only. A pass that is already running finishes and
its results are stored.
*/
type SyncHandle struct {
	userID string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	state   atomic.Int32
	running atomic.Bool
	runs    atomic.Uint64
	skipped atomic.Uint64
	last    atomic.Pointer[Report]

	passes sync.WaitGroup
}

// UserID returns the user this session warms for.
func (h *SyncHandle) UserID() string { return h.userID }

// Cancel stops future ticks. It is safe to call more than once.
func (h *SyncHandle) Cancel() { h.cancel() }

// live reports whether the session has been neither cancelled nor stopped.
func (h *SyncHandle) live() bool {
	return h.ctx.Err() == nil && h.State() != Stopped
}

// Done is closed once the ticker loop has exited.
func (h *SyncHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the loop has exited and the last pass has finished.
func (h *SyncHandle) Wait() {
	<-h.done
	h.passes.Wait()
}

// State returns the current session state.
func (h *SyncHandle) State() State { return State(h.state.Load()) }

// Runs returns how many passes have completed.
func (h *SyncHandle) Runs() uint64 { return h.runs.Load() }

// Skipped returns how many ticks were skipped because a pass was running.
func (h *SyncHandle) Skipped() uint64 { return h.skipped.Load() }

// LastReport returns the report of the most recent completed pass.
func (h *SyncHandle) LastReport() (Report, bool) {
	r := h.last.Load()
	if r == nil {
		return Report{}, false
	}
	return *r, true
}

/*
StartBackgroundSync runs a warm pass for userID every interval until the
returned handle is cancelled or ctx ends. Ticks never overlap: a tick that
fires while a pass is running is skipped.

Calling it again for a user whose session is still live returns that session.
Once a session is cancelled, the next call starts a new one.
*/
func (w *Warmer) StartBackgroundSync(ctx context.Context, userID string) *SyncHandle {
	w.mu.Lock()
	defer w.mu.Unlock()

	if h, ok := w.sessions[userID]; ok && h.live() {
		return h
	}

	loopCtx, cancel := context.WithCancel(ctx)
	h := &SyncHandle{
		userID: userID,
		ctx:    loopCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	h.state.Store(int32(Idle))

	ticker := w.clock.NewTicker(w.interval)
	go w.syncLoop(loopCtx, ticker, h)

	w.sessions[userID] = h
	log.WithFields(log.Fields{"user": userID, "interval": w.interval}).Debug("background sync started")
	return h
}

func (w *Warmer) syncLoop(ctx context.Context, ticker clockwork.Ticker, h *SyncHandle) {
	defer close(h.done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.state.Store(int32(Stopped))
			w.dropSession(h)
			log.WithField("user", h.userID).Debug("background sync stopped")
			return

		case <-ticker.Chan():
			if !h.running.CompareAndSwap(false, true) {
				h.skipped.Add(1)
				log.WithField("user", h.userID).Debug("previous pass still running, tick skipped")
				continue
			}
			h.state.Store(int32(Warming))
			h.passes.Add(1)

			// the pass outlives cancellation of the session
			passCtx := context.WithoutCancel(ctx)
			go func() {
				defer h.passes.Done()

				report := w.Warm(passCtx, h.userID)
				h.last.Store(&report)
				h.runs.Add(1)

				h.state.CompareAndSwap(int32(Warming), int32(Idle))
				h.running.Store(false)
			}()
		}
	}
}

// dropSession forgets h unless a newer session has already replaced it.
func (w *Warmer) dropSession(h *SyncHandle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sessions[h.userID] == h {
		delete(w.sessions, h.userID)
	}
}

// Sessions returns how many background sync sessions are running.
func (w *Warmer) Sessions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sessions)
}

package behavior

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the recorder queue size when none is configured.
const DefaultBuffer = 256

// recordReq is one queued append, or a flush barrier when done is set.
type recordReq struct {
	entry Entry
	done  chan struct{}
}

/*
Recorder appends entries to a Log asynchronously.

Screen focus handlers call Record on the UI path, so it must never block:
entries go into a buffered channel and one background worker appends them.
If the queue is full the entry is DROPPED; the history is only a hint.

The queue is never closed. Close signals quit and the worker drains what is
left before it exits.
*/
type Recorder struct {
	log *Log

	// ch holds pending appends and flush barriers.
	ch chan recordReq

	// mu guards closed; it is only ever held for non-blocking work.
	mu     sync.RWMutex
	closed bool

	quit    chan struct{}
	stopped chan struct{}
	dropped atomic.Uint64
}

// NewRecorder starts a recorder writing into log.
func NewRecorder(log *Log, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	r := &Recorder{
		log:     log,
		ch:      make(chan recordReq, buffer),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go r.worker()

	return r
}

// Record queues e. It reports false when e was dropped.
func (r *Recorder) Record(e Entry) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		return false
	}

	select {
	case r.ch <- recordReq{entry: e}:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

// Flush waits until everything queued before the call has been appended.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil
	}

	done := make(chan struct{})
	select {
	case r.ch <- recordReq{done: done}:
	case <-r.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-r.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many entries were discarded.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Log returns the history the recorder writes to.
func (r *Recorder) Log() *Log {
	return r.log
}

func (r *Recorder) worker() {
	defer close(r.stopped)

	for {
		select {
		case req := <-r.ch:
			r.handle(req)
		case <-r.quit:
			for {
				select {
				case req := <-r.ch:
					r.handle(req)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) handle(req recordReq) {
	if req.done != nil {
		close(req.done)
		return
	}
	r.log.Append(req.entry)
}

/*
Close stops accepting entries and waits until the queue is drained.
Calling it more than once is safe.
*/
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.quit)
	}
	r.mu.Unlock()

	<-r.stopped
}

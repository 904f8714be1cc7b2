package cache

import "sync"

var (
	defaultOnce sync.Once
	defaultOrch *Orchestrator
)

// Default returns a process-wide Orchestrator, created on first use.
// Code that needs isolation (tests, separate sessions) should call New instead.
func Default() *Orchestrator {
	defaultOnce.Do(func() {
		defaultOrch = New(nil)
	})
	return defaultOrch
}

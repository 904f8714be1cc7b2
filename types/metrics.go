package types

import "time"

// This file defines how the cache reports what it is doing.

/*
Metrics is an interface that defines what the cache wants to measure.
Each method represents an event in the cache lifecycle. The cache will call these methods whenever something happens.
*/
type Metrics interface {

	// Hit is called when a get-or-compute call is served from a fresh entry.
	Hit()

	// Miss is called when a call had to run the loader and got a value back.
	Miss()

	// Eviction is called when an entry is removed by invalidation or by the sweeper.
	Eviction()

	// Expire is called for every expired entry the sweeper removes.
	Expire()

	// LoadFailed is called when a loader returns an error or panics.
	LoadFailed()

	// WarmPass is called when the warmer finishes a pass for a user.
	WarmPass(d time.Duration, attempted, failed int)
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

Not every user of the cache wants metrics, and we don't want
`if metrics != nil` checks on every code path.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()                             {}
func (NoopMetrics) Miss()                            {}
func (NoopMetrics) Eviction()                        {}
func (NoopMetrics) Expire()                          {}
func (NoopMetrics) LoadFailed()                      {}
func (NoopMetrics) WarmPass(time.Duration, int, int) {}

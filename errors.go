package cache

import (
	"errors"
	"fmt"
)

// ErrLoadFailed matches every error returned for a failed loader.
var ErrLoadFailed = errors.New("cache: load failed")

// LoadFailedError is returned by GetOrCompute when the loader fails.
// Any entry already stored for Key is left as it was.
type LoadFailedError struct {
	Key string
	Err error
}

func (e *LoadFailedError) Error() string {
	return fmt.Sprintf("cache: load failed for key %q: %v", e.Key, e.Err)
}

func (e *LoadFailedError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrLoadFailed) work.
func (e *LoadFailedError) Is(target error) bool {
	return target == ErrLoadFailed
}

// panicError wraps a value recovered from a panicking loader.
type panicError struct {
	value any
}

func (p panicError) Error() string {
	return fmt.Sprintf("loader panicked: %v", p.value)
}

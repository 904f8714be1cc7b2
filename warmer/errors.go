package warmer

import "fmt"

// WarmAttemptFailedError records one candidate that could not be warmed.
// It is logged and reported; it never reaches the UI.
type WarmAttemptFailedError struct {
	UserID string
	Key    string
	Err    error
}

func (e *WarmAttemptFailedError) Error() string {
	return fmt.Sprintf("warm %q for user %s: %v", e.Key, e.UserID, e.Err)
}

func (e *WarmAttemptFailedError) Unwrap() error {
	return e.Err
}

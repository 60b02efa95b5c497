package matching

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrSelfSwipe       = errors.New("cannot swipe on yourself")
	ErrInvalidAction   = errors.New("invalid swipe action")
	ErrProfileNotFound = errors.New("profile not found")
	ErrSwipeExists     = errors.New("swipe already recorded for this pair")
	ErrSwipeNotFound   = errors.New("no swipe recorded for this pair")
	ErrMatchNotFound   = errors.New("no match recorded for this pair")
	ErrAlreadyMatched  = errors.New("pair already has a match")
)

// TransientStoreError wraps a datastore failure that is worth retrying
// (connectivity, timeouts, serialization). Anything else from the store is
// surfaced as-is.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store failure during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	var tse *TransientStoreError
	return errors.As(err, &tse)
}

// RetryConfig bounds the retry loop used around Record and the atomic
// match-insert.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryConfig matches the store timeouts used elsewhere in the service.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond}
}

// withRetry runs op, retrying only transient store failures with exponential
// backoff. The final error is returned once attempts are exhausted or the
// context is done.
func withRetry(ctx context.Context, cfg RetryConfig, op func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.BaseDelay
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err = op()
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		RecordStoreRetry()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

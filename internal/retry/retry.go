// Package retry polls an operation until its result satisfies a predicate.
//
// Polling is bounded: attempt 0 runs immediately, then at most MaxRetries
// further attempts follow, each after Delay. Exhaustion is reported as
// absence plus a single OnGiveUp call, never as an error.
package retry

import (
	"context"
	"time"
)

// Default polling parameters.
const (
	DefaultMaxRetries = 5
	DefaultDelay      = time.Second
)

// Options controls PollUntil.
type Options struct {
	// Label describes the operation; it is passed to OnGiveUp.
	Label string

	// MaxRetries is the number of retries after the first attempt.
	// Negative values are treated as zero.
	MaxRetries int

	// Delay is the wait between attempts. Zero retries immediately.
	Delay time.Duration

	// OnGiveUp, if set, is called exactly once when retries are exhausted.
	OnGiveUp func(label string)
}

// DefaultOptions returns options with 5 retries one second apart.
func DefaultOptions(label string) Options {
	return Options{
		Label:      label,
		MaxRetries: DefaultMaxRetries,
		Delay:      DefaultDelay,
	}
}

// PollUntil runs op until pred accepts its result.
//
// Parameters:
//   - ctx: Cancelling stops polling between attempts
//   - op: The operation; receives ctx
//   - pred: Acceptance test for a result
//   - opts: Retry bounds and give-up notification
//
// Returns:
//   - T: The first accepted result, or the zero value
//   - bool: false when retries ran out or ctx was cancelled; OnGiveUp is
//     only called for the former
func PollUntil[T any](ctx context.Context, op func(context.Context) T, pred func(T) bool, opts Options) (T, bool) {
	var zero T

	maxRetries := max(opts.MaxRetries, 0)

	for retries := 0; ; retries++ {
		result := op(ctx)
		if pred(result) {
			return result, true
		}

		if retries >= maxRetries {
			if ctx.Err() != nil {
				return zero, false
			}
			if opts.OnGiveUp != nil {
				opts.OnGiveUp(opts.Label)
			}
			return zero, false
		}

		if !sleep(ctx, opts.Delay) {
			return zero, false
		}
	}
}

// sleep waits d or until ctx is done; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

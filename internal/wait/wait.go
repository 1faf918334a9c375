// Package wait provides the polling primitives used to drive an asynchronously
// rendering page: hard waits that fail loudly and soft waits that report absence.
package wait

import (
	"context"
	"fmt"
	"time"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 100 * time.Millisecond
)

// Options bound a single wait.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
	// What names the awaited condition in a TimeoutError.
	What string
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.What == "" {
		o.What = "condition"
	}
	return o
}

// Condition is polled until it reports ok. A non-nil error aborts the wait.
type Condition[T any] func(ctx context.Context) (T, bool, error)

// TimeoutError is returned by For when the condition never held.
type TimeoutError struct {
	What  string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %v waiting for %s", e.After, e.What)
}

// For polls cond until it holds and returns its value. Expiry yields a *TimeoutError.
func For[T any](ctx context.Context, cond Condition[T], opts Options) (T, error) {
	opts = opts.withDefaults()
	v, ok, err := poll(ctx, cond, opts)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, &TimeoutError{What: opts.What, After: opts.Timeout}
	}
	return v, nil
}

// Try is the soft variant of For: expiry returns ok=false and no error.
// Cancellation of ctx and condition errors are still reported.
func Try[T any](ctx context.Context, cond Condition[T], opts Options) (T, bool, error) {
	return poll(ctx, cond, opts.withDefaults())
}

// Absent waits until present reports false.
func Absent(ctx context.Context, present func(ctx context.Context) (bool, error), opts Options) error {
	_, err := For(ctx, func(ctx context.Context) (struct{}, bool, error) {
		found, err := present(ctx)
		return struct{}{}, !found, err
	}, opts)
	return err
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func poll[T any](ctx context.Context, cond Condition[T], opts Options) (T, bool, error) {
	var zero T

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		v, ok, err := cond(waitCtx)
		if err != nil {
			// A condition that failed only because our own deadline hit is an expiry, not an error.
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return zero, false, nil
			}
			return zero, false, err
		}
		if ok {
			return v, true, nil
		}

		select {
		case <-ctx.Done():
			return zero, false, ctx.Err()
		case <-waitCtx.Done():
			return zero, false, nil
		case <-ticker.C:
		}
	}
}

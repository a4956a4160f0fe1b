package interact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPollInterval paces predicate evaluation inside a bounded wait.
const DefaultPollInterval = 100 * time.Millisecond

// Condition reports whether the awaited page state holds. A returned error
// ends the wait immediately unless it is wrapped with Transient.
type Condition func(ctx context.Context) (bool, error)

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable: the poll keeps going and remembers err as
// the last observation.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// TimeoutError is returned by Poll when the condition never held.
type TimeoutError struct {
	Timeout  time.Duration
	Attempts int
	Last     error // last transient error, if any
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("condition not met within %s (%d attempts)", e.Timeout, e.Attempts)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Last }

// Poll evaluates cond until it holds, it returns a non-transient error, or
// timeout elapses. The condition is evaluated at least once, and once more
// at the deadline with a single interval of grace for the final attempt.
// Cancellation of ctx by the caller ends the wait the same way as the deadline.
func Poll(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	var last error
	attempts := 0

	check := func(ctx context.Context) (bool, error) {
		attempts++
		ok, err := cond(ctx)
		if err == nil {
			return ok, nil
		}
		var transient *transientError
		if errors.As(err, &transient) {
			last = transient.err
			return false, nil
		}
		return false, err
	}

	for {
		if err := limiter.Wait(waitCtx); err != nil {
			// The next attempt would land past the deadline.
			<-waitCtx.Done()
			break
		}
		ok, err := check(waitCtx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}

	if ctx.Err() == nil {
		finalCtx, cancelFinal := context.WithTimeout(ctx, interval)
		ok, err := check(finalCtx)
		cancelFinal()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	} else if last == nil {
		last = ctx.Err()
	}

	return &TimeoutError{Timeout: timeout, Attempts: attempts, Last: last}
}

// remaining returns the time left before ctx's deadline, or fallback when ctx
// has no deadline.
func remaining(ctx context.Context, fallback time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return fallback
	}
	left := time.Until(deadline)
	if left < 0 {
		return 0
	}
	return left
}

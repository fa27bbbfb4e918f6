package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy bounds how a job talks to a flaky dependency: how many attempts, how
// long to wait between them and how long one attempt may run.
type Policy struct {
	Name        string
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration
	// Retryable decides whether a failed attempt is worth repeating. A nil func
	// retries nothing.
	Retryable func(error) bool
}

// Budget is the worst-case wall time of a policy run.
func (p Policy) Budget() time.Duration {
	if p.MaxAttempts <= 0 {
		return 0
	}
	return time.Duration(p.MaxAttempts)*p.Timeout + time.Duration(p.MaxAttempts-1)*p.Backoff
}

func (p Policy) validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("policy %s: max attempts must be at least 1", p.Name)
	}
	if p.Backoff <= 0 {
		return fmt.Errorf("policy %s: backoff must be positive", p.Name)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("policy %s: timeout must be positive", p.Name)
	}
	return nil
}

// ErrAttemptTimeout marks an attempt abandoned after its per-attempt deadline.
var ErrAttemptTimeout = errors.New("attempt timed out")

type timeoutError struct {
	attempt int
	after   time.Duration
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("attempt %d timed out after %s", e.attempt, e.after)
}

func (e *timeoutError) Is(target error) bool {
	return target == ErrAttemptTimeout || target == context.DeadlineExceeded
}

// Report describes how a run ended. Err is the last attempt's error, nil on success.
type Report struct {
	Attempts int
	Err      error
}

func (r Report) Succeeded() bool { return r.Err == nil }

// AttemptFunc is one unit of work. attempt starts at 1.
type AttemptFunc[T any] func(ctx context.Context, attempt int) (T, error)

// NotifyFunc is called after every failed attempt; retrying tells whether
// another attempt follows.
type NotifyFunc func(attempt int, err error, retrying bool)

// Do runs fn under p. Each attempt gets its own deadline; an attempt that
// ignores its context is abandoned once the deadline passes and counted as a
// timeout. The abandoned call keeps running in the background until it returns.
func Do[T any](ctx context.Context, p Policy, fn AttemptFunc[T], notify NotifyFunc) (T, Report) {
	var (
		zero   T
		result T
		report Report
	)

	if err := p.validate(); err != nil {
		report.Err = err
		return zero, report
	}

	backoff := goretry.WithMaxRetries(uint64(p.MaxAttempts-1), goretry.NewConstant(p.Backoff))

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		report.Attempts++
		attempt := report.Attempts

		v, err := runAttempt(ctx, p.Timeout, attempt, fn)
		if err == nil {
			result = v
			return nil
		}

		retrying := attempt < p.MaxAttempts && p.Retryable != nil && p.Retryable(err)
		if notify != nil {
			notify(attempt, err, retrying)
		}
		if retrying {
			return goretry.RetryableError(err)
		}
		return err
	})

	report.Err = err
	if err != nil {
		return zero, report
	}
	return result, report
}

type attemptResult[T any] struct {
	value T
	err   error
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, attempt int, fn AttemptFunc[T]) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan attemptResult[T], 1)
	go func() {
		v, err := fn(attemptCtx, attempt)
		done <- attemptResult[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return r.value, fmt.Errorf("%w: %v", &timeoutError{attempt: attempt, after: timeout}, r.err)
		}
		return r.value, r.err
	case <-attemptCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, &timeoutError{attempt: attempt, after: timeout}
	}
}

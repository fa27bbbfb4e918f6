package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func testPolicy(attempts int) Policy {
	return Policy{
		Name:        "test",
		MaxAttempts: attempts,
		Backoff:     time.Millisecond,
		Timeout:     time.Second,
		Retryable:   func(err error) bool { return errors.Is(err, errFlaky) || errors.Is(err, ErrAttemptTimeout) },
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	var notified []int
	v, report := Do(context.Background(), testPolicy(3), func(ctx context.Context, attempt int) (string, error) {
		if attempt < 3 {
			return "", errFlaky
		}
		return "done", nil
	}, func(attempt int, err error, retrying bool) {
		notified = append(notified, attempt)
		assert.True(t, retrying)
	})

	require.NoError(t, report.Err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, "done", v)
	assert.Equal(t, 3, report.Attempts)
	assert.Equal(t, []int{1, 2}, notified)
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	_, report := Do(context.Background(), testPolicy(3), func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errFlaky
	}, nil)

	assert.ErrorIs(t, report.Err, errFlaky)
	assert.Equal(t, 3, report.Attempts)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("rejected")
	var lastRetrying = true
	_, report := Do(context.Background(), testPolicy(3), func(ctx context.Context, attempt int) (int, error) {
		return 0, fatal
	}, func(attempt int, err error, retrying bool) {
		lastRetrying = retrying
	})

	assert.ErrorIs(t, report.Err, fatal)
	assert.Equal(t, 1, report.Attempts)
	assert.False(t, lastRetrying)
}

func TestDoAbandonsAttemptPastTimeout(t *testing.T) {
	p := testPolicy(2)
	p.Timeout = 20 * time.Millisecond

	release := make(chan struct{})
	defer close(release)

	v, report := Do(context.Background(), p, func(ctx context.Context, attempt int) (int, error) {
		if attempt == 1 {
			// ignores ctx on purpose
			<-release
			return 0, nil
		}
		return 7, nil
	}, nil)

	require.NoError(t, report.Err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, report.Attempts)
}

func TestDoTimeoutIsReported(t *testing.T) {
	p := testPolicy(1)
	p.Timeout = 10 * time.Millisecond

	_, report := Do(context.Background(), p, func(ctx context.Context, attempt int) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, nil)

	assert.ErrorIs(t, report.Err, ErrAttemptTimeout)
	assert.ErrorIs(t, report.Err, context.DeadlineExceeded)
}

func TestDoRejectsInvalidPolicy(t *testing.T) {
	_, report := Do(context.Background(), Policy{Name: "bad"}, func(ctx context.Context, attempt int) (int, error) {
		t.Fatal("should not run")
		return 0, nil
	}, nil)
	assert.Error(t, report.Err)
	assert.Equal(t, 0, report.Attempts)
}

func TestPolicyBudget(t *testing.T) {
	p := Policy{MaxAttempts: 3, Backoff: 120 * time.Second, Timeout: 600 * time.Second}
	assert.Equal(t, 34*time.Minute, p.Budget())
}

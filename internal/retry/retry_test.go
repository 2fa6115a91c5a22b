package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()

	var slept []time.Duration
	orig := Sleep
	Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	t.Cleanup(func() { Sleep = orig })
	return &slept
}

func TestSucceedsFirstTry(t *testing.T) {
	slept := stubSleep(t)

	calls := 0
	err := Do(context.Background(), 3, time.Second, nil, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestDoublingBackoff(t *testing.T) {
	slept := stubSleep(t)

	fail := errors.New("transient")
	calls := 0
	err := Do(context.Background(), 4, time.Second, func(error) bool { return true }, func(context.Context) error {
		calls++
		return fail
	})

	assert.ErrorIs(t, err, fail)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, *slept)
}

func TestNonRetryableStopsImmediately(t *testing.T) {
	slept := stubSleep(t)

	fatal := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), 5, time.Second, func(error) bool { return false }, func(context.Context) error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestRecoversMidway(t *testing.T) {
	slept := stubSleep(t)

	calls := 0
	err := Do(context.Background(), 3, time.Second, func(error) bool { return true }, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestContextCanceledDuringSleep(t *testing.T) {
	orig := Sleep
	Sleep = sleepCtx
	t.Cleanup(func() { Sleep = orig })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, 3, time.Hour, func(error) bool { return true }, func(context.Context) error {
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

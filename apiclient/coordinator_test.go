package apiclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_JoinersShareOneFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := newCoordinator(func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "T2", nil
	}, time.Second)

	const n = 16
	var started, wg sync.WaitGroup
	tokens := make([]string, n)
	started.Add(n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			started.Done()
			tok, err := c.AcquireOrAwait(context.Background())
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}

	started.Wait()
	require.Eventually(t, c.InFlight, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 1, c.Flights())
	for i, tok := range tokens {
		assert.Equal(t, "T2", tok, "waiter %d", i)
	}
	assert.False(t, c.InFlight())
}

func TestCoordinator_FailureWrapsAndNotifiesOnce(t *testing.T) {
	cause := errors.New("boom")
	var failures atomic.Int32

	c := newCoordinator(func(ctx context.Context) (string, error) {
		return "", cause
	}, time.Second)
	c.onFailure = func(err error) { failures.Add(1) }

	_, err := c.AcquireOrAwait(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.ErrorIs(t, err, cause)
	assert.EqualValues(t, 1, failures.Load())
}

func TestCoordinator_NewFlightAfterCompletion(t *testing.T) {
	var calls atomic.Int32
	c := newCoordinator(func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "T", nil
	}, time.Second)

	for i := 0; i < 3; i++ {
		_, err := c.AcquireOrAwait(context.Background())
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, calls.Load(), "sequential refreshes are separate flights")
}

func TestCoordinator_RefreshContextHasDeadline(t *testing.T) {
	c := newCoordinator(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, 20*time.Millisecond)

	_, err := c.AcquireOrAwait(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrRefreshFailed)
}

func TestCoordinator_HooksOnSuccess(t *testing.T) {
	var started, succeeded atomic.Bool
	c := newCoordinator(func(ctx context.Context) (string, error) {
		return "T", nil
	}, 0)
	c.onStart = func() { started.Store(true) }
	c.onSuccess = func() { succeeded.Store(true) }

	_, err := c.AcquireOrAwait(context.Background())
	require.NoError(t, err)
	assert.True(t, started.Load())
	assert.True(t, succeeded.Load())
	assert.Equal(t, DefaultRefreshTimeout, c.timeout)
}

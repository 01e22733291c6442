package apiclient

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultRefreshTimeout bounds a single refresh call. A hung refresh fails
// every waiter when it expires instead of stalling them forever.
const DefaultRefreshTimeout = 10 * time.Second

const refreshKey = "refresh"

// refreshFunc performs the refresh network call and stores its result.
type refreshFunc func(ctx context.Context) (string, error)

// coordinator guarantees at most one refresh call in flight per Client.
// The first caller to need a token starts the refresh; callers arriving
// while it runs wait on the same flight and share its outcome, success or
// failure.
type coordinator struct {
	group      singleflight.Group
	refreshing atomic.Bool
	flights    atomic.Int64

	refresh refreshFunc
	timeout time.Duration

	onStart   func()
	onSuccess func()
	onFailure func(error)
}

func newCoordinator(refresh refreshFunc, timeout time.Duration) *coordinator {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	return &coordinator{refresh: refresh, timeout: timeout}
}

// AcquireOrAwait returns a fresh access token, starting a refresh if none
// is running or joining the running one. If ctx ends first the caller stops
// waiting; the shared refresh keeps going for the others.
func (c *coordinator) AcquireOrAwait(ctx context.Context) (string, error) {
	ch := c.group.DoChan(refreshKey, c.run)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// InFlight reports whether a refresh is currently running.
func (c *coordinator) InFlight() bool {
	return c.refreshing.Load()
}

// Flights returns how many refresh calls have been started.
func (c *coordinator) Flights() int64 {
	return c.flights.Load()
}

// run is executed by singleflight exactly once per flight. It is detached
// from the context of whichever caller happened to start it.
func (c *coordinator) run() (any, error) {
	c.refreshing.Store(true)
	defer c.refreshing.Store(false)
	c.flights.Add(1)

	if c.onStart != nil {
		c.onStart()
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	token, err := c.refresh(ctx)
	if err != nil {
		var re *RefreshError
		if !errors.As(err, &re) {
			err = &RefreshError{Err: err}
		}
		if c.onFailure != nil {
			c.onFailure(err)
		}
		return "", err
	}

	if c.onSuccess != nil {
		c.onSuccess()
	}
	return token, nil
}

package auth

import (
	"context"
	"errors"
	"sync"
)

// errNoRefresh is returned by Wait when no refresh round has ever run.
var errNoRefresh = errors.New("no token refresh in progress")

// RefreshCoordinator makes concurrent refresh attempts share one round.
// The first caller of Begin becomes the leader and performs the refresh;
// everyone else Waits for the leader's Complete.
type RefreshCoordinator struct {
	mu      sync.Mutex
	current *refreshRound
	last    *refreshRound
}

type refreshRound struct {
	done  chan struct{}
	token string
	err   error
}

// NewRefreshCoordinator returns an idle coordinator.
func NewRefreshCoordinator() *RefreshCoordinator {
	return &RefreshCoordinator{}
}

// Begin starts a refresh round if none is running. It reports whether the
// caller is the leader and must call Complete.
func (c *RefreshCoordinator) Begin() (leader bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return false
	}
	c.current = &refreshRound{done: make(chan struct{})}
	return true
}

// Wait blocks until the running round completes and returns its outcome.
// If the round already finished, the most recent outcome is returned.
func (c *RefreshCoordinator) Wait(ctx context.Context) (string, error) {
	c.mu.Lock()
	round := c.current
	if round == nil {
		round = c.last
	}
	c.mu.Unlock()

	if round == nil {
		return "", errNoRefresh
	}

	select {
	case <-round.done:
		return round.token, round.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Complete publishes the leader's outcome and releases all waiters.
func (c *RefreshCoordinator) Complete(token string, err error) {
	c.mu.Lock()
	round := c.current
	c.current = nil
	if round != nil {
		round.token, round.err = token, err
		c.last = round
	}
	c.mu.Unlock()

	if round != nil {
		close(round.done)
	}
}

// Run performs fn as leader or waits for the current leader.
func (c *RefreshCoordinator) Run(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	if !c.Begin() {
		return c.Wait(ctx)
	}
	token, err := fn(ctx)
	c.Complete(token, err)
	return token, err
}

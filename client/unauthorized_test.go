package client

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

type failingNotifier struct {
	calls atomic.Int32
}

func (n *failingNotifier) Notify(ctx context.Context, _ Notification) error {
	n.calls.Add(1)
	return errors.New("toast service down")
}

func TestUnauthorizedHandler_ClearsNotifiesNavigates(t *testing.T) {
	ctx := context.Background()
	sessions, clock := newTestSessions(t)
	loginTestSession(t, sessions, clock)

	notifier := &recordingNotifier{}
	navigator := &recordingNavigator{}
	h := NewUnauthorizedHandler(sessions, notifier, navigator,
		WithCooldown(10*time.Millisecond),
		WithLoginRoute("/auth/sign-in"))

	h.Handle(ctx)

	assert.False(t, sessions.IsValid(ctx))
	assert.Equal(t, int32(1), notifier.count.Load())
	assert.Equal(t, int32(1), navigator.count.Load())
	assert.Equal(t, "/auth/sign-in", navigator.last.Load())
}

func TestUnauthorizedHandler_ConcurrentTriggersCollapse(t *testing.T) {
	ctx := context.Background()
	sessions, clock := newTestSessions(t)
	loginTestSession(t, sessions, clock)

	notifier := &recordingNotifier{}
	navigator := &recordingNavigator{}
	h := NewUnauthorizedHandler(sessions, notifier, navigator,
		WithCooldown(time.Second))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Handle(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), notifier.count.Load())
	assert.Equal(t, int32(1), navigator.count.Load())
}

func TestUnauthorizedHandler_GuardReleasesAfterCooldown(t *testing.T) {
	ctx := context.Background()
	sessions, clock := newTestSessions(t)

	notifier := &recordingNotifier{}
	h := NewUnauthorizedHandler(sessions, notifier, nil,
		WithCooldown(20*time.Millisecond))

	loginTestSession(t, sessions, clock)
	h.Handle(ctx)
	assert.Equal(t, int32(1), notifier.count.Load())

	// Within the cooldown a second trigger is dropped.
	h.Handle(ctx)
	assert.Equal(t, int32(1), notifier.count.Load())

	// A genuinely new episode after the cooldown is handled independently.
	require.Eventually(t, func() bool {
		h.Handle(ctx)
		return notifier.count.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestUnauthorizedHandler_NotifierFailureStillNavigates(t *testing.T) {
	ctx := context.Background()
	sessions, clock := newTestSessions(t)
	loginTestSession(t, sessions, clock)

	notifier := &failingNotifier{}
	navigator := &recordingNavigator{}
	h := NewUnauthorizedHandler(sessions, notifier, navigator,
		WithCooldown(10*time.Millisecond))

	h.Handle(ctx)

	// Clearing already happened and navigation still ran.
	assert.False(t, sessions.IsValid(ctx))
	assert.Equal(t, int32(1), navigator.count.Load())
}

func TestUnauthorizedHandler_NilCollaborators(t *testing.T) {
	ctx := context.Background()
	sessions, clock := newTestSessions(t)
	loginTestSession(t, sessions, clock)

	h := NewUnauthorizedHandler(sessions, nil, nil, WithCooldown(10*time.Millisecond))
	h.Handle(ctx)

	assert.False(t, sessions.IsValid(ctx))
}

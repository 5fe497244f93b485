package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradewire/kvstore"
	"github.com/quantfold/tradewire/kvstore/memory"
)

// fakeClock is a settable time source for driving the sliding window.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*Store, *fakeClock, kvstore.Store) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	kv := memory.New()
	store := NewStore(kv,
		WithPolicy(NewExpiryPolicy(19*time.Minute)),
		WithClock(clock.Now),
	)
	return store, clock, kv
}

func testUser() User {
	return User{
		ID:          "u-1",
		DisplayName: "Ada Example",
		Email:       "ada@example.com",
		Username:    "ada",
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, clock, _ := newTestStore(t)

	saved, err := store.Save(ctx, testUser(), "tok-abc", clock.now.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, clock.now, saved.LoginTime)
	assert.Equal(t, clock.now.Add(19*time.Minute), saved.ExtendedExpiry)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "tok-abc", loaded.Token)
	assert.Equal(t, testUser(), loaded.User)
	assert.Equal(t, loaded.LoginTime.Add(19*time.Minute), loaded.ExtendedExpiry)
}

func TestStore_LoadMissingIsNotAnError(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	rec, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_LoadExpiredClearsStorage(t *testing.T) {
	ctx := context.Background()
	store, clock, kv := newTestStore(t)

	_, err := store.Save(ctx, testUser(), "tok-abc", clock.now.Add(20*time.Minute))
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)

	rec, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Lazy sweep removed the record from storage too.
	_, err = kv.Get(ctx, "session_token")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestStore_IsValidDoesNotMutateStorage(t *testing.T) {
	ctx := context.Background()
	store, clock, kv := newTestStore(t)

	_, err := store.Save(ctx, testUser(), "tok-abc", clock.now.Add(20*time.Minute))
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	assert.False(t, store.IsValid(ctx))

	// Unlike Load, the expired record is still in storage.
	v, err := kv.Get(ctx, "session_token")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", v)
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, clock, _ := newTestStore(t)

	require.NoError(t, store.Clear(ctx))
	assert.False(t, store.IsValid(ctx))
	assert.Empty(t, store.Token())

	_, err := store.Save(ctx, testUser(), "tok-abc", clock.now.Add(20*time.Minute))
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	assert.False(t, store.IsValid(ctx))
	assert.Empty(t, store.Token())
	_, ok := store.CurrentUser()
	assert.False(t, ok)
}

func TestStore_ExtendPushesExpiryForward(t *testing.T) {
	ctx := context.Background()
	store, clock, _ := newTestStore(t)

	_, err := store.Save(ctx, testUser(), "tok-abc", clock.now.Add(20*time.Minute))
	require.NoError(t, err)

	clock.Advance(18 * time.Minute)
	require.NoError(t, store.Extend(ctx))

	rec, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, clock.now.Add(19*time.Minute), rec.ExtendedExpiry)
	assert.Equal(t, clock.now, rec.LastCallTime)
}

func TestStore_ExtendNeverMovesBackward(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	kv := memory.New()
	store := NewStore(kv,
		WithPolicy(NewExpiryPolicy(time.Hour)),
		WithClock(clock.Now),
	)

	_, err := store.Save(ctx, testUser(), "tok-abc", clock.now.Add(time.Hour))
	require.NoError(t, err)
	first, err := store.Load(ctx)
	require.NoError(t, err)

	// A clock that went backwards must not shrink the expiry.
	clock.now = clock.now.Add(-30 * time.Minute)
	require.NoError(t, store.Extend(ctx))

	rec, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.ExtendedExpiry.Before(first.ExtendedExpiry))
}

func TestStore_ExtendWithoutSession(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	err := store.Extend(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestStore_SlidingWindowSequence(t *testing.T) {
	ctx := context.Background()
	store, clock, _ := newTestStore(t)
	t0 := clock.now

	_, err := store.Save(ctx, testUser(), "tok-abc", t0.Add(20*time.Minute))
	require.NoError(t, err)

	// Successful calls at t=5, t=10, t=18; each sets expiry to call+19m.
	for _, at := range []time.Duration{5 * time.Minute, 10 * time.Minute, 18 * time.Minute} {
		clock.now = t0.Add(at)
		require.NoError(t, store.Extend(ctx))

		rec, err := store.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, t0.Add(at+19*time.Minute), rec.ExtendedExpiry)
	}

	// Valid at t=36 (expiry is 18+19=37), gone at t=38.
	clock.now = t0.Add(36 * time.Minute)
	assert.True(t, store.IsValid(ctx))
	clock.now = t0.Add(38 * time.Minute)
	assert.False(t, store.IsValid(ctx))
}

func TestStore_LegacyRecordFallsBackToOriginalExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	kv := memory.New()
	store := NewStore(kv,
		WithPolicy(NewExpiryPolicy(19*time.Minute)),
		WithClock(clock.Now),
	)

	// A record written before the sliding window existed: token plus
	// original expiry only.
	original := clock.now.Add(30 * time.Minute)
	require.NoError(t, kv.MultiSet(ctx, []kvstore.Pair{
		{Key: "session_token", Value: "legacy-tok"},
		{Key: "session_user", Value: `{"id":"u-legacy"}`},
		{Key: "session_original_expiry", Value: original.Format(time.RFC3339Nano)},
	}))

	rec, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, original, rec.ExtendedExpiry)

	// The next successful call persists a fresh extended expiry.
	require.NoError(t, store.Extend(ctx))
	raw, err := kv.Get(ctx, "session_extended_expiry")
	require.NoError(t, err)
	stored, err := time.Parse(time.RFC3339Nano, raw)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(19*time.Minute), stored)
}

func TestStore_NewLoginSupersedesPrevious(t *testing.T) {
	ctx := context.Background()
	store, clock, _ := newTestStore(t)

	_, err := store.Save(ctx, testUser(), "tok-old", clock.now.Add(20*time.Minute))
	require.NoError(t, err)

	other := User{ID: "u-2", Username: "grace"}
	_, err = store.Save(ctx, other, "tok-new", clock.now.Add(20*time.Minute))
	require.NoError(t, err)

	rec, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "tok-new", rec.Token)
	assert.Equal(t, "u-2", rec.User.ID)
}

func TestStore_TokenAndUserTrackCache(t *testing.T) {
	ctx := context.Background()
	store, clock, _ := newTestStore(t)

	assert.Empty(t, store.Token())

	_, err := store.Save(ctx, testUser(), "tok-abc", clock.now.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", store.Token())

	u, ok := store.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "u-1", u.ID)

	require.NoError(t, store.Clear(ctx))
	assert.Empty(t, store.Token())
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quantfold/tradewire/kvstore"
)

// Store owns the persisted session record. It is the sole writer of session
// keys to the backing kvstore.Store; every other component mutates the
// session only through its methods.
//
// The Store keeps an in-memory copy of the record so Token and CurrentUser
// are cheap and consistent with the last Load or Save. A single-user client
// drives it, so last-writer-wins is acceptable for concurrent extensions.
type Store struct {
	kv     kvstore.Store
	policy ExpiryPolicy
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	cached *Record
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPolicy sets the sliding-expiry policy.
func WithPolicy(policy ExpiryPolicy) StoreOption {
	return func(s *Store) {
		s.policy = policy
	}
}

// WithClock sets the time source (primarily for testing).
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a session store backed by the given kvstore.
func NewStore(kv kvstore.Store, opts ...StoreOption) *Store {
	s := &Store{
		kv:     kv,
		policy: NewExpiryPolicy(0),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the store's sliding-expiry policy.
func (s *Store) Policy() ExpiryPolicy {
	return s.policy
}

// Save creates a new session record, superseding any previous one. Login
// time is now, extended expiry is now + window. The full record is written
// as one atomic multi-key set.
func (s *Store) Save(ctx context.Context, user User, token string, originalExpiry time.Time) (*Record, error) {
	now := s.now()
	rec := &Record{
		Token:          token,
		User:           user,
		OriginalExpiry: originalExpiry,
		ExtendedExpiry: s.policy.InitialExpiry(now),
		LoginTime:      now,
		LastCallTime:   now,
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encoding session user: %w", err)
	}

	pairs := []kvstore.Pair{
		{Key: keyToken, Value: token},
		{Key: keyUser, Value: string(userJSON)},
		{Key: keyOriginalExpiry, Value: formatTime(originalExpiry)},
		{Key: keyExtendedExpiry, Value: formatTime(rec.ExtendedExpiry)},
		{Key: keyLoginTime, Value: formatTime(rec.LoginTime)},
		{Key: keyLastCallTime, Value: formatTime(rec.LastCallTime)},
	}
	if err := s.kv.MultiSet(ctx, pairs); err != nil {
		return nil, fmt.Errorf("persisting session record: %w", err)
	}

	s.mu.Lock()
	s.cached = rec
	s.mu.Unlock()

	s.logger.Info("session saved",
		slog.String("user_id", user.ID),
		slog.Time("extended_expiry", rec.ExtendedExpiry))
	return cloneRecord(rec), nil
}

// Load reads the session record from storage. A missing record returns
// (nil, nil). A record whose extended expiry has passed is treated as
// missing and lazily cleared from storage before returning (nil, nil).
func (s *Store) Load(ctx context.Context) (*Record, error) {
	rec, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		s.mu.Lock()
		s.cached = nil
		s.mu.Unlock()
		return nil, nil
	}

	if !s.policy.IsValid(s.now(), rec.ExtendedExpiry) {
		s.logger.Info("session expired on load, clearing",
			slog.Time("extended_expiry", rec.ExtendedExpiry))
		if err := s.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clearing expired session: %w", err)
		}
		return nil, nil
	}

	s.mu.Lock()
	s.cached = rec
	s.mu.Unlock()
	return cloneRecord(rec), nil
}

// Clear removes every session key from storage. Idempotent: clearing an
// already-empty session succeeds silently. The in-memory copy is dropped
// before storage is touched so Token and IsValid go stale-negative even if
// the removal is still in flight.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()

	if err := s.kv.MultiRemove(ctx, recordKeys); err != nil {
		return fmt.Errorf("clearing session record: %w", err)
	}
	return nil
}

// IsValid reports whether a live, unexpired session exists. Unlike Load it
// never mutates storage; an expired-but-present record simply reports false.
func (s *Store) IsValid(ctx context.Context) bool {
	now := s.now()

	s.mu.Lock()
	cached := s.cached
	s.mu.Unlock()
	if cached != nil {
		return s.policy.IsValid(now, cached.ExtendedExpiry)
	}

	rec, err := s.read(ctx)
	if err != nil || rec == nil {
		return false
	}
	s.mu.Lock()
	s.cached = rec
	s.mu.Unlock()
	return s.policy.IsValid(now, rec.ExtendedExpiry)
}

// Extend pushes the extended expiry to now + window and records the call
// time, persisting both. The expiry never moves backward. Returns
// ErrNoSession if no session is live.
func (s *Store) Extend(ctx context.Context) error {
	s.mu.Lock()
	rec := s.cached
	s.mu.Unlock()

	if rec == nil {
		loaded, err := s.Load(ctx)
		if err != nil {
			return err
		}
		if loaded == nil {
			return ErrNoSession
		}
		rec = loaded
	}

	now := s.now()
	newExpiry := s.policy.ExtendedExpiry(now)
	if newExpiry.Before(rec.ExtendedExpiry) {
		newExpiry = rec.ExtendedExpiry
	}

	pairs := []kvstore.Pair{
		{Key: keyExtendedExpiry, Value: formatTime(newExpiry)},
		{Key: keyLastCallTime, Value: formatTime(now)},
	}
	if err := s.kv.MultiSet(ctx, pairs); err != nil {
		return fmt.Errorf("persisting extended expiry: %w", err)
	}

	s.mu.Lock()
	if s.cached != nil {
		s.cached.ExtendedExpiry = newExpiry
		s.cached.LastCallTime = now
	}
	s.mu.Unlock()
	return nil
}

// Token returns the cached session token, or empty if no session is loaded.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		return ""
	}
	return s.cached.Token
}

// CurrentUser returns the cached user snapshot and whether one is present.
func (s *Store) CurrentUser() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		return User{}, false
	}
	return s.cached.User, true
}

// read assembles a Record from storage without any expiry side effects.
// A missing token means no session. A record written before the sliding
// window existed may lack the extended expiry; it is normalized here, once,
// by falling back to the original expiry; the next Extend persists a fresh
// value.
func (s *Store) read(ctx context.Context) (*Record, error) {
	token, err := s.kv.Get(ctx, keyToken)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session token: %w", err)
	}

	rec := &Record{Token: token}

	if raw, err := s.kv.Get(ctx, keyUser); err == nil {
		if err := json.Unmarshal([]byte(raw), &rec.User); err != nil {
			return nil, fmt.Errorf("decoding session user: %w", err)
		}
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		return nil, fmt.Errorf("reading session user: %w", err)
	}

	rec.OriginalExpiry, err = s.readTime(ctx, keyOriginalExpiry)
	if err != nil {
		return nil, err
	}
	rec.ExtendedExpiry, err = s.readTime(ctx, keyExtendedExpiry)
	if err != nil {
		return nil, err
	}
	rec.LoginTime, err = s.readTime(ctx, keyLoginTime)
	if err != nil {
		return nil, err
	}
	rec.LastCallTime, err = s.readTime(ctx, keyLastCallTime)
	if err != nil {
		return nil, err
	}

	// Legacy record: no extended expiry yet.
	if rec.ExtendedExpiry.IsZero() {
		if rec.OriginalExpiry.IsZero() {
			return nil, nil
		}
		rec.ExtendedExpiry = rec.OriginalExpiry
	}

	return rec, nil
}

func (s *Store) readTime(ctx context.Context, key string) (time.Time, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading %s: %w", key, err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", key, err)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func cloneRecord(rec *Record) *Record {
	out := *rec
	return &out
}

package client

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/quantfold/tradewire/session"
)

// DefaultLoginRoute is where the navigator is sent on an unauthorized episode.
const DefaultLoginRoute = "/login"

// DefaultCooldown is how long the re-entrance guard stays held after an
// episode completes, so a burst of concurrent 401s collapses into one
// clear+notify+navigate sequence.
const DefaultCooldown = time.Second

// Notification is a user-facing message surfaced through a Notifier.
type Notification struct {
	Kind    string
	Title   string
	Message string
}

// Notifier surfaces user-facing notifications. Implementations are provided
// by the host application (toast, banner, terminal).
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Navigator forces navigation to an application route. ReplaceRoute must be
// idempotent when the route is already active.
type Navigator interface {
	ReplaceRoute(ctx context.Context, path string) error
}

// UnauthorizedHandler is the single global strategy for authentication
// failures: clear the session, tell the user, send them to the login
// screen. This runs exactly once per failure episode, no matter how many concurrent
// requests failed together.
type UnauthorizedHandler struct {
	sessions   *session.Store
	notifier   Notifier
	navigator  Navigator
	loginRoute string
	cooldown   time.Duration
	logger     *slog.Logger
	handling   atomic.Bool
}

// HandlerOption configures an UnauthorizedHandler.
type HandlerOption func(*UnauthorizedHandler)

// WithCooldown sets how long the re-entrance guard is held after an episode.
func WithCooldown(d time.Duration) HandlerOption {
	return func(h *UnauthorizedHandler) {
		h.cooldown = d
	}
}

// WithLoginRoute sets the route navigated to on an episode.
func WithLoginRoute(route string) HandlerOption {
	return func(h *UnauthorizedHandler) {
		h.loginRoute = route
	}
}

// WithHandlerLogger sets the structured logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *UnauthorizedHandler) {
		h.logger = logger
	}
}

// NewUnauthorizedHandler creates the handler. Notifier and navigator may be
// nil; session clearing still runs.
func NewUnauthorizedHandler(sessions *session.Store, notifier Notifier, navigator Navigator, opts ...HandlerOption) *UnauthorizedHandler {
	h := &UnauthorizedHandler{
		sessions:   sessions,
		notifier:   notifier,
		navigator:  navigator,
		loginRoute: DefaultLoginRoute,
		cooldown:   DefaultCooldown,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle runs one unauthorized episode. A second concurrent trigger is
// dropped, not queued. The guard is released after the cooldown so a later,
// genuinely new episode is handled independently.
//
// Session clearing is the essential safety step and runs first; notifier or
// navigator failures are logged and never re-thrown.
func (h *UnauthorizedHandler) Handle(ctx context.Context) {
	if !h.handling.CompareAndSwap(false, true) {
		return
	}
	defer time.AfterFunc(h.cooldown, func() {
		h.handling.Store(false)
	})

	if err := h.sessions.Clear(ctx); err != nil {
		h.logger.Error("clearing session on unauthorized episode failed", "error", err)
	}

	if h.notifier != nil {
		n := Notification{
			Kind:    "warning",
			Title:   "Session expired",
			Message: "Your session has expired. Please log in again.",
		}
		if err := h.notifier.Notify(ctx, n); err != nil {
			h.logger.Warn("session-expired notification failed", "error", err)
		}
	}

	if h.navigator != nil {
		if err := h.navigator.ReplaceRoute(ctx, h.loginRoute); err != nil {
			h.logger.Warn("redirect to login failed", "error", err)
		}
	}
}

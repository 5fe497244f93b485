// Package client implements the authenticated-request layer for the trading
// backend: the login flow, the wrapper every authenticated call passes
// through, the unauthorized-response handler, and thin typed wrappers for
// the watchlist, order, wallet, and report endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quantfold/tradewire/session"
)

const (
	headerSessionKey = "X-Session-Key"
	headerRequestID  = "X-Request-ID"

	defaultTimeout = 30 * time.Second
)

// Response is the raw outcome of a successful authenticated call. The
// wrapper does not interpret trading semantics; callers decode Body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// Client is the mandatory choke point for all calls to the trading backend
// that require credentials. It validates the session before dispatch,
// attaches the token, classifies the response, and drives the sliding-expiry
// extension on success.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	sessions     *session.Store
	unauthorized *UnauthorizedHandler
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUnauthorizedHandler registers the handler invoked on 401/403
// responses. Without one, those responses still clear the session but no
// notification or navigation happens.
func WithUnauthorizedHandler(h *UnauthorizedHandler) Option {
	return func(c *Client) {
		c.unauthorized = h
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client for the given backend base URL and session store.
func New(baseURL string, sessions *session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		sessions:   sessions,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sessions returns the client's session store.
func (c *Client) Sessions() *session.Store {
	return c.sessions
}

// IsLoggedIn reports whether a valid session exists.
func (c *Client) IsLoggedIn(ctx context.Context) bool {
	return c.sessions.IsValid(ctx)
}

// SessionData returns the current session record, or nil if none is live.
func (c *Client) SessionData(ctx context.Context) (*session.Record, error) {
	return c.sessions.Load(ctx)
}

// Do performs an authenticated request against the backend.
//
// Order is mandatory: pre-flight validity check, then dispatch, then
// classification, then expiry extension. An expired session never reaches
// the network; the call fails locally with ErrSessionExpired every time
// until a fresh login. The token travels both as an Authorization bearer
// and in the session-key header; the backend accepts either.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	if !c.sessions.IsValid(ctx) {
		if err := c.sessions.Clear(ctx); err != nil {
			c.logger.Warn("clearing expired session failed", "error", err)
		}
		return nil, ErrSessionExpired
	}

	token := c.sessions.Token()
	if token == "" {
		// Should not happen after the validity check; treat as expired.
		return nil, ErrSessionExpired
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(headerSessionKey, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Includes timeouts and context cancellation; no session mutation.
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.handleAuthFailure(ctx, resp.StatusCode)
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		c.handleAuthFailure(ctx, resp.StatusCode)
		return nil, ErrForbidden
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// The call succeeded; a failed bookkeeping write must not fail it.
		if err := c.sessions.Extend(ctx); err != nil {
			c.logger.Warn("extending session expiry failed", "error", err)
		}
		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       payload,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrNetwork, resp.StatusCode)
	}
}

func (c *Client) handleAuthFailure(ctx context.Context, status int) {
	c.logger.Info("authentication rejected by backend", slog.Int("status", status))
	if err := c.sessions.Clear(ctx); err != nil {
		c.logger.Warn("clearing session after auth failure failed", "error", err)
	}
	if c.unauthorized != nil {
		c.unauthorized.Handle(ctx)
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, uuid.New().String())
	return req, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.JSON(out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	resp, err := c.Do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.JSON(out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	_, err := c.Do(ctx, http.MethodDelete, path, nil)
	return err
}

func queryPath(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

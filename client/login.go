package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quantfold/tradewire/session"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	User      session.User `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
	Message   string       `json:"message"`
}

// Login exchanges credentials for a new session record. One network call,
// no retry. On success the record is persisted, superseding any previous
// session. A rejected or malformed response never touches an existing
// session; callers who intend to replace a live session log out first.
func (c *Client) Login(ctx context.Context, identifier, password string, rememberMe bool) (*session.Record, error) {
	body, err := json.Marshal(loginRequest{
		Identifier: identifier,
		Password:   password,
		RememberMe: rememberMe,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading login response: %v", ErrNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		var lr loginResponse
		if json.Unmarshal(payload, &lr) == nil && lr.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, lr.Message)
		}
		return nil, ErrInvalidCredentials
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrNetwork, resp.StatusCode)
	}

	var lr loginResponse
	if err := json.Unmarshal(payload, &lr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if lr.Token == "" || lr.User.ID == "" {
		return nil, fmt.Errorf("%w: missing token or user identity", ErrMalformedResponse)
	}

	originalExpiry := lr.ExpiresAt
	if originalExpiry.IsZero() {
		originalExpiry = tokenExpiry(lr.Token)
	}

	rec, err := c.sessions.Save(ctx, lr.User, lr.Token, originalExpiry)
	if err != nil {
		return nil, err
	}
	c.logger.Info("login succeeded", "user_id", lr.User.ID)
	return rec, nil
}

// Logout tells the backend to invalidate the token, best effort, then
// destroys the local session record.
func (c *Client) Logout(ctx context.Context) error {
	if c.sessions.IsValid(ctx) {
		if _, err := c.Do(ctx, http.MethodPost, "/auth/logout", nil); err != nil {
			c.logger.Warn("backend logout failed, clearing local session anyway", "error", err)
		}
	}
	return c.sessions.Clear(ctx)
}

// tokenExpiry extracts the exp claim from a JWT without verifying the
// signature. The backend already authenticated us; the claim is only used
// as the observability-grade original expiry. Returns zero for opaque
// tokens.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

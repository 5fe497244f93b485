package client

import "errors"

var (
	// ErrSessionExpired indicates the local validity check failed before any
	// network call was made. Recoverable only by a fresh login.
	ErrSessionExpired = errors.New("session expired")
	// ErrUnauthorized indicates the backend rejected the credentials on an
	// in-flight call with 401. The session has been cleared.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the backend answered 403. Treated identically to
	// ErrUnauthorized for session purposes; the session has been cleared.
	ErrForbidden = errors.New("forbidden")
	// ErrNetwork indicates a transport-level failure or an unexpected status.
	// Session state is untouched; the caller may retry without re-login.
	ErrNetwork = errors.New("network error")
	// ErrInvalidCredentials indicates the login exchange was rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMalformedResponse indicates the login response was structurally
	// unusable (missing token or user identity).
	ErrMalformedResponse = errors.New("malformed response")
)

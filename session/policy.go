package session

import "time"

// DefaultWindow is the sliding-expiry window. It sits just under the
// backend's 20 minute idle timeout so any successful call refreshes the
// client's notion of validity before the server would have expired it.
const DefaultWindow = 19 * time.Minute

// ExpiryPolicy computes session validity and expiry timestamps. It is pure
// logic with no I/O or clock access; callers supply "now".
type ExpiryPolicy struct {
	window time.Duration
}

// NewExpiryPolicy returns a policy with the given sliding window.
// A zero or negative window falls back to DefaultWindow.
func NewExpiryPolicy(window time.Duration) ExpiryPolicy {
	if window <= 0 {
		window = DefaultWindow
	}
	return ExpiryPolicy{window: window}
}

// Window returns the sliding window duration.
func (p ExpiryPolicy) Window() time.Duration {
	return p.window
}

// InitialExpiry is the extended expiry assigned at login.
func (p ExpiryPolicy) InitialExpiry(now time.Time) time.Time {
	return now.Add(p.window)
}

// ExtendedExpiry is the new expiry after a successful authenticated call.
// Same formula as InitialExpiry; separate name because the call sites are
// distinct (login vs post-call).
func (p ExpiryPolicy) ExtendedExpiry(now time.Time) time.Time {
	return now.Add(p.window)
}

// IsValid reports whether a session with the given extended expiry is still
// valid at the given instant.
func (p ExpiryPolicy) IsValid(now, extendedExpiry time.Time) bool {
	return now.Before(extendedExpiry)
}

// Package session owns the canonical session record for the authenticated
// user: creation at login, sliding-expiry extension on activity, validity
// checks, and durable persistence through a kvstore.Store.
package session

import "time"

// User is the identity snapshot taken at login time. It is immutable for the
// life of the session and may only be replaced by a fresh login.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	Mobile      string `json:"mobile,omitempty"`
	TenantID    string `json:"tenant_id,omitempty"`
}

// Record is the single source of truth for "is the user logged in".
//
// ExtendedExpiry is the value consulted for validity: it starts at
// LoginTime + window and is pushed forward on every successful
// authenticated call. OriginalExpiry is the lifetime the backend reported
// at login; it is retained for observability only and never gates validity.
type Record struct {
	Token          string
	User           User
	OriginalExpiry time.Time
	ExtendedExpiry time.Time
	LoginTime      time.Time
	LastCallTime   time.Time
}

// Storage keys for the persisted record. Written and removed as one atomic
// set; only this package touches them.
const (
	keyToken          = "session_token"
	keyUser           = "session_user"
	keyOriginalExpiry = "session_original_expiry"
	keyExtendedExpiry = "session_extended_expiry"
	keyLoginTime      = "session_login_time"
	keyLastCallTime   = "session_last_call_time"
)

var recordKeys = []string{
	keyToken,
	keyUser,
	keyOriginalExpiry,
	keyExtendedExpiry,
	keyLoginTime,
	keyLastCallTime,
}

// Package session implements the server-side web session for the BFF.
//
// The session is a typed record persisted in the shared cache backend and
// referenced from the browser by an opaque cookie. Tokens never reach the
// browser; the session holds the user's identity plus the short-lived backend
// API token.
package session

import (
	"time"
)

// User is the application-level identity stored in the session once a login
// completes.
type User struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`

	// APIToken is the backend-issued JWT and its expiry in epoch milliseconds.
	// Refreshed proactively by the EnsureAPIAccess gate.
	APIToken          string `json:"api_token,omitempty"`
	APITokenExpiresAt int64  `json:"api_token_expires_at,omitempty"`
}

// Session is the per-browser state bag.
//
// CodeVerifier, State and ReturnURL exist only between "authorization URL
// issued" and "code exchanged"; they must never survive a completed exchange.
// HomeAccountID is the cache partition key for the account's tokens; its
// absence means "no authenticated account".
type Session struct {
	ID string `json:"id"`

	CodeVerifier string `json:"code_verifier,omitempty"`
	State        string `json:"state,omitempty"`
	ReturnURL    string `json:"return_url,omitempty"`

	HomeAccountID string `json:"home_account_id,omitempty"`
	User          *User  `json:"user,omitempty"`

	// Values is a narrow escape hatch for route-specific data that has no
	// typed field. Keep it small; anything structural belongs above.
	Values map[string]string `json:"values,omitempty"`
}

// ClearAuthAttempt removes the PKCE artifacts of an in-flight authorization
// attempt. Called before the code exchange hits the network so a stale
// verifier can never be replayed.
func (s *Session) ClearAuthAttempt() {
	s.CodeVerifier = ""
	s.State = ""
	s.ReturnURL = ""
}

// Authenticated reports whether the session has an authenticated account.
func (s *Session) Authenticated() bool {
	return s != nil && s.HomeAccountID != ""
}

// APITokenValid reports whether the session carries a backend API token that
// is not within the given safety window of its expiry.
func (s *Session) APITokenValid(window time.Duration, now time.Time) bool {
	if s == nil || s.User == nil || s.User.APIToken == "" {
		return false
	}
	expiresAt := time.UnixMilli(s.User.APITokenExpiresAt)
	return now.Add(window).Before(expiresAt)
}

// ClearAPIToken drops the backend API token, forcing the next EnsureAPIAccess
// call to re-fetch. Used when a silent refresh fails.
func (s *Session) ClearAPIToken() {
	if s.User != nil {
		s.User.APIToken = ""
		s.User.APITokenExpiresAt = 0
	}
}

// Package auth contains the wire-level representations for the auth routes.
package auth

import "github.com/dropDatabas3/hellobff/internal/session"

// UserResponse is the browser-facing view of the authenticated user. Tokens
// never appear here.
type UserResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Roles         []string `json:"roles"`
	Authenticated bool     `json:"authenticated"`
}

// FromSession builds the response for a session. Anonymous sessions yield an
// empty record with Authenticated=false.
func FromSession(sess *session.Session) UserResponse {
	if sess == nil || sess.User == nil || !sess.Authenticated() {
		return UserResponse{Roles: []string{}}
	}
	roles := sess.User.Roles
	if roles == nil {
		roles = []string{}
	}
	return UserResponse{
		ID:            sess.User.ID,
		Name:          sess.User.Name,
		Email:         sess.User.Email,
		Roles:         roles,
		Authenticated: true,
	}
}

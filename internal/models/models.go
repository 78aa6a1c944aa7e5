// Package models holds the data structures shared between the token
// acquisition engine, the dialog fallback protocol, and their consumers.
package models

import "time"

// Account is an opaque identity descriptor for a signed-in user. It is
// owned by the engine; subscribers receive copies via AuthState and must
// not rely on pointer identity.
type Account struct {
	HomeAccountID  string `json:"homeAccountId"`
	Environment    string `json:"environment"`
	TenantID       string `json:"tenantId"`
	Username       string `json:"username"`
	LocalAccountID string `json:"localAccountId"`
	Name           string `json:"name,omitempty"`
}

// TokenResult is the outcome of a successful token acquisition. A fresh
// value is constructed on every call; it is never mutated afterwards.
type TokenResult struct {
	AccessToken string    `json:"accessToken"`
	ExpiresOn   time.Time `json:"expiresOn"`
	Scopes      []string  `json:"scopes"`

	// FromCache reports whether the token came from the identity
	// client's cache rather than a fresh round trip.
	FromCache bool `json:"fromCache"`
}

// ExpiresWithin reports whether the token expires within d of now.
func (t TokenResult) ExpiresWithin(d time.Duration) bool {
	return time.Until(t.ExpiresOn) < d
}

// AuthState is a snapshot of the authentication state, recomputed and
// broadcast after every state-changing operation.
type AuthState struct {
	IsAuthenticating bool     `json:"isAuthenticating"`
	IsAuthenticated  bool     `json:"isAuthenticated"`
	Account          *Account `json:"account,omitempty"`
	Error            error    `json:"-"`
}

package domain

import "time"

// RefreshMargin is how long before expiry an access token is refreshed.
const RefreshMargin = 5 * time.Minute

// CredentialState is the lifecycle state of a user's remote storage connection.
type CredentialState int

const (
	StateDisconnected CredentialState = iota
	StateConnected
	StateNeedsRefresh
	StateExpired
)

// String returns the string representation of the state
func (s CredentialState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateNeedsRefresh:
		return "needs_refresh"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Connection is the per-user OAuth2 credential to the remote storage provider.
type Connection struct {
	ID           int64
	UserID       string
	AccessToken  string
	RefreshToken string // empty when the provider omitted it
	ExpiresAt    time.Time
	AccountLabel string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsExpired returns true once the access token is no longer valid.
func (c *Connection) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// NeedsRefresh returns true within RefreshMargin of expiry (or after it).
func (c *Connection) NeedsRefresh(now time.Time) bool {
	return !now.Before(c.ExpiresAt.Add(-RefreshMargin))
}

// HasRefreshToken returns true if a refresh token is stored.
func (c *Connection) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// State derives the credential state at the given instant.
// A nil connection is disconnected.
func (c *Connection) State(now time.Time) CredentialState {
	if c == nil || !c.IsActive {
		return StateDisconnected
	}
	if c.IsExpired(now) {
		return StateExpired
	}
	if c.NeedsRefresh(now) {
		return StateNeedsRefresh
	}
	return StateConnected
}

// Credential returns the token pair currently held by the connection.
func (c *Connection) Credential() Credential {
	return Credential{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
	}
}

// ApplyGrant replaces the tokens with a fresh grant. The refresh token is kept
// when the grant does not carry a new one.
func (c *Connection) ApplyGrant(g *TokenGrant) {
	c.AccessToken = g.AccessToken
	if g.RefreshToken != "" {
		c.RefreshToken = g.RefreshToken
	}
	c.ExpiresAt = g.ExpiresAt
}

// Deactivate soft-disables the connection.
func (c *Connection) Deactivate() {
	c.IsActive = false
}

// Credential is a live token pair handed to provider clients.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenGrant is what the provider returns from a code or refresh exchange.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ConnectionStatus is the read-only projection returned to the user.
type ConnectionStatus struct {
	Connected    bool       `json:"connected"`
	AccountLabel string     `json:"accountLabel,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	NeedsRefresh *bool      `json:"needsRefresh,omitempty"`
}

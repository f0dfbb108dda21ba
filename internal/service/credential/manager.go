package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vertextoedge/estateshare/internal/crypto"
	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/domain/event"
	"github.com/vertextoedge/estateshare/internal/port"
)

// Config contains credential manager configuration
type Config struct {
	// SerializeRefresh runs at most one refresh per user at a time
	SerializeRefresh bool
	// DirectTokenLifetime is assumed for direct tokens given without an expiry
	DirectTokenLifetime time.Duration
}

// DefaultConfig returns default credential manager configuration
func DefaultConfig() *Config {
	return &Config{
		SerializeRefresh:    true,
		DirectTokenLifetime: time.Hour,
	}
}

// ConnectInput carries either an authorization code or tokens supplied directly.
type ConnectInput struct {
	Code         string     `json:"code,omitempty"`
	AccessToken  string     `json:"accessToken,omitempty"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// Manager owns the per-user connection lifecycle: connect, lazy refresh,
// disconnect and status.
type Manager struct {
	config   *Config
	provider port.OAuthProvider
	conns    *vault
	events   event.EventDispatcher
	logger   *zap.Logger
	refresh  singleflight.Group
	now      func() time.Time
}

// NewManager creates a new Manager
func NewManager(
	cfg *Config,
	provider port.OAuthProvider,
	conns port.ConnectionRepository,
	enc crypto.Encryptor,
	events event.EventDispatcher,
	logger *zap.Logger,
) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DirectTokenLifetime == 0 {
		cfg.DirectTokenLifetime = time.Hour
	}
	if events == nil {
		events = event.NewNullDispatcher()
	}
	return &Manager{
		config:   cfg,
		provider: provider,
		conns:    newVault(conns, enc),
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// GetAuthorizationURL returns the provider consent URL for state
func (m *Manager) GetAuthorizationURL(state string) string {
	return m.provider.AuthCodeURL(state)
}

// NewAuthorization returns a consent URL bound to a fresh random state
func (m *Manager) NewAuthorization() (url, state string) {
	state = uuid.NewString()
	return m.provider.AuthCodeURL(state), state
}

// Connect stores a connection for userID from an authorization code or direct
// tokens. An existing connection is updated in place and reactivated.
func (m *Manager) Connect(ctx context.Context, userID string, in ConnectInput) (*domain.Connection, error) {
	grant, err := m.obtainGrant(ctx, in)
	if err != nil {
		return nil, err
	}

	label, err := m.provider.AccountLabel(ctx, grant.AccessToken)
	if err != nil {
		if errors.Is(err, domain.ErrProviderUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: account lookup failed: %v", domain.ErrAuthExchange, err)
	}

	existing, err := m.conns.get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}

	conn := &domain.Connection{
		UserID:       userID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.ExpiresAt,
		AccountLabel: label,
		IsActive:     true,
	}
	if err := m.conns.put(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to save connection: %w", err)
	}
	if conn.RefreshToken == "" && existing != nil {
		conn.RefreshToken = existing.RefreshToken
	}

	m.logger.Info("remote storage connected",
		zap.String("user_id", userID),
		zap.String("account", label),
		zap.Bool("reconnect", existing != nil),
		zap.Bool("has_refresh_token", conn.HasRefreshToken()),
		zap.Time("expires_at", conn.ExpiresAt))
	m.events.Dispatch(event.NewConnectionEstablished(m.now(), userID, label, existing != nil))

	return conn, nil
}

func (m *Manager) obtainGrant(ctx context.Context, in ConnectInput) (*domain.TokenGrant, error) {
	switch {
	case in.Code != "":
		return m.provider.Exchange(ctx, in.Code)
	case in.AccessToken != "":
		expiresAt := m.now().Add(m.config.DirectTokenLifetime)
		if in.ExpiresAt != nil && !in.ExpiresAt.IsZero() {
			expiresAt = *in.ExpiresAt
		}
		return &domain.TokenGrant{
			AccessToken:  in.AccessToken,
			RefreshToken: in.RefreshToken,
			ExpiresAt:    expiresAt,
		}, nil
	default:
		return nil, fmt.Errorf("%w: authorization code or access token required", domain.ErrAuthExchange)
	}
}

// Disconnect revokes the access token at the provider and removes the
// connection. A failed revoke is logged and the row is only deactivated.
func (m *Manager) Disconnect(ctx context.Context, userID string) error {
	conn, err := m.conns.get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load connection: %w", err)
	}
	if conn == nil || !conn.IsActive {
		return domain.ErrNotConnected
	}

	revoked := true
	if err := m.provider.Revoke(ctx, conn.AccessToken); err != nil {
		revoked = false
		m.logger.Warn("failed to revoke token at provider",
			zap.String("user_id", userID),
			zap.Error(err))
	}

	if revoked {
		err = m.conns.remove(ctx, userID)
	} else {
		err = m.conns.deactivate(ctx, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to remove connection: %w", err)
	}

	m.logger.Info("remote storage disconnected",
		zap.String("user_id", userID),
		zap.Bool("revoked", revoked))
	m.events.Dispatch(event.NewConnectionRemoved(m.now(), userID, revoked))
	return nil
}

// GetStatus returns the read-only connection projection for userID
func (m *Manager) GetStatus(ctx context.Context, userID string) (*domain.ConnectionStatus, error) {
	conn, err := m.conns.get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}

	now := m.now()
	if conn.State(now) == domain.StateDisconnected {
		return &domain.ConnectionStatus{Connected: false}, nil
	}

	expiresAt := conn.ExpiresAt
	needsRefresh := conn.NeedsRefresh(now)
	return &domain.ConnectionStatus{
		Connected:    true,
		AccountLabel: conn.AccountLabel,
		ExpiresAt:    &expiresAt,
		NeedsRefresh: &needsRefresh,
	}, nil
}

// GetLiveCredential returns a token pair usable for a provider call, refreshing
// it first when it is inside the refresh margin.
func (m *Manager) GetLiveCredential(ctx context.Context, userID string) (domain.Credential, error) {
	conn, err := m.conns.get(ctx, userID)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to load connection: %w", err)
	}

	switch conn.State(m.now()) {
	case domain.StateDisconnected:
		return domain.Credential{}, domain.ErrNotConnected
	case domain.StateConnected:
		return conn.Credential(), nil
	}

	if !conn.HasRefreshToken() {
		return m.withoutRefreshToken(ctx, conn)
	}

	if !m.config.SerializeRefresh {
		return m.refreshConnection(ctx, userID)
	}

	// The flight outlives any single caller's cancellation
	flightCtx := context.WithoutCancel(ctx)
	v, err, shared := m.refresh.Do(userID, func() (any, error) {
		return m.refreshConnection(flightCtx, userID)
	})
	if shared {
		m.logger.Debug("joined in-flight refresh", zap.String("user_id", userID))
	}
	if err != nil {
		return domain.Credential{}, err
	}
	return v.(domain.Credential), nil
}

// withoutRefreshToken handles a connection due for refresh that has nothing
// to refresh with. A still-valid token is used until it expires.
func (m *Manager) withoutRefreshToken(ctx context.Context, conn *domain.Connection) (domain.Credential, error) {
	if !conn.IsExpired(m.now()) {
		return conn.Credential(), nil
	}
	m.expire(ctx, conn.UserID, "no_refresh_token", true)
	return domain.Credential{}, domain.ErrCredentialExpired
}

// refreshConnection reloads the connection and refreshes it if still needed.
// Reloading lets a caller that queued behind another refresh reuse its result.
func (m *Manager) refreshConnection(ctx context.Context, userID string) (domain.Credential, error) {
	conn, err := m.conns.get(ctx, userID)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to load connection: %w", err)
	}

	now := m.now()
	switch conn.State(now) {
	case domain.StateDisconnected:
		return domain.Credential{}, domain.ErrNotConnected
	case domain.StateConnected:
		return conn.Credential(), nil
	}
	if !conn.HasRefreshToken() {
		return m.withoutRefreshToken(ctx, conn)
	}

	grant, err := m.provider.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		return m.refreshFailed(ctx, conn, err)
	}

	if err := m.conns.updateTokens(ctx, userID, grant); err != nil {
		return domain.Credential{}, fmt.Errorf("failed to save refreshed tokens: %w", err)
	}
	conn.ApplyGrant(grant)

	m.logger.Info("access token refreshed",
		zap.String("user_id", userID),
		zap.Time("expires_at", grant.ExpiresAt),
		zap.Bool("refresh_token_rotated", grant.RefreshToken != ""))
	m.events.Dispatch(event.NewConnectionRefreshed(m.now(), userID, grant.ExpiresAt, grant.RefreshToken != ""))

	return conn.Credential(), nil
}

func (m *Manager) refreshFailed(ctx context.Context, conn *domain.Connection, err error) (domain.Credential, error) {
	expired := conn.IsExpired(m.now())

	if errors.Is(err, domain.ErrCredentialExpired) {
		m.expire(ctx, conn.UserID, "refresh_rejected", expired)
		return domain.Credential{}, err
	}

	if !expired {
		m.logger.Warn("token refresh failed, using current access token",
			zap.String("user_id", conn.UserID),
			zap.Time("expires_at", conn.ExpiresAt),
			zap.Error(err))
		return conn.Credential(), nil
	}

	m.logger.Warn("token refresh failed",
		zap.String("user_id", conn.UserID),
		zap.Error(err))
	return domain.Credential{}, err
}

func (m *Manager) expire(ctx context.Context, userID, reason string, deactivate bool) {
	if deactivate {
		if err := m.conns.deactivate(ctx, userID); err != nil {
			m.logger.Error("failed to deactivate expired connection",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
	m.logger.Warn("remote storage credential expired",
		zap.String("user_id", userID),
		zap.String("reason", reason),
		zap.Bool("deactivated", deactivate))
	m.events.Dispatch(event.NewConnectionExpired(m.now(), userID, reason, deactivate))
}

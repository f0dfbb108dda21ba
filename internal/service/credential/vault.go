package credential

import (
	"context"
	"fmt"

	"github.com/vertextoedge/estateshare/internal/crypto"
	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/port"
)

// vault keeps connection secrets encrypted at rest. Everything above it
// works with plaintext tokens.
type vault struct {
	repo port.ConnectionRepository
	enc  crypto.Encryptor
}

func newVault(repo port.ConnectionRepository, enc crypto.Encryptor) *vault {
	if enc == nil {
		enc = crypto.Passthrough{}
	}
	return &vault{repo: repo, enc: enc}
}

func (v *vault) get(ctx context.Context, userID string) (*domain.Connection, error) {
	conn, err := v.repo.GetConnectionByUser(ctx, userID)
	if err != nil || conn == nil {
		return conn, err
	}

	if conn.AccessToken, err = v.open(ctx, conn.AccessToken); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if conn.RefreshToken, err = v.open(ctx, conn.RefreshToken); err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}
	return conn, nil
}

func (v *vault) put(ctx context.Context, conn *domain.Connection) error {
	sealed := *conn
	var err error
	if sealed.AccessToken, err = v.seal(ctx, conn.AccessToken); err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	if sealed.RefreshToken, err = v.seal(ctx, conn.RefreshToken); err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	return v.repo.UpsertConnection(ctx, &sealed)
}

func (v *vault) updateTokens(ctx context.Context, userID string, grant *domain.TokenGrant) error {
	sealed := *grant
	var err error
	if sealed.AccessToken, err = v.seal(ctx, grant.AccessToken); err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	if sealed.RefreshToken, err = v.seal(ctx, grant.RefreshToken); err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	return v.repo.UpdateConnectionTokens(ctx, userID, &sealed)
}

func (v *vault) deactivate(ctx context.Context, userID string) error {
	return v.repo.DeactivateConnection(ctx, userID)
}

func (v *vault) remove(ctx context.Context, userID string) error {
	return v.repo.DeleteConnection(ctx, userID)
}

// seal and open leave empty values empty so "no refresh token" survives the round trip
func (v *vault) seal(ctx context.Context, s string) (string, error) {
	if s == "" {
		return "", nil
	}
	return v.enc.Encrypt(ctx, s)
}

func (v *vault) open(ctx context.Context, s string) (string, error) {
	if s == "" {
		return "", nil
	}
	return v.enc.Decrypt(ctx, s)
}

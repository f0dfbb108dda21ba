package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vertextoedge/estateshare/internal/domain"
)

// GetConnectionByUser retrieves the connection for a user
func (s *Store) GetConnectionByUser(ctx context.Context, userID string) (*domain.Connection, error) {
	query := `
		SELECT id, user_id, access_token, refresh_token, expires_at, account_label,
			is_active, created_at, updated_at
		FROM drive_connections
		WHERE user_id = ?
	`

	conn := &domain.Connection{}
	var refreshToken, accountLabel sql.NullString

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&conn.ID, &conn.UserID, &conn.AccessToken, &refreshToken, &conn.ExpiresAt, &accountLabel,
		&conn.IsActive, &conn.CreatedAt, &conn.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	conn.RefreshToken = refreshToken.String
	conn.AccountLabel = accountLabel.String

	return conn, nil
}

// UpsertConnection creates the connection or updates it in place
func (s *Store) UpsertConnection(ctx context.Context, conn *domain.Connection) error {
	now := s.timestamp()

	_, err := s.db.ExecContext(ctx, s.dialect.upsertConnection,
		conn.UserID, conn.AccessToken, nullString(conn.RefreshToken), conn.ExpiresAt.UTC(),
		nullString(conn.AccountLabel), conn.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert connection: %w", err)
	}
	return nil
}

// UpdateConnectionTokens persists a refreshed token pair
func (s *Store) UpdateConnectionTokens(ctx context.Context, userID string, grant *domain.TokenGrant) error {
	query := `
		UPDATE drive_connections
		SET access_token = ?,
			refresh_token = COALESCE(?, refresh_token),
			expires_at = ?,
			updated_at = ?
		WHERE user_id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		grant.AccessToken, nullString(grant.RefreshToken), grant.ExpiresAt.UTC(), s.timestamp(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update connection tokens: %w", err)
	}
	return requireRow(result)
}

// DeactivateConnection soft-disables the connection
func (s *Store) DeactivateConnection(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE drive_connections SET is_active = ?, updated_at = ? WHERE user_id = ?`,
		false, s.timestamp(), userID,
	)
	return err
}

// DeleteConnection removes the connection row
func (s *Store) DeleteConnection(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM drive_connections WHERE user_id = ?`, userID)
	return err
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vertextoedge/estateshare/internal/domain"
)

const shareTokenColumns = `id, token, file_id, user_id, file_name, is_local_file, local_file_path,
	expires_at, download_count, is_active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShareToken(row rowScanner) (*domain.ShareToken, error) {
	share := &domain.ShareToken{}
	var fileName, localPath sql.NullString

	err := row.Scan(
		&share.ID, &share.Token, &share.FileID, &share.UserID, &fileName, &share.IsLocalFile, &localPath,
		&share.ExpiresAt, &share.DownloadCount, &share.IsActive, &share.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	share.FileName = fileName.String
	share.LocalFilePath = localPath.String
	return share, nil
}

// CreateShareToken inserts a new share token
func (s *Store) CreateShareToken(ctx context.Context, share *domain.ShareToken) error {
	if share.CreatedAt.IsZero() {
		share.CreatedAt = s.timestamp()
	}

	query := `
		INSERT INTO share_tokens
			(token, file_id, user_id, file_name, is_local_file, local_file_path,
			 expires_at, download_count, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		share.Token, share.FileID, share.UserID, nullString(share.FileName), share.IsLocalFile,
		nullString(share.LocalFilePath), share.ExpiresAt.UTC(), share.IsActive, share.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create share token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	share.ID = id
	share.DownloadCount = 0
	return nil
}

// GetShareToken retrieves a token regardless of its active flag
func (s *Store) GetShareToken(ctx context.Context, token string) (*domain.ShareToken, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shareTokenColumns+` FROM share_tokens WHERE token = ?`, token)

	share, err := scanShareToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return share, err
}

// GetActiveShareToken retrieves a token only if it has not been revoked
func (s *Store) GetActiveShareToken(ctx context.Context, token string) (*domain.ShareToken, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shareTokenColumns+` FROM share_tokens WHERE token = ? AND is_active = ?`, token, true)

	share, err := scanShareToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return share, err
}

// FindLocalShareByFileID returns the newest active local-file token for a file
func (s *Store) FindLocalShareByFileID(ctx context.Context, fileID string) (*domain.ShareToken, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shareTokenColumns+` FROM share_tokens
		WHERE file_id = ? AND is_local_file = ? AND is_active = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, fileID, true, true)

	share, err := scanShareToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return share, err
}

// ListActiveShareTokens returns a user's active tokens, newest first
func (s *Store) ListActiveShareTokens(ctx context.Context, userID string) ([]*domain.ShareToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shareTokenColumns+` FROM share_tokens
		WHERE user_id = ? AND is_active = ?
		ORDER BY created_at DESC, id DESC`, userID, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []*domain.ShareToken
	for rows.Next() {
		share, err := scanShareToken(rows)
		if err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}
	return shares, rows.Err()
}

// DeactivateShareToken revokes a token. Revocation is never undone.
func (s *Store) DeactivateShareToken(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE share_tokens SET is_active = ? WHERE token = ?`, false, token)
	if err != nil {
		return fmt.Errorf("failed to revoke share token: %w", err)
	}
	return requireRow(result)
}

// IncrementDownloadCount adds one to the counter in a single UPDATE and reads
// the new value back in the same transaction.
func (s *Store) IncrementDownloadCount(ctx context.Context, token string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE share_tokens SET download_count = download_count + 1 WHERE token = ?`, token)
	if err != nil {
		return 0, fmt.Errorf("failed to increment download count: %w", err)
	}
	if err := requireRow(result); err != nil {
		return 0, err
	}

	var count int64
	if err := tx.QueryRowContext(ctx,
		`SELECT download_count FROM share_tokens WHERE token = ?`, token).Scan(&count); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

package repository

import (
	"context"

	"github.com/vertextoedge/estateshare/internal/domain"
)

// ShareTokenRepository defines persistence for share tokens
type ShareTokenRepository interface {
	// CreateShareToken inserts a new token; a duplicate token fails on the unique constraint
	CreateShareToken(ctx context.Context, share *domain.ShareToken) error

	// GetShareToken returns the token row regardless of its active flag, or (nil, nil)
	GetShareToken(ctx context.Context, token string) (*domain.ShareToken, error)

	// GetActiveShareToken returns the token only if is_active is true, or (nil, nil)
	GetActiveShareToken(ctx context.Context, token string) (*domain.ShareToken, error)

	// FindLocalShareByFileID returns the newest active local-file token for fileID, or (nil, nil)
	FindLocalShareByFileID(ctx context.Context, fileID string) (*domain.ShareToken, error)

	// ListActiveShareTokens returns the user's active tokens, newest first
	ListActiveShareTokens(ctx context.Context, userID string) ([]*domain.ShareToken, error)

	// DeactivateShareToken sets is_active to false
	DeactivateShareToken(ctx context.Context, token string) error

	// IncrementDownloadCount atomically adds one and returns the new count
	IncrementDownloadCount(ctx context.Context, token string) (int64, error)
}

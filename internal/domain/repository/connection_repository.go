package repository

import (
	"context"

	"github.com/vertextoedge/estateshare/internal/domain"
)

// ConnectionRepository defines persistence for per-user remote storage connections
type ConnectionRepository interface {
	// GetConnectionByUser returns the connection for userID, or (nil, nil) if none exists
	GetConnectionByUser(ctx context.Context, userID string) (*domain.Connection, error)

	// UpsertConnection creates or replaces the connection for conn.UserID.
	// An empty RefreshToken keeps the stored one.
	UpsertConnection(ctx context.Context, conn *domain.Connection) error

	// UpdateConnectionTokens persists a refreshed token pair
	UpdateConnectionTokens(ctx context.Context, userID string, grant *domain.TokenGrant) error

	// DeactivateConnection sets is_active to false
	DeactivateConnection(ctx context.Context, userID string) error

	// DeleteConnection removes the connection row
	DeleteConnection(ctx context.Context, userID string) error
}

package repository

import (
	"context"

	"github.com/vertextoedge/estateshare/internal/domain"
)

// StatsRepository defines the interface for store statistics
type StatsRepository interface {
	// GetShareStats returns aggregate counters over connections and share tokens
	GetShareStats(ctx context.Context) (*domain.StoreStats, error)
}

package sqlstore

import (
	"context"

	"github.com/vertextoedge/estateshare/internal/domain"
)

// GetShareStats returns aggregate counters over connections and share tokens
func (s *Store) GetShareStats(ctx context.Context) (*domain.StoreStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM drive_connections WHERE is_active = ?),
			(SELECT COUNT(*) FROM drive_connections WHERE is_active = ?),
			(SELECT COUNT(*) FROM share_tokens WHERE is_active = ?),
			(SELECT COUNT(*) FROM share_tokens WHERE is_active = ?),
			(SELECT COUNT(*) FROM share_tokens WHERE is_active = ? AND is_local_file = ?),
			(SELECT COALESCE(SUM(download_count), 0) FROM share_tokens)
	`

	stats := &domain.StoreStats{}
	err := s.db.QueryRowContext(ctx, query, true, false, true, false, true, true).Scan(
		&stats.ActiveConnections,
		&stats.InactiveConnections,
		&stats.ActiveShareTokens,
		&stats.RevokedShareTokens,
		&stats.LocalShareTokens,
		&stats.TotalDownloads,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

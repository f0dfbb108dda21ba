package domain

// StoreStats represents aggregate counters over the relational store
type StoreStats struct {
	ActiveConnections   int64 `json:"activeConnections"`
	InactiveConnections int64 `json:"inactiveConnections"`
	ActiveShareTokens   int64 `json:"activeShareTokens"`
	RevokedShareTokens  int64 `json:"revokedShareTokens"`
	LocalShareTokens    int64 `json:"localShareTokens"`
	TotalDownloads      int64 `json:"totalDownloads"`
}

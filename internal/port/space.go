package port

// SpaceCheckResult contains detailed space availability information
type SpaceCheckResult struct {
	HasSpace           bool
	AvailableBytes     int64
	CacheSizeBytes     int64
	MaxCacheSizeBytes  int64
	DiskUsedPct        float64
	MaxDiskUsagePct    float64
	LimitedByCacheSize bool
	LimitedByDiskUsage bool
}

// SpaceManager checks whether a local copy of the given size fits in the cache
type SpaceManager interface {
	CheckSpace(fileSize int64) (*SpaceCheckResult, error)
}

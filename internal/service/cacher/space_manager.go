package cacher

import (
	"github.com/vertextoedge/estateshare/internal/port"
)

// SpaceManager checks whether a local copy fits in the cache directory
type SpaceManager struct {
	fs              port.CacheFS
	maxCacheSize    int64
	maxDiskUsagePct float64
}

// Ensure SpaceManager implements port.SpaceManager
var _ port.SpaceManager = (*SpaceManager)(nil)

// NewSpaceManager creates a new SpaceManager. A zero limit disables that check.
func NewSpaceManager(fs port.CacheFS, maxCacheSize int64, maxDiskUsagePct float64) *SpaceManager {
	return &SpaceManager{
		fs:              fs,
		maxCacheSize:    maxCacheSize,
		maxDiskUsagePct: maxDiskUsagePct,
	}
}

// CheckSpace checks if there's enough space for a file of the given size
func (sm *SpaceManager) CheckSpace(fileSize int64) (*port.SpaceCheckResult, error) {
	result := &port.SpaceCheckResult{
		MaxCacheSizeBytes: sm.maxCacheSize,
		MaxDiskUsagePct:   sm.maxDiskUsagePct,
	}

	cacheSize, err := sm.fs.GetCacheSize()
	if err != nil {
		return nil, err
	}
	result.CacheSizeBytes = cacheSize

	if sm.maxCacheSize > 0 {
		result.AvailableBytes = sm.maxCacheSize - cacheSize
		if cacheSize+fileSize > sm.maxCacheSize {
			result.LimitedByCacheSize = true
			return result, nil
		}
	}

	if sm.maxDiskUsagePct > 0 {
		usage, err := sm.fs.GetDiskUsage()
		if err != nil {
			return nil, err
		}
		result.DiskUsedPct = usage.UsedPct

		if usage.UsedPct >= sm.maxDiskUsagePct {
			result.LimitedByDiskUsage = true
			return result, nil
		}

		// Check if adding this file would exceed disk limit
		if usage.Total > 0 {
			newUsedPct := float64(usage.Used+uint64(fileSize)) / float64(usage.Total) * 100
			if newUsedPct >= sm.maxDiskUsagePct {
				result.LimitedByDiskUsage = true
				return result, nil
			}
		}
	}

	result.HasSpace = true
	return result, nil
}

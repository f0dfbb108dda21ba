package port

import (
	"io"
	"time"

	"github.com/vertextoedge/estateshare/internal/domain/vo"
)

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space in bytes
	UsedPct float64 // Used percentage (0-100)
}

// CachedFile describes a file in the local cache directory
type CachedFile struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// CacheFS defines the local cache directory operations
type CacheFS interface {
	// RootDir returns the cache root directory
	RootDir() string

	// FindByPrefix returns a cached file whose name starts with prefix.
	// Returns domain.ErrNotFound if the directory is missing or nothing matches.
	FindByPrefix(prefix string) (*CachedFile, error)

	// Open opens a cached file by absolute path or path relative to the root.
	// Returns domain.ErrNotFound if the file does not exist.
	Open(path string) (io.ReadCloser, *CachedFile, error)

	// WriteFile writes content under name through a temp file
	// Returns: cache path, bytes written, error
	WriteFile(name vo.CacheName, reader io.Reader) (string, int64, error)

	// DeleteFile removes a cached file
	DeleteFile(path string) error

	// GetCacheSize returns total size of cached files
	GetCacheSize() (int64, error)

	// GetDiskUsage returns disk usage statistics
	GetDiskUsage() (*DiskUsage, error)

	// CleanOldTempFiles removes temp files older than the specified duration
	// Returns the number of files deleted
	CleanOldTempFiles(olderThan time.Duration) (int, error)
}

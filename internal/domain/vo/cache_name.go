package vo

import (
	"errors"
	"path/filepath"
	"strings"
)

// TempSuffix marks a cache file that is still being written.
const TempSuffix = ".downloading"

// CacheName is the on-disk name of a locally cached remote file: <fileId>-<originalName>.
type CacheName struct {
	fileID string
	name   string
}

var (
	ErrEmptyFileID   = errors.New("file ID cannot be empty")
	ErrInvalidFileID = errors.New("file ID contains path separators")
)

// NewCacheName builds the cache name for a remote file.
func NewCacheName(fileID, originalName string) (CacheName, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return CacheName{}, ErrEmptyFileID
	}
	if strings.ContainsAny(fileID, `/\`) || fileID == "." || fileID == ".." {
		return CacheName{}, ErrInvalidFileID
	}
	return CacheName{fileID: fileID, name: SanitizeFileName(originalName)}, nil
}

// FileID returns the provider file id part.
func (c CacheName) FileID() string {
	return c.fileID
}

// String returns the file name used in the cache directory.
func (c CacheName) String() string {
	if c.name == "" {
		return c.fileID
	}
	return c.fileID + "-" + c.name
}

// TempPattern returns the os.CreateTemp pattern used while the file is being written.
func (c CacheName) TempPattern() string {
	return c.String() + "-*" + TempSuffix
}

// SanitizeFileName strips directory components and characters that are unsafe
// in a single path segment.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "_", `\`, "_", "\x00", "").Replace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// DisplayName returns the name to present for a cached file, dropping the
// "<fileId>-" prefix when present.
func DisplayName(cachedName, fileID string) string {
	base := filepath.Base(cachedName)
	if fileID != "" {
		if rest, ok := strings.CutPrefix(base, fileID+"-"); ok && rest != "" {
			return rest
		}
	}
	return base
}

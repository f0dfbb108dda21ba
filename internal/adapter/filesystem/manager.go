package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/domain/vo"
	"github.com/vertextoedge/estateshare/internal/port"
)

// Manager handles the local cache directory
type Manager struct {
	rootDir    string
	bufferSize int
}

// Ensure Manager implements port.CacheFS
var _ port.CacheFS = (*Manager)(nil)

// NewManager creates a new filesystem manager
func NewManager(rootDir string) (*Manager, error) {
	return NewManagerWithBufferSize(rootDir, 1024*1024) // 1MB default
}

// NewManagerWithBufferSize creates a new filesystem manager with custom buffer size
func NewManagerWithBufferSize(rootDir string, bufferSize int) (*Manager, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache root dir: %w", err)
	}

	if bufferSize <= 0 {
		bufferSize = 1024 * 1024
	}

	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache root dir: %w", err)
	}

	return &Manager{
		rootDir:    abs,
		bufferSize: bufferSize,
	}, nil
}

// RootDir returns the cache root directory
func (m *Manager) RootDir() string {
	return m.rootDir
}

// FindByPrefix scans the root directory (not recursively) for a file whose
// name starts with prefix. Names equal to prefix or starting with prefix+"-"
// win over looser matches; ties are broken by name.
func (m *Manager) FindByPrefix(prefix string) (*port.CachedFile, error) {
	if prefix == "" {
		return nil, domain.ErrNotFound
	}

	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cache dir: %w", err)
	}

	var exact, loose []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, vo.TempSuffix) || !strings.HasPrefix(name, prefix) {
			continue
		}
		if name == prefix || strings.HasPrefix(name, prefix+"-") {
			exact = append(exact, name)
		} else {
			loose = append(loose, name)
		}
	}

	candidates := exact
	if len(candidates) == 0 {
		candidates = loose
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Strings(candidates)

	return m.stat(filepath.Join(m.rootDir, candidates[0]))
}

// Open opens a cached file. Relative paths are resolved against the root.
func (m *Manager) Open(path string) (io.ReadCloser, *port.CachedFile, error) {
	full := m.resolve(path)
	info, err := m.stat(full)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open cached file: %w", err)
	}
	return f, info, nil
}

// WriteFile writes content through a uniquely named temp file and renames
// it into place, so concurrent writers of the same name never share a temp file.
func (m *Manager) WriteFile(name vo.CacheName, reader io.Reader) (string, int64, error) {
	cachePath := filepath.Join(m.rootDir, name.String())

	f, err := os.CreateTemp(m.rootDir, name.TempPattern())
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()

	if err := f.Chmod(0644); err != nil {
		f.Close()
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to set temp file mode: %w", err)
	}

	buf := make([]byte, m.bufferSize)
	written, err := io.CopyBuffer(f, reader, buf)
	if err != nil {
		f.Close()
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tempPath, cachePath); err != nil {
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	return cachePath, written, nil
}

// DeleteFile removes a cached file
func (m *Manager) DeleteFile(path string) error {
	if err := os.Remove(m.resolve(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetCacheSize returns total size of cached files
func (m *Manager) GetCacheSize() (int64, error) {
	var size int64
	err := filepath.Walk(m.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// CleanOldTempFiles removes temp files older than the specified duration
func (m *Manager) CleanOldTempFiles(olderThan time.Duration) (int, error) {
	count := 0
	threshold := time.Now().Add(-olderThan)

	err := filepath.Walk(m.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, vo.TempSuffix) && info.ModTime().Before(threshold) {
			if removeErr := os.Remove(path); removeErr == nil {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (m *Manager) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(m.rootDir, path)
}

func (m *Manager) stat(full string) (*port.CachedFile, error) {
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat cached file: %w", err)
	}
	if info.IsDir() {
		return nil, domain.ErrNotFound
	}
	return &port.CachedFile{
		Path:    full,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

package cacher

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/domain/vo"
	"github.com/vertextoedge/estateshare/internal/port"
)

// Source opens a remote file as its owner
type Source interface {
	Open(ctx context.Context, userID, fileID string) (*domain.RemoteFile, io.ReadCloser, error)
}

// CopyResult describes a file copied into the cache
type CopyResult struct {
	File *domain.RemoteFile
	Path string
	Size int64
}

// Copier copies remote files into the local cache directory
type Copier struct {
	source  Source
	fs      port.CacheFS
	space   port.SpaceManager
	maxSize vo.FileSize
	logger  *zap.Logger
}

// NewCopier creates a new Copier. space may be nil; a zero maxSize means unlimited.
func NewCopier(source Source, fs port.CacheFS, space port.SpaceManager, maxSize vo.FileSize, logger *zap.Logger) *Copier {
	return &Copier{
		source:  source,
		fs:      fs,
		space:   space,
		maxSize: maxSize,
		logger:  logger,
	}
}

// CopyToCache downloads fileID as userID and stores it as <fileId>-<name>.
// Provider errors are returned unchanged.
func (c *Copier) CopyToCache(ctx context.Context, userID, fileID string) (*CopyResult, error) {
	name, err := vo.NewCacheName(fileID, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	meta, body, err := c.source.Open(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if meta.IsFolder() {
		return nil, fmt.Errorf("%w: folders cannot be copied", domain.ErrInvalidInput)
	}

	size, err := vo.NewFileSize(meta.Size)
	if err != nil {
		size = vo.FileSize{}
	}
	if size.ExceedsLimit(c.maxSize) {
		c.logger.Warn("file size exceeds max copy size",
			zap.String("file_id", fileID),
			zap.String("file_size", size.String()),
			zap.String("max_copy_size", c.maxSize.String()))
		return nil, fmt.Errorf("%w: %s exceeds %s", domain.ErrFileTooLarge, size, c.maxSize)
	}

	if c.space != nil {
		check, err := c.space.CheckSpace(size.Bytes())
		if err != nil {
			return nil, fmt.Errorf("space check failed: %w", err)
		}
		if !check.HasSpace {
			c.logger.Warn("no space for local copy",
				zap.String("file_id", fileID),
				zap.Bool("limited_by_cache_size", check.LimitedByCacheSize),
				zap.Bool("limited_by_disk_usage", check.LimitedByDiskUsage))
			return nil, fmt.Errorf("%w: cache has no room for %s", domain.ErrFileTooLarge, size)
		}
	}

	if name, err = vo.NewCacheName(fileID, meta.Name); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	path, written, err := c.fs.WriteFile(name, c.maxSize.LimitReader(body))
	if err != nil {
		if errors.Is(err, vo.ErrSizeExceeded) {
			return nil, fmt.Errorf("%w: %w", domain.ErrFileTooLarge, err)
		}
		return nil, fmt.Errorf("copy to cache failed: %w", err)
	}

	c.logger.Info("file copied to cache",
		zap.String("file_id", fileID),
		zap.String("path", path),
		zap.Int64("size", written))

	return &CopyResult{File: meta, Path: path, Size: written}, nil
}

// Discard removes a copy that no share token ended up referencing
func (c *Copier) Discard(path string) error {
	if err := c.fs.DeleteFile(path); err != nil {
		return err
	}
	c.logger.Info("discarded cached copy", zap.String("path", path))
	return nil
}

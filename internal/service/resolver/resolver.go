package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/domain/event"
	"github.com/vertextoedge/estateshare/internal/domain/vo"
	"github.com/vertextoedge/estateshare/internal/port"
	"github.com/vertextoedge/estateshare/internal/util/ratelimiter"
)

// RemoteOpener opens a remote file as its owner
type RemoteOpener interface {
	Open(ctx context.Context, userID, fileID string) (*domain.RemoteFile, io.ReadCloser, error)
}

// Resolver turns a public identifier into a byte stream. Identifiers are
// either share tokens or legacy "<fileId>[-<name>]" cache names.
type Resolver struct {
	tokens port.ShareTokenRepository
	cache  port.CacheFS
	remote RemoteOpener
	events event.EventDispatcher
	logger *zap.Logger
	warn   *ratelimiter.Limiter
	now    func() time.Time
}

// New creates a new Resolver
func New(
	tokens port.ShareTokenRepository,
	cache port.CacheFS,
	remote RemoteOpener,
	events event.EventDispatcher,
	logger *zap.Logger,
) *Resolver {
	if events == nil {
		events = event.NewNullDispatcher()
	}
	return &Resolver{
		tokens: tokens,
		cache:  cache,
		remote: remote,
		events: events,
		logger: logger,
		warn:   ratelimiter.New(time.Minute),
		now:    time.Now,
	}
}

// SetClock replaces the time source
func (r *Resolver) SetClock(now func() time.Time) {
	r.now = now
}

// Resolve returns the content for identifier. The caller must close Content.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*domain.ResolvedFile, error) {
	switch domain.ClassifyIdentifier(identifier) {
	case domain.AddressToken:
		return r.resolveToken(ctx, identifier)
	default:
		return r.resolveLegacy(ctx, identifier)
	}
}

func (r *Resolver) resolveToken(ctx context.Context, identifier string) (*domain.ResolvedFile, error) {
	token, err := vo.NewShareToken(identifier)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	share, err := r.tokens.GetActiveShareToken(ctx, token.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load share token: %w", err)
	}
	if share == nil {
		return nil, domain.ErrNotFound
	}
	if err := share.ValidateAccess(r.now()); err != nil {
		return nil, err
	}

	var file *domain.ResolvedFile
	if share.IsLocalFile {
		file, err = r.openLocal(share)
	} else {
		file, err = r.openRemote(ctx, share)
	}
	if err != nil {
		return nil, err
	}

	count, err := r.tokens.IncrementDownloadCount(ctx, share.Token)
	if err != nil {
		file.Content.Close()
		return nil, fmt.Errorf("failed to record download: %w", err)
	}

	r.logger.Debug("share token resolved",
		zap.String("token", token.Masked()),
		zap.String("file_id", share.FileID),
		zap.Bool("local", file.IsLocal),
		zap.Int64("download_count", count))
	r.events.Dispatch(event.NewShareResolved(r.now(), domain.AddressToken.String(), share.FileID,
		token.Masked(), file.IsLocal, file.Size, count))

	return file, nil
}

// openLocal prefers the stored path and falls back to a prefix scan for rows
// created before the path was recorded or after the cache moved.
func (r *Resolver) openLocal(share *domain.ShareToken) (*domain.ResolvedFile, error) {
	var (
		content io.ReadCloser
		info    *port.CachedFile
		err     error
	)
	if share.LocalFilePath != "" {
		content, info, err = r.cache.Open(share.LocalFilePath)
	} else {
		err = domain.ErrNotFound
	}
	if errors.Is(err, domain.ErrNotFound) {
		content, info, err = r.openByPrefix(share.FileID)
	}
	if err != nil {
		return nil, err
	}

	name := share.FileName
	if name == "" {
		name = vo.DisplayName(info.Name, share.FileID)
	}
	return &domain.ResolvedFile{
		Content:  content,
		Name:     name,
		MimeType: MimeTypeFor(name),
		Size:     info.Size,
		IsLocal:  true,
	}, nil
}

func (r *Resolver) openByPrefix(fileID string) (io.ReadCloser, *port.CachedFile, error) {
	if fileID == "" {
		return nil, nil, domain.ErrNotFound
	}
	found, err := r.cache.FindByPrefix(fileID)
	if err != nil {
		return nil, nil, err
	}
	return r.cache.Open(found.Path)
}

// openRemote streams the file through the owner's connection. Without one the
// link is unreachable until the owner reconnects.
func (r *Resolver) openRemote(ctx context.Context, share *domain.ShareToken) (*domain.ResolvedFile, error) {
	meta, body, err := r.remote.Open(ctx, share.UserID, share.FileID)
	if err != nil {
		if domain.NeedsReconnect(err) {
			return nil, fmt.Errorf("%w: share owner has no live connection (%v)", domain.ErrProviderUnavailable, err)
		}
		return nil, err
	}

	name := meta.Name
	if name == "" {
		name = share.FileName
	}
	mimeType := meta.MimeType
	if mimeType == "" {
		mimeType = MimeTypeFor(name)
	}
	size := meta.Size
	if size <= 0 {
		size = -1
	}
	return &domain.ResolvedFile{
		Content:  body,
		Name:     name,
		MimeType: mimeType,
		Size:     size,
		IsLocal:  false,
	}, nil
}

func (r *Resolver) resolveLegacy(ctx context.Context, identifier string) (*domain.ResolvedFile, error) {
	fileID := domain.LegacyFileID(identifier)
	content, info, err := r.openByPrefix(fileID)
	if err != nil {
		return nil, err
	}

	name := vo.DisplayName(info.Name, fileID)
	file := &domain.ResolvedFile{
		Content:  content,
		Name:     name,
		MimeType: MimeTypeFor(name),
		Size:     info.Size,
		IsLocal:  true,
	}

	count := r.countLegacy(ctx, fileID)
	r.logger.Debug("legacy identifier resolved",
		zap.String("file_id", fileID),
		zap.String("cached_name", info.Name))
	r.events.Dispatch(event.NewShareResolved(r.now(), domain.AddressLegacy.String(), fileID,
		"", true, file.Size, count))

	return file, nil
}

// countLegacy bumps the counter of a matching local share row if one exists.
// Failures are logged and never fail the download.
func (r *Resolver) countLegacy(ctx context.Context, fileID string) int64 {
	share, err := r.tokens.FindLocalShareByFileID(ctx, fileID)
	if err == nil && share == nil {
		return 0
	}
	var count int64
	if err == nil {
		count, err = r.tokens.IncrementDownloadCount(ctx, share.Token)
	}
	if err != nil {
		if ok, _ := r.warn.Allow(fileID); ok {
			r.logger.Warn("failed to record legacy download",
				zap.String("file_id", fileID),
				zap.Error(err))
		}
		return 0
	}
	return count
}

// PruneWarnings drops throttling state for quiet keys
func (r *Resolver) PruneWarnings() int {
	return r.warn.Prune()
}

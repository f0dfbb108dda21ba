package sharing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/domain/event"
	"github.com/vertextoedge/estateshare/internal/domain/vo"
	"github.com/vertextoedge/estateshare/internal/port"
	"github.com/vertextoedge/estateshare/internal/service/cacher"
)

const (
	DefaultExpirationDays = 365
	MaxExpirationDays     = 36500
)

// Config contains share link configuration
type Config struct {
	FrontendURL           string
	APIURL                string
	DefaultExpirationDays int
}

// FileLookup confirms a caller can reach a remote file
type FileLookup interface {
	GetFileByID(ctx context.Context, userID, fileID string) (*domain.RemoteFile, error)
}

// LocalCopier copies a remote file into the local cache
type LocalCopier interface {
	CopyToCache(ctx context.Context, userID, fileID string) (*cacher.CopyResult, error)
	Discard(path string) error
}

// IssueOptions tunes a new share link
type IssueOptions struct {
	ExpirationDays int  `json:"expirationDays,omitempty"`
	Local          bool `json:"local,omitempty"`
}

// Issuer mints, lists and revokes share tokens
type Issuer struct {
	config *Config
	files  FileLookup
	copier LocalCopier
	tokens port.ShareTokenRepository
	events event.EventDispatcher
	logger *zap.Logger
	now    func() time.Time
}

// NewIssuer creates a new Issuer. A nil copier disables local-copy sharing.
func NewIssuer(
	cfg *Config,
	files FileLookup,
	copier LocalCopier,
	tokens port.ShareTokenRepository,
	events event.EventDispatcher,
	logger *zap.Logger,
) *Issuer {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.DefaultExpirationDays <= 0 {
		cfg.DefaultExpirationDays = DefaultExpirationDays
	}
	if events == nil {
		events = event.NewNullDispatcher()
	}
	return &Issuer{
		config: cfg,
		files:  files,
		copier: copier,
		tokens: tokens,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source
func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

// Issue creates a share token for a file userID can currently access
func (i *Issuer) Issue(ctx context.Context, userID, fileID string, opts IssueOptions) (*domain.IssuedShare, error) {
	if strings.TrimSpace(fileID) == "" {
		return nil, fmt.Errorf("%w: file id is required", domain.ErrInvalidInput)
	}
	days := opts.ExpirationDays
	if days == 0 {
		days = i.config.DefaultExpirationDays
	}
	if days < 0 || days > MaxExpirationDays {
		return nil, fmt.Errorf("%w: expirationDays must be between 1 and %d", domain.ErrInvalidInput, MaxExpirationDays)
	}

	share := &domain.ShareToken{
		FileID:   fileID,
		UserID:   userID,
		IsActive: true,
	}

	if opts.Local {
		if i.copier == nil {
			return nil, fmt.Errorf("%w: local sharing is disabled", domain.ErrInvalidInput)
		}
		res, err := i.copier.CopyToCache(ctx, userID, fileID)
		if err != nil {
			return nil, accessError(err)
		}
		share.FileName = res.File.Name
		share.IsLocalFile = true
		share.LocalFilePath = res.Path
	} else {
		meta, err := i.files.GetFileByID(ctx, userID, fileID)
		if err != nil {
			return nil, accessError(err)
		}
		share.FileName = meta.Name
	}

	token, err := vo.GenerateShareToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate share token: %w", err)
	}

	now := i.now()
	share.Token = token.String()
	share.CreatedAt = now
	share.ExpiresAt = now.AddDate(0, 0, days)

	if err := i.tokens.CreateShareToken(ctx, share); err != nil {
		if share.IsLocalFile {
			if derr := i.copier.Discard(share.LocalFilePath); derr != nil {
				i.logger.Warn("failed to discard orphaned local copy",
					zap.String("path", share.LocalFilePath),
					zap.Error(derr))
			}
		}
		return nil, fmt.Errorf("failed to save share token: %w", err)
	}

	i.logger.Info("share token issued",
		zap.String("user_id", userID),
		zap.String("file_id", fileID),
		zap.String("token", token.Masked()),
		zap.Bool("local", share.IsLocalFile),
		zap.Time("expires_at", share.ExpiresAt))
	i.events.Dispatch(event.NewShareIssued(now, userID, fileID, token.Masked(), share.IsLocalFile, share.ExpiresAt))

	return &domain.IssuedShare{
		Token:       share.Token,
		ShareURL:    i.ShareURL(share.Token),
		DownloadURL: i.DownloadURL(share.Token),
		ExpiresAt:   share.ExpiresAt,
	}, nil
}

// Revoke deactivates a token owned by userID. Revoking twice is not an error.
func (i *Issuer) Revoke(ctx context.Context, userID, token string) error {
	share, err := i.owned(ctx, userID, token)
	if err != nil {
		return err
	}

	if share.IsActive {
		if err := i.tokens.DeactivateShareToken(ctx, share.Token); err != nil {
			return fmt.Errorf("failed to revoke share token: %w", err)
		}
	}

	masked := share.GetToken().Masked()
	i.logger.Info("share token revoked",
		zap.String("user_id", userID),
		zap.String("token", masked))
	i.events.Dispatch(event.NewShareRevoked(i.now(), userID, masked))
	return nil
}

// List returns the caller's active tokens, newest first
func (i *Issuer) List(ctx context.Context, userID string) ([]*domain.ShareToken, error) {
	shares, err := i.tokens.ListActiveShareTokens(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list share tokens: %w", err)
	}
	return shares, nil
}

// Stats returns usage of a token owned by userID
func (i *Issuer) Stats(ctx context.Context, userID, token string) (*domain.ShareStats, error) {
	share, err := i.owned(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	stats := share.Stats(i.now())
	return &stats, nil
}

// ShareURL returns the viewer link for token
func (i *Issuer) ShareURL(token string) string {
	return strings.TrimRight(i.config.FrontendURL, "/") + "/shared/" + token
}

// DownloadURL returns the direct download link for token
func (i *Issuer) DownloadURL(token string) string {
	return strings.TrimRight(i.config.APIURL, "/") + "/api/public/files/" + token
}

// owned loads a token and checks ownership; foreign and unknown tokens look the same
func (i *Issuer) owned(ctx context.Context, userID, token string) (*domain.ShareToken, error) {
	st, err := vo.NewShareToken(token)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	share, err := i.tokens.GetShareToken(ctx, st.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load share token: %w", err)
	}
	if share == nil || !share.IsOwnedBy(userID) {
		return nil, domain.ErrNotFound
	}
	return share, nil
}

// accessError tags a failed access check. Credential, availability and local
// copy errors keep their own meaning.
func accessError(err error) error {
	switch {
	case domain.NeedsReconnect(err),
		errors.Is(err, domain.ErrProviderUnavailable),
		errors.Is(err, domain.ErrFileTooLarge),
		errors.Is(err, domain.ErrInvalidInput):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrFileNotAccessible, err)
	}
}

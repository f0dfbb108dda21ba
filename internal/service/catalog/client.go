package catalog

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/port"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 1000

	DefaultFileOrder   = "modifiedTime desc"
	DefaultFolderOrder = "folder,modifiedTime desc"
	RootFolderID       = "root"
)

// CredentialSource hands out a live credential for a user
type CredentialSource interface {
	GetLiveCredential(ctx context.Context, userID string) (domain.Credential, error)
}

// Client is the user-scoped remote catalog. Every call obtains a live
// credential and builds a fresh provider client from it.
type Client struct {
	creds   CredentialSource
	factory port.CatalogFactory
	logger  *zap.Logger
}

// NewClient creates a new Client
func NewClient(creds CredentialSource, factory port.CatalogFactory, logger *zap.Logger) *Client {
	return &Client{
		creds:   creds,
		factory: factory,
		logger:  logger,
	}
}

func (c *Client) catalogFor(ctx context.Context, userID string) (port.Catalog, error) {
	cred, err := c.creds.GetLiveCredential(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.factory.NewCatalog(ctx, cred)
}

// ListFiles lists non-folder items, newest first by default
func (c *Client) ListFiles(ctx context.Context, userID string, opts domain.ListFilesOptions) (*domain.FileList, error) {
	cat, err := c.catalogFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = DefaultFileOrder
	}
	list, err := cat.List(ctx, domain.CatalogQuery{
		ParentID:     opts.FolderID,
		ExcludeDirs:  true,
		NameContains: opts.Query,
		OrderBy:      orderBy,
		PageSize:     pageSize(opts.PageSize),
		PageToken:    opts.PageToken,
	})
	if err != nil {
		c.logger.Debug("list files failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return list, nil
}

// ListFolders lists the children of a folder with folders first
func (c *Client) ListFolders(ctx context.Context, userID string, opts domain.ListFoldersOptions) (*domain.FileList, error) {
	cat, err := c.catalogFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	parentID := opts.ParentID
	if parentID == "" {
		parentID = RootFolderID
	}
	list, err := cat.List(ctx, domain.CatalogQuery{
		ParentID:  parentID,
		OrderBy:   DefaultFolderOrder,
		PageSize:  pageSize(opts.PageSize),
		PageToken: opts.PageToken,
	})
	if err != nil {
		c.logger.Debug("list folders failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return list, nil
}

// GetFileByID returns metadata for a single item
func (c *Client) GetFileByID(ctx context.Context, userID, fileID string) (*domain.RemoteFile, error) {
	cat, err := c.catalogFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cat.Get(ctx, fileID)
}

// GetFolderByID returns metadata for a folder. Non-folder items are not found.
func (c *Client) GetFolderByID(ctx context.Context, userID, folderID string) (*domain.RemoteFile, error) {
	f, err := c.GetFileByID(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}
	if !f.IsFolder() {
		return nil, fmt.Errorf("%w: %s is not a folder", domain.ErrNotFound, folderID)
	}
	return f, nil
}

// DownloadFile opens the content of fileID. The caller must close the stream.
func (c *Client) DownloadFile(ctx context.Context, userID, fileID string) (io.ReadCloser, error) {
	cat, err := c.catalogFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cat.Download(ctx, fileID)
}

// Open returns metadata and content for fileID from one catalog instance
func (c *Client) Open(ctx context.Context, userID, fileID string) (*domain.RemoteFile, io.ReadCloser, error) {
	cat, err := c.catalogFor(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	meta, err := cat.Get(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	body, err := cat.Download(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	return meta, body, nil
}

func pageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}

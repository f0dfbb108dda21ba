package googledrive

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/port"
)

const (
	fileFields = "id, name, mimeType, size, modifiedTime, parents, webViewLink, thumbnailLink"
	listFields = "nextPageToken, files(" + fileFields + ")"

	defaultPageSize = 100
	maxPageSize     = 1000
)

// CatalogConfig configures Drive clients
type CatalogConfig struct {
	// RequestTimeout bounds metadata calls
	RequestTimeout time.Duration
	// HeaderTimeout bounds the wait for a download response; the body streams unbounded
	HeaderTimeout time.Duration
	// APIEndpoint overrides the Drive base URL, mainly for tests
	APIEndpoint string
}

// CatalogFactory builds a Drive client per operation from a live credential
type CatalogFactory struct {
	transport      http.RoundTripper
	requestTimeout time.Duration
	apiEndpoint    string
}

// Ensure CatalogFactory implements port.CatalogFactory
var _ port.CatalogFactory = (*CatalogFactory)(nil)

// NewCatalogFactory creates a new CatalogFactory
func NewCatalogFactory(cfg CatalogConfig) *CatalogFactory {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.HeaderTimeout <= 0 {
		cfg.HeaderTimeout = cfg.RequestTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.HeaderTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   10,
	}

	return &CatalogFactory{
		transport:      transport,
		requestTimeout: cfg.RequestTimeout,
		apiEndpoint:    cfg.APIEndpoint,
	}
}

// NewCatalog returns a Drive client bound to cred
func (f *CatalogFactory) NewCatalog(ctx context.Context, cred domain.Credential) (port.Catalog, error) {
	client := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.AccessToken, TokenType: "Bearer"}),
			Base:   f.transport,
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if f.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(f.apiEndpoint))
	}

	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive client: %w", err)
	}
	return &Catalog{service: srv, requestTimeout: f.requestTimeout}, nil
}

// Catalog implements port.Catalog for one credential
type Catalog struct {
	service        *drive.Service
	requestTimeout time.Duration
}

// List lists one page of files
func (c *Catalog) List(ctx context.Context, q domain.CatalogQuery) (*domain.FileList, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	call := c.service.Files.List().
		Q(BuildQuery(q)).
		Fields(googleapi.Field(listFields)).
		PageSize(int64(clampPageSize(q.PageSize))).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx)
	if q.PageToken != "" {
		call = call.PageToken(q.PageToken)
	}
	if q.OrderBy != "" {
		call = call.OrderBy(q.OrderBy)
	}

	r, err := call.Do()
	if err != nil {
		return nil, classifyAPIError(err)
	}

	list := &domain.FileList{
		Files:         make([]*domain.RemoteFile, 0, len(r.Files)),
		NextPageToken: r.NextPageToken,
	}
	for _, f := range r.Files {
		list.Files = append(list.Files, toRemoteFile(f))
	}
	return list, nil
}

// Get retrieves file metadata
func (c *Catalog) Get(ctx context.Context, fileID string) (*domain.RemoteFile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	f, err := c.service.Files.Get(fileID).
		SupportsAllDrives(true).
		Fields(googleapi.Field(fileFields)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyAPIError(err)
	}
	return toRemoteFile(f), nil
}

// Download opens the file content. The caller must close the stream.
func (c *Catalog) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := c.service.Files.Get(fileID).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, classifyAPIError(err)
	}
	return resp.Body, nil
}

// BuildQuery renders a Drive search expression. Trashed items are always excluded.
func BuildQuery(q domain.CatalogQuery) string {
	clauses := []string{"trashed = false"}
	if q.ParentID != "" {
		clauses = append(clauses, fmt.Sprintf("'%s' in parents", escapeQuery(q.ParentID)))
	}
	if q.ExcludeDirs {
		clauses = append(clauses, fmt.Sprintf("mimeType != '%s'", domain.FolderMimeType))
	}
	if q.NameContains != "" {
		clauses = append(clauses, fmt.Sprintf("name contains '%s'", escapeQuery(q.NameContains)))
	}
	return strings.Join(clauses, " and ")
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func clampPageSize(n int) int {
	switch {
	case n <= 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	default:
		return n
	}
}

func toRemoteFile(f *drive.File) *domain.RemoteFile {
	rf := &domain.RemoteFile{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		Size:         f.Size,
		Parents:      f.Parents,
		WebViewLink:  f.WebViewLink,
		ThumbnailURL: f.ThumbnailLink,
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		rf.ModifiedTime = &t
	}
	return rf
}

package port

import (
	"context"
	"io"

	"github.com/vertextoedge/estateshare/internal/domain"
)

// OAuthProvider is the remote storage provider's OAuth2 surface
type OAuthProvider interface {
	// AuthCodeURL returns the consent URL for the given state
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for tokens
	Exchange(ctx context.Context, code string) (*domain.TokenGrant, error)

	// Refresh trades a refresh token for a new access token.
	// The returned RefreshToken is empty unless the provider rotated it.
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenGrant, error)

	// Revoke invalidates a token at the provider
	Revoke(ctx context.Context, token string) error

	// AccountLabel returns the provider account identifier (email) for an access token
	AccountLabel(ctx context.Context, accessToken string) (string, error)
}

// Catalog is a short-lived provider client bound to one credential
type Catalog interface {
	List(ctx context.Context, q domain.CatalogQuery) (*domain.FileList, error)
	Get(ctx context.Context, fileID string) (*domain.RemoteFile, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// CatalogFactory builds a Catalog for a credential. Callers build one per operation.
type CatalogFactory interface {
	NewCatalog(ctx context.Context, cred domain.Credential) (Catalog, error)
}

package googledrive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/port"
)

const (
	DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

	// defaultTokenLifetime applies when the token endpoint omits expires_in
	defaultTokenLifetime = time.Hour
)

// DefaultScopes grants read access to file content plus the account email.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/drive.readonly",
	"https://www.googleapis.com/auth/userinfo.email",
}

// ProviderConfig configures the Google OAuth2 provider
type ProviderConfig struct {
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	Scopes         []string
	RequestTimeout time.Duration

	// Overrides, mainly for tests
	AuthURL     string
	TokenURL    string
	RevokeURL   string
	APIEndpoint string
}

// Provider implements port.OAuthProvider against Google's OAuth2 endpoints
type Provider struct {
	config      *oauth2.Config
	httpClient  *http.Client
	revokeURL   string
	apiEndpoint string
	now         func() time.Time
}

// Ensure Provider implements port.OAuthProvider
var _ port.OAuthProvider = (*Provider)(nil)

// NewProvider creates a new Provider
func NewProvider(cfg ProviderConfig) *Provider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}

	revokeURL := cfg.RevokeURL
	if revokeURL == "" {
		revokeURL = DefaultRevokeURL
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		httpClient:  &http.Client{Timeout: timeout},
		revokeURL:   revokeURL,
		apiEndpoint: cfg.APIEndpoint,
		now:         time.Now,
	}
}

// AuthCodeURL requests offline access so the first exchange returns a refresh token
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens
func (p *Provider) Exchange(ctx context.Context, code string) (*domain.TokenGrant, error) {
	tok, err := p.config.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, classifyTokenError(domain.ErrAuthExchange, err)
	}
	return p.grant(tok, ""), nil
}

// Refresh trades a refresh token for a new access token
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*domain.TokenGrant, error) {
	src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, classifyTokenError(domain.ErrCredentialExpired, err)
	}
	return p.grant(tok, refreshToken), nil
}

// Revoke invalidates a token at Google
func (p *Provider) Revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("revoke failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// AccountLabel returns the email of the account owning accessToken
func (p *Provider) AccountLabel(ctx context.Context, accessToken string) (string, error) {
	opts := []option.ClientOption{option.WithHTTPClient(p.bearerClient(accessToken))}
	if p.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(p.apiEndpoint))
	}

	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("unable to create userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", classifyAPIError(err)
	}
	if info.Email != "" {
		return info.Email, nil
	}
	return info.Id, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *Provider) bearerClient(accessToken string) *http.Client {
	return &http.Client{
		Timeout: p.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
		},
	}
}

// grant converts an oauth2 token. previousRefresh is dropped from the grant so
// callers can tell whether the provider rotated it.
func (p *Provider) grant(tok *oauth2.Token, previousRefresh string) *domain.TokenGrant {
	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = p.now().Add(defaultTokenLifetime)
	}
	refresh := tok.RefreshToken
	if refresh == previousRefresh {
		refresh = ""
	}
	return &domain.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}
}

package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vertextoedge/estateshare/internal/crypto"
	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/domain/event"
	"go.uber.org/zap"
)

// mockProvider implements port.OAuthProvider for testing
type mockProvider struct {
	mu           sync.Mutex
	now          func() time.Time
	exchangeErr  error
	refreshErr   error
	revokeErr    error
	labelErr     error
	rotate       bool
	refreshCalls int
	revoked      []string
}

func (m *mockProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (m *mockProvider) Exchange(_ context.Context, code string) (*domain.TokenGrant, error) {
	if m.exchangeErr != nil {
		return nil, m.exchangeErr
	}
	return &domain.TokenGrant{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		ExpiresAt:    m.now().Add(time.Hour),
	}, nil
}

func (m *mockProvider) Refresh(_ context.Context, refreshToken string) (*domain.TokenGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCalls++
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	grant := &domain.TokenGrant{
		AccessToken: fmt.Sprintf("refreshed-%d", m.refreshCalls),
		ExpiresAt:   m.now().Add(time.Hour),
	}
	if m.rotate {
		grant.RefreshToken = refreshToken + "-rotated"
	}
	return grant, nil
}

func (m *mockProvider) Revoke(_ context.Context, token string) error {
	m.revoked = append(m.revoked, token)
	return m.revokeErr
}

func (m *mockProvider) AccountLabel(_ context.Context, accessToken string) (string, error) {
	if m.labelErr != nil {
		return "", m.labelErr
	}
	return "agent@example.com", nil
}

func (m *mockProvider) refreshes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCalls
}

// mockConnectionRepository implements port.ConnectionRepository for testing
type mockConnectionRepository struct {
	mu    sync.Mutex
	conns map[string]domain.Connection
}

func newMockConnectionRepository() *mockConnectionRepository {
	return &mockConnectionRepository{conns: make(map[string]domain.Connection)}
}

func (m *mockConnectionRepository) GetConnectionByUser(_ context.Context, userID string) (*domain.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[userID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *mockConnectionRepository) UpsertConnection(_ context.Context, conn *domain.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *conn
	if old, ok := m.conns[conn.UserID]; ok && c.RefreshToken == "" {
		c.RefreshToken = old.RefreshToken
	}
	m.conns[conn.UserID] = c
	return nil
}

func (m *mockConnectionRepository) UpdateConnectionTokens(_ context.Context, userID string, grant *domain.TokenGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[userID]
	if !ok {
		return domain.ErrNotFound
	}
	c.ApplyGrant(grant)
	m.conns[userID] = c
	return nil
}

func (m *mockConnectionRepository) DeactivateConnection(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[userID]
	if !ok {
		return domain.ErrNotFound
	}
	c.IsActive = false
	m.conns[userID] = c
	return nil
}

func (m *mockConnectionRepository) DeleteConnection(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, userID)
	return nil
}

func (m *mockConnectionRepository) stored(userID string) (domain.Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[userID]
	return c, ok
}

func (m *mockConnectionRepository) setExpiry(userID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.conns[userID]
	c.ExpiresAt = at
	m.conns[userID] = c
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	manager  *Manager
	provider *mockProvider
	repo     *mockConnectionRepository
	clock    *testClock
	metrics  *event.MetricsHandler
}

func newFixture(t *testing.T, cfg *Config) *fixture {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	provider := &mockProvider{now: clock.Now}
	repo := newMockConnectionRepository()
	metrics := event.NewMetricsHandler()
	dispatcher := event.NewInMemoryDispatcher(false, zap.NewNop())
	dispatcher.Subscribe(metrics)

	m := NewManager(cfg, provider, repo, crypto.NewMockEncryptor(), dispatcher, zap.NewNop())
	m.SetClock(clock.Now)
	return &fixture{manager: m, provider: provider, repo: repo, clock: clock, metrics: metrics}
}

func TestManager_ConnectWithCode(t *testing.T) {
	f := newFixture(t, nil)

	conn, err := f.manager.Connect(context.Background(), "user-1", ConnectInput{Code: "abc"})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if conn.AccessToken != "access-abc" || conn.RefreshToken != "refresh-abc" || conn.AccountLabel != "agent@example.com" {
		t.Errorf("unexpected connection %+v", conn)
	}

	stored, _ := f.repo.stored("user-1")
	if !strings.HasPrefix(stored.AccessToken, "mock:") || !strings.HasPrefix(stored.RefreshToken, "mock:") {
		t.Errorf("tokens must be encrypted at rest, got %q / %q", stored.AccessToken, stored.RefreshToken)
	}
	if !stored.IsActive {
		t.Error("stored connection should be active")
	}
	if got := f.metrics.GetMetrics()["connections_established"]; got != 1 {
		t.Errorf("connections_established = %d", got)
	}
}

func TestManager_ConnectRejected(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *mockProvider)
		input ConnectInput
		want  error
	}{
		{"no input", func(p *mockProvider) {}, ConnectInput{}, domain.ErrAuthExchange},
		{
			"exchange rejected",
			func(p *mockProvider) { p.exchangeErr = fmt.Errorf("%w: invalid_grant", domain.ErrAuthExchange) },
			ConnectInput{Code: "stale"},
			domain.ErrAuthExchange,
		},
		{
			"malformed direct token",
			func(p *mockProvider) { p.labelErr = fmt.Errorf("%w: 401", domain.ErrCredentialExpired) },
			ConnectInput{AccessToken: "garbage"},
			domain.ErrAuthExchange,
		},
		{
			"provider down during lookup",
			func(p *mockProvider) {
				p.labelErr = domain.NewRetryableError(domain.ErrProviderUnavailable, 0)
			},
			ConnectInput{AccessToken: "tok"},
			domain.ErrProviderUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			tt.setup(f.provider)

			_, err := f.manager.Connect(context.Background(), "user-1", tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if _, ok := f.repo.stored("user-1"); ok {
				t.Error("failed connect must not persist a connection")
			}
		})
	}
}

func TestManager_ConnectDirectTokens(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	conn, err := f.manager.Connect(ctx, "user-1", ConnectInput{AccessToken: "direct", RefreshToken: "r1"})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if want := f.clock.Now().Add(time.Hour); !conn.ExpiresAt.Equal(want) {
		t.Errorf("default expiry = %v, want %v", conn.ExpiresAt, want)
	}

	// reconnect without a refresh token keeps the stored one and reactivates
	f.repo.DeactivateConnection(ctx, "user-1")
	exp := f.clock.Now().Add(30 * time.Minute)
	conn, err = f.manager.Connect(ctx, "user-1", ConnectInput{AccessToken: "direct-2", ExpiresAt: &exp})
	if err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}
	if conn.RefreshToken != "r1" || !conn.ExpiresAt.Equal(exp) {
		t.Errorf("unexpected connection after reconnect %+v", conn)
	}

	cred, err := f.manager.GetLiveCredential(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetLiveCredential failed: %v", err)
	}
	if cred.AccessToken != "direct-2" || cred.RefreshToken != "r1" {
		t.Errorf("unexpected credential %+v", cred)
	}
}

func TestManager_GetLiveCredentialNoRefreshNeeded(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.manager.Connect(ctx, "user-1", ConnectInput{Code: "abc"})

	for i := 0; i < 3; i++ {
		cred, err := f.manager.GetLiveCredential(ctx, "user-1")
		if err != nil {
			t.Fatalf("GetLiveCredential failed: %v", err)
		}
		if cred.AccessToken != "access-abc" || cred.RefreshToken != "refresh-abc" {
			t.Errorf("credential changed without refresh: %+v", cred)
		}
	}
	if n := f.provider.refreshes(); n != 0 {
		t.Errorf("expected no refresh calls, got %d", n)
	}
}

func TestManager_RefreshInsideMargin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.manager.Connect(ctx, "user-1", ConnectInput{Code: "abc"})

	before, _ := f.repo.stored("user-1")
	f.repo.setExpiry("user-1", f.clock.Now().Add(time.Minute))

	cred, err := f.manager.GetLiveCredential(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetLiveCredential failed: %v", err)
	}
	if cred.AccessToken != "refreshed-1" {
		t.Errorf("access token = %q", cred.AccessToken)
	}

	after, _ := f.repo.stored("user-1")
	if after.AccessToken == before.AccessToken {
		t.Error("stored access token should change")
	}
	if !after.ExpiresAt.After(f.clock.Now().Add(time.Minute)) {
		t.Errorf("expiry did not advance: %v", after.ExpiresAt)
	}
	if after.RefreshToken != before.RefreshToken {
		t.Error("refresh token should be kept when the provider does not rotate it")
	}
	if got := f.metrics.GetMetrics()["tokens_refreshed"]; got != 1 {
		t.Errorf("tokens_refreshed = %d", got)
	}
}

func TestManager_RefreshRotatesRefreshToken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.provider.rotate = true
	f.manager.Connect(ctx, "user-1", ConnectInput{Code: "abc"})
	f.clock.Advance(58 * time.Minute)

	cred, err := f.manager.GetLiveCredential(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetLiveCredential failed: %v", err)
	}
	if cred.RefreshToken != "refresh-abc-rotated" {
		t.Errorf("refresh token = %q", cred.RefreshToken)
	}
}

func TestManager_ExpiredWithoutRefreshToken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.manager.Connect(ctx, "user-1", ConnectInput{AccessToken: "direct"})

	// inside the margin the current token is still usable
	f.clock.Advance(57 * time.Minute)
	cred, err := f.manager.GetLiveCredential(ctx, "user-1")
	if err != nil || cred.AccessToken != "direct" {
		t.Fatalf("expected current token inside margin, got %+v, %v", cred, err)
	}

	f.clock.Advance(3 * time.Minute)
	if _, err := f.manager.GetLiveCredential(ctx, "user-1"); !errors.Is(err, domain.ErrCredentialExpired) {
		t.Fatalf("expected ErrCredentialExpired, got %v", err)
	}
	stored, _ := f.repo.stored("user-1")
	if stored.IsActive {
		t.Error("connection should be deactivated")
	}
	if _, err := f.manager.GetLiveCredential(ctx, "user-1"); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected after deactivation, got %v", err)
	}
	if got := f.metrics.GetMetrics()["credentials_expired"]; got != 1 {
		t.Errorf("credentials_expired = %d", got)
	}
}

func TestManager_RefreshFailures(t *testing.T) {
	rejected := fmt.Errorf("%w: invalid_grant", domain.ErrCredentialExpired)
	outage := domain.NewRetryableError(fmt.Errorf("%w: 503", domain.ErrProviderUnavailable), 0)

	tests := []struct {
		name           string
		refreshErr     error
		advance        time.Duration
		wantErr        error
		wantActive     bool
		wantAccessFrom string
	}{
		{"rejected after expiry", rejected, 2 * time.Hour, domain.ErrCredentialExpired, false, ""},
		{"rejected inside margin", rejected, 58 * time.Minute, domain.ErrCredentialExpired, true, ""},
		{"outage after expiry", outage, 2 * time.Hour, domain.ErrProviderUnavailable, true, ""},
		{"outage inside margin", outage, 58 * time.Minute, nil, true, "access-abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()
			f.manager.Connect(ctx, "user-1", ConnectInput{Code: "abc"})
			f.provider.refreshErr = tt.refreshErr
			f.clock.Advance(tt.advance)

			cred, err := f.manager.GetLiveCredential(ctx, "user-1")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				if cred.AccessToken != tt.wantAccessFrom {
					t.Errorf("access token = %q", cred.AccessToken)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			stored, _ := f.repo.stored("user-1")
			if stored.IsActive != tt.wantActive {
				t.Errorf("IsActive = %v, want %v", stored.IsActive, tt.wantActive)
			}
		})
	}
}

func TestManager_SerializedRefresh(t *testing.T) {
	f := newFixture(t, &Config{SerializeRefresh: true})
	ctx := context.Background()
	f.manager.Connect(ctx, "user-1", ConnectInput{Code: "abc"})
	f.clock.Advance(58 * time.Minute)

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.manager.GetLiveCredential(ctx, "user-1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("GetLiveCredential failed: %v", err)
	}

	if n := f.provider.refreshes(); n != 1 {
		t.Errorf("expected exactly one refresh, got %d", n)
	}
}

func TestManager_Disconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("revoked", func(t *testing.T) {
		f := newFixture(t, nil)
		f.manager.Connect(ctx, "user-1", ConnectInput{Code: "abc"})

		if err := f.manager.Disconnect(ctx, "user-1"); err != nil {
			t.Fatalf("Disconnect failed: %v", err)
		}
		if len(f.provider.revoked) != 1 || f.provider.revoked[0] != "access-abc" {
			t.Errorf("revoked = %v", f.provider.revoked)
		}
		if _, ok := f.repo.stored("user-1"); ok {
			t.Error("connection row should be removed")
		}
	})

	t.Run("revoke fails", func(t *testing.T) {
		f := newFixture(t, nil)
		f.manager.Connect(ctx, "user-1", ConnectInput{Code: "abc"})
		f.provider.revokeErr = errors.New("network unreachable")

		if err := f.manager.Disconnect(ctx, "user-1"); err != nil {
			t.Fatalf("revoke failure must not fail disconnect: %v", err)
		}
		stored, ok := f.repo.stored("user-1")
		if !ok || stored.IsActive {
			t.Errorf("connection should be kept inactive, got %+v (exists=%v)", stored, ok)
		}
		status, _ := f.manager.GetStatus(ctx, "user-1")
		if status.Connected {
			t.Error("status should report disconnected")
		}
	})

	t.Run("not connected", func(t *testing.T) {
		f := newFixture(t, nil)
		if err := f.manager.Disconnect(ctx, "nobody"); !errors.Is(err, domain.ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
	})
}

func TestManager_GetStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	status, err := f.manager.GetStatus(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if status.Connected || status.ExpiresAt != nil || status.NeedsRefresh != nil {
		t.Errorf("unexpected status for missing connection: %+v", status)
	}

	f.manager.Connect(ctx, "user-1", ConnectInput{Code: "abc"})
	status, _ = f.manager.GetStatus(ctx, "user-1")
	if !status.Connected || status.AccountLabel != "agent@example.com" || *status.NeedsRefresh {
		t.Errorf("unexpected status %+v", status)
	}

	f.clock.Advance(56 * time.Minute)
	status, _ = f.manager.GetStatus(ctx, "user-1")
	if !*status.NeedsRefresh {
		t.Error("status should report needsRefresh inside the margin")
	}
	if n := f.provider.refreshes(); n != 0 {
		t.Errorf("status must not refresh, got %d calls", n)
	}
}

func TestManager_NewAuthorization(t *testing.T) {
	f := newFixture(t, nil)
	url, state := f.manager.NewAuthorization()
	if len(state) != 36 || !strings.HasSuffix(url, "state="+state) {
		t.Errorf("unexpected url %q state %q", url, state)
	}
}

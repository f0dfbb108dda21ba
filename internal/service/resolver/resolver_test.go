package resolver

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vertextoedge/estateshare/internal/adapter/filesystem"
	"github.com/vertextoedge/estateshare/internal/adapter/sqlstore"
	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/domain/event"
	"github.com/vertextoedge/estateshare/internal/domain/vo"
	"github.com/vertextoedge/estateshare/internal/service/sharing"
	"go.uber.org/zap"
)

// mockRemote implements RemoteOpener and sharing.FileLookup for testing
type mockRemote struct {
	files   map[string]*domain.RemoteFile
	content map[string]string
	err     error
	opened  []string
}

func (m *mockRemote) Open(_ context.Context, userID, fileID string) (*domain.RemoteFile, io.ReadCloser, error) {
	m.opened = append(m.opened, userID+"/"+fileID)
	if m.err != nil {
		return nil, nil, m.err
	}
	f, ok := m.files[fileID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	return f, io.NopCloser(strings.NewReader(m.content[fileID])), nil
}

func (m *mockRemote) GetFileByID(_ context.Context, userID, fileID string) (*domain.RemoteFile, error) {
	f, ok := m.files[fileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return f, nil
}

type fixture struct {
	resolver *Resolver
	issuer   *sharing.Issuer
	store    *sqlstore.Store
	cache    *filesystem.Manager
	remote   *mockRemote
	metrics  *event.MetricsHandler
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlstore.Open("sqlite", filepath.Join(dir, "db", "resolver.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cache, err := filesystem.NewManager(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}

	f := &fixture{
		store: store,
		cache: cache,
		remote: &mockRemote{
			files: map[string]*domain.RemoteFile{
				"remote1": {ID: "remote1", Name: "listing.jpg", MimeType: "image/jpeg", Size: 5},
			},
			content: map[string]string{"remote1": "jpeg!"},
		},
		metrics: event.NewMetricsHandler(),
		now:     time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	dispatcher := event.NewInMemoryDispatcher(false, zap.NewNop())
	dispatcher.Subscribe(f.metrics)

	f.resolver = New(store, cache, f.remote, dispatcher, zap.NewNop())
	f.resolver.SetClock(clock)
	f.issuer = sharing.NewIssuer(&sharing.Config{FrontendURL: "https://app", APIURL: "https://api"},
		f.remote, nil, store, dispatcher, zap.NewNop())
	f.issuer.SetClock(clock)
	return f
}

func (f *fixture) cacheFile(t *testing.T, fileID, name, content string) string {
	t.Helper()
	cn, err := vo.NewCacheName(fileID, name)
	if err != nil {
		t.Fatal(err)
	}
	path, _, err := f.cache.WriteFile(cn, strings.NewReader(content))
	if err != nil {
		t.Fatalf("write cache file: %v", err)
	}
	return path
}

func (f *fixture) localShare(t *testing.T, token, fileID, path string) {
	t.Helper()
	err := f.store.CreateShareToken(context.Background(), &domain.ShareToken{
		Token:         token,
		FileID:        fileID,
		UserID:        "owner",
		FileName:      "report.pdf",
		IsLocalFile:   true,
		LocalFilePath: path,
		ExpiresAt:     f.now.Add(24 * time.Hour),
		IsActive:      true,
	})
	if err != nil {
		t.Fatalf("create share: %v", err)
	}
}

func (f *fixture) downloads(t *testing.T, token string) int64 {
	t.Helper()
	row, err := f.store.GetShareToken(context.Background(), token)
	if err != nil || row == nil {
		t.Fatalf("load share: %v", err)
	}
	return row.DownloadCount
}

func readAll(t *testing.T, file *domain.ResolvedFile) string {
	t.Helper()
	defer file.Content.Close()
	data, err := io.ReadAll(file.Content)
	if err != nil {
		t.Fatalf("read content: %v", err)
	}
	return string(data)
}

func TestResolve_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, err := f.issuer.Issue(ctx, "owner", "remote1", sharing.IssueOptions{ExpirationDays: 1})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	f.now = f.now.Add(25 * time.Hour)
	if _, err := f.resolver.Resolve(ctx, issued.Token); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if len(f.remote.opened) != 0 {
		t.Error("expired token must not reach the provider")
	}
	if n := f.downloads(t, issued.Token); n != 0 {
		t.Errorf("download count = %d, want 0", n)
	}
}

func TestResolve_LocalTokenTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := strings.Repeat("ab", 32)
	path := f.cacheFile(t, "abc123", "report.pdf", "%PDF-report")
	f.localShare(t, token, "abc123", path)

	for i := 0; i < 2; i++ {
		file, err := f.resolver.Resolve(ctx, token)
		if err != nil {
			t.Fatalf("resolve %d failed: %v", i, err)
		}
		if got := readAll(t, file); got != "%PDF-report" {
			t.Errorf("resolve %d content = %q", i, got)
		}
		if !file.IsLocal || file.Name != "report.pdf" || file.MimeType != "application/pdf" || file.Size != 11 {
			t.Errorf("unexpected metadata %+v", file)
		}
	}

	if n := f.downloads(t, token); n != 2 {
		t.Errorf("download count = %d, want 2", n)
	}
	if got := f.metrics.GetMetrics()["token_resolutions"]; got != 2 {
		t.Errorf("token_resolutions = %d", got)
	}
}

func TestResolve_LocalTokenWithoutStoredPath(t *testing.T) {
	f := newFixture(t)
	token := strings.Repeat("cd", 32)
	f.cacheFile(t, "old42", "floorplan.png", "png")
	f.localShare(t, token, "old42", "")

	file, err := f.resolver.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if readAll(t, file) != "png" {
		t.Error("unexpected content")
	}
}

func TestResolve_LocalFileMissing(t *testing.T) {
	f := newFixture(t)
	token := strings.Repeat("ef", 32)
	f.localShare(t, token, "gone1", filepath.Join(f.cache.RootDir(), "gone1-report.pdf"))

	if _, err := f.resolver.Resolve(context.Background(), token); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := f.downloads(t, token); n != 0 {
		t.Errorf("download count = %d, want 0", n)
	}
}

func TestResolve_LegacyWithoutShareRow(t *testing.T) {
	f := newFixture(t)
	f.cacheFile(t, "abc123", "report.pdf", "legacy bytes")

	file, err := f.resolver.Resolve(context.Background(), "abc123-report.pdf")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !file.IsLocal || file.Name != "report.pdf" || file.MimeType != "application/pdf" {
		t.Errorf("unexpected metadata %+v", file)
	}
	if readAll(t, file) != "legacy bytes" {
		t.Error("unexpected content")
	}
	if got := f.metrics.GetMetrics()["legacy_resolutions"]; got != 1 {
		t.Errorf("legacy_resolutions = %d", got)
	}
}

func TestResolve_LegacyCountsMatchingShare(t *testing.T) {
	f := newFixture(t)
	token := strings.Repeat("12", 32)
	path := f.cacheFile(t, "abc123", "report.pdf", "x")
	f.localShare(t, token, "abc123", path)

	for _, id := range []string{"abc123-report.pdf", "abc123"} {
		file, err := f.resolver.Resolve(context.Background(), id)
		if err != nil {
			t.Fatalf("Resolve(%s) failed: %v", id, err)
		}
		file.Content.Close()
	}
	if n := f.downloads(t, token); n != 2 {
		t.Errorf("download count = %d, want 2", n)
	}
}

func TestResolve_LegacyNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.resolver.Resolve(ctx, "nothing-here.pdf"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.resolver.Resolve(ctx, "-leading-dash"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty file id, got %v", err)
	}

	if err := os.RemoveAll(f.cache.RootDir()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.resolver.Resolve(ctx, "abc123-report.pdf"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound without cache dir, got %v", err)
	}
}

func TestResolve_RevokedToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, _ := f.issuer.Issue(ctx, "owner", "remote1", sharing.IssueOptions{})
	if err := f.issuer.Revoke(ctx, "owner", issued.Token); err != nil {
		t.Fatal(err)
	}

	if _, err := f.resolver.Resolve(ctx, issued.Token); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// still NotFound once it has also expired
	f.now = f.now.Add(400 * 24 * time.Hour)
	if _, err := f.resolver.Resolve(ctx, issued.Token); !errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestResolve_UnknownToken(t *testing.T) {
	f := newFixture(t)
	if _, err := f.resolver.Resolve(context.Background(), strings.Repeat("0", 64)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve_RemoteToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued, _ := f.issuer.Issue(ctx, "owner", "remote1", sharing.IssueOptions{})

	file, err := f.resolver.Resolve(ctx, strings.ToUpper(issued.Token))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if readAll(t, file) != "jpeg!" {
		t.Error("unexpected content")
	}
	if file.IsLocal || file.Name != "listing.jpg" || file.MimeType != "image/jpeg" || file.Size != 5 {
		t.Errorf("unexpected metadata %+v", file)
	}
	if len(f.remote.opened) != 1 || f.remote.opened[0] != "owner/remote1" {
		t.Errorf("remote opened as %v, want owner/remote1", f.remote.opened)
	}
	if n := f.downloads(t, issued.Token); n != 1 {
		t.Errorf("download count = %d, want 1", n)
	}
}

func TestResolve_RemoteFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      error
		retryable bool
	}{
		{"owner disconnected", domain.ErrNotConnected, domain.ErrProviderUnavailable, false},
		{"owner credential expired", domain.ErrCredentialExpired, domain.ErrProviderUnavailable, false},
		{"provider outage", domain.NewRetryableError(domain.ErrProviderUnavailable, time.Second), domain.ErrProviderUnavailable, true},
		{"file deleted remotely", domain.ErrNotFound, domain.ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			issued, _ := f.issuer.Issue(ctx, "owner", "remote1", sharing.IssueOptions{})
			f.remote.err = tt.err

			_, err := f.resolver.Resolve(ctx, issued.Token)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if domain.IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", domain.IsRetryable(err), tt.retryable)
			}
			if domain.NeedsReconnect(err) {
				t.Error("public resolution must not ask for reconnection")
			}
			if n := f.downloads(t, issued.Token); n != 0 {
				t.Errorf("download count = %d, want 0", n)
			}
		})
	}
}

func TestMimeTypeFor(t *testing.T) {
	tests := map[string]string{
		"report.PDF":     "application/pdf",
		"photo.jpeg":     "image/jpeg",
		"notes":          "application/octet-stream",
		"archive.tar.gz": "application/octet-stream",
		"sheet.xlsx":     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
	for name, want := range tests {
		if got := MimeTypeFor(name); got != want {
			t.Errorf("MimeTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}

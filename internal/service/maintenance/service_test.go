package maintenance

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/domain/vo"
	"github.com/vertextoedge/estateshare/internal/port"
)

// mockStatsRepository implements repository.StatsRepository for testing
type mockStatsRepository struct {
	mu     sync.Mutex
	err    error
	called int
}

func (m *mockStatsRepository) GetShareStats(ctx context.Context) (*domain.StoreStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called++
	if m.err != nil {
		return nil, m.err
	}
	return &domain.StoreStats{ActiveShareTokens: 4, TotalDownloads: 12}, nil
}

func (m *mockStatsRepository) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.called
}

// mockCacheFS implements port.CacheFS for testing
type mockCacheFS struct {
	mu                   sync.Mutex
	cleanTempFilesCount  int
	cleanTempFilesErr    error
	cleanTempFilesCalled int
}

func (m *mockCacheFS) RootDir() string { return "" }
func (m *mockCacheFS) FindByPrefix(prefix string) (*port.CachedFile, error) {
	return nil, domain.ErrNotFound
}
func (m *mockCacheFS) Open(path string) (io.ReadCloser, *port.CachedFile, error) {
	return nil, nil, domain.ErrNotFound
}
func (m *mockCacheFS) WriteFile(name vo.CacheName, r io.Reader) (string, int64, error) {
	return "", 0, nil
}
func (m *mockCacheFS) DeleteFile(path string) error           { return nil }
func (m *mockCacheFS) GetCacheSize() (int64, error)           { return 0, nil }
func (m *mockCacheFS) GetDiskUsage() (*port.DiskUsage, error) { return &port.DiskUsage{}, nil }
func (m *mockCacheFS) CleanOldTempFiles(olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanTempFilesCalled++
	return m.cleanTempFilesCount, m.cleanTempFilesErr
}

func (m *mockCacheFS) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleanTempFilesCalled
}

type mockPruner struct {
	mu     sync.Mutex
	called int
}

func (m *mockPruner) PruneWarnings() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called++
	return 1
}

func (m *mockPruner) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.called
}

func runFor(t *testing.T, s *Service, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()

	time.Sleep(d)
	cancel()
	s.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestService_New(t *testing.T) {
	s := New(nil, &mockStatsRepository{}, &mockCacheFS{}, nil, zap.NewNop())
	if s.config.StatsInterval != 15*time.Minute {
		t.Errorf("StatsInterval = %v", s.config.StatsInterval)
	}

	s = New(&Config{CleanupInterval: 2 * time.Minute}, &mockStatsRepository{}, &mockCacheFS{}, nil, zap.NewNop())
	if s.config.CleanupInterval != 2*time.Minute {
		t.Errorf("CleanupInterval = %v", s.config.CleanupInterval)
	}
	if s.config.TempFileMaxAge != 24*time.Hour {
		t.Errorf("TempFileMaxAge should default, got %v", s.config.TempFileMaxAge)
	}
}

func TestService_LogsStats(t *testing.T) {
	stats := &mockStatsRepository{}
	fs := &mockCacheFS{}
	s := New(&Config{
		StatsInterval:   10 * time.Millisecond,
		CleanupInterval: time.Hour,
		TempFileMaxAge:  time.Hour,
	}, stats, fs, nil, zap.NewNop())

	runFor(t, s, 50*time.Millisecond)

	if stats.calls() == 0 {
		t.Error("GetShareStats was not called")
	}
	if fs.calls() != 0 {
		t.Error("cleanup should not run before its interval")
	}
}

func TestService_Cleanup(t *testing.T) {
	fs := &mockCacheFS{cleanTempFilesCount: 2}
	pruner := &mockPruner{}
	s := New(&Config{
		StatsInterval:   time.Hour,
		CleanupInterval: 10 * time.Millisecond,
		TempFileMaxAge:  time.Hour,
	}, &mockStatsRepository{}, fs, pruner, zap.NewNop())

	runFor(t, s, 50*time.Millisecond)

	if fs.calls() == 0 {
		t.Error("CleanOldTempFiles was not called")
	}
	if pruner.calls() == 0 {
		t.Error("PruneWarnings was not called")
	}
}

func TestService_ErrorsDoNotStopLoop(t *testing.T) {
	stats := &mockStatsRepository{err: errors.New("db locked")}
	fs := &mockCacheFS{cleanTempFilesErr: errors.New("permission denied")}
	s := New(&Config{
		StatsInterval:   10 * time.Millisecond,
		CleanupInterval: 10 * time.Millisecond,
		TempFileMaxAge:  time.Hour,
	}, stats, fs, nil, zap.NewNop())

	runFor(t, s, 60*time.Millisecond)

	if stats.calls() < 2 || fs.calls() < 2 {
		t.Errorf("loop should keep running after errors, stats=%d cleanup=%d", stats.calls(), fs.calls())
	}
}

func TestService_DoubleStart(t *testing.T) {
	s := New(nil, &mockStatsRepository{}, &mockCacheFS{}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Start(ctx)
	time.Sleep(10 * time.Millisecond)

	if err := s.Start(ctx); err == nil {
		t.Error("expected error for second Start")
	}
	s.Stop()
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.StatsInterval != 15*time.Minute || cfg.CleanupInterval != time.Hour || cfg.TempFileMaxAge != 24*time.Hour {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

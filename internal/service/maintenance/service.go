package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/estateshare/internal/domain/repository"
	"github.com/vertextoedge/estateshare/internal/port"
)

// Config contains maintenance service configuration
type Config struct {
	// StatsInterval is how often share and connection counters are logged
	StatsInterval time.Duration

	// CleanupInterval is how often to run cleanup tasks
	CleanupInterval time.Duration

	// TempFileMaxAge is the maximum age of temp files before cleanup
	TempFileMaxAge time.Duration
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		StatsInterval:   15 * time.Minute,
		CleanupInterval: time.Hour,
		TempFileMaxAge:  24 * time.Hour,
	}
}

// WarningPruner drops idle entries from a warning throttle
type WarningPruner interface {
	PruneWarnings() int
}

// Service handles periodic maintenance tasks
type Service struct {
	config *Config
	stats  repository.StatsRepository
	fs     port.CacheFS
	pruner WarningPruner
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service. pruner may be nil.
func New(cfg *Config, stats repository.StatsRepository, fs port.CacheFS, pruner WarningPruner, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.StatsInterval == 0 {
		cfg.StatsInterval = 15 * time.Minute
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.TempFileMaxAge == 0 {
		cfg.TempFileMaxAge = 24 * time.Hour
	}

	return &Service{
		config: cfg,
		stats:  stats,
		fs:     fs,
		pruner: pruner,
		logger: logger,
	}
}

// Start starts the maintenance service and blocks until ctx is done or Stop is called
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.Duration("stats_interval", s.config.StatsInterval),
		zap.Duration("cleanup_interval", s.config.CleanupInterval))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	statsTicker := time.NewTicker(s.config.StatsInterval)
	defer statsTicker.Stop()

	cleanupTicker := time.NewTicker(s.config.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-statsTicker.C:
			s.logStats(ctx)
		case <-cleanupTicker.C:
			s.cleanupTempFiles()
			s.pruneWarnings()
		}
	}
}

func (s *Service) logStats(ctx context.Context) {
	stats, err := s.stats.GetShareStats(ctx)
	if err != nil {
		s.logger.Error("failed to get share stats", zap.Error(err))
		return
	}
	s.logger.Info("share statistics",
		zap.Int64("active_connections", stats.ActiveConnections),
		zap.Int64("inactive_connections", stats.InactiveConnections),
		zap.Int64("active_tokens", stats.ActiveShareTokens),
		zap.Int64("revoked_tokens", stats.RevokedShareTokens),
		zap.Int64("local_tokens", stats.LocalShareTokens),
		zap.Int64("total_downloads", stats.TotalDownloads))
}

// cleanupTempFiles removes stale partial copies from the cache directory
func (s *Service) cleanupTempFiles() {
	fileCount, err := s.fs.CleanOldTempFiles(s.config.TempFileMaxAge)
	if err != nil {
		s.logger.Error("failed to cleanup old temp files", zap.Error(err))
	} else if fileCount > 0 {
		s.logger.Info("cleaned up old temp files from cache dir", zap.Int("count", fileCount))
	}
}

func (s *Service) pruneWarnings() {
	if s.pruner == nil {
		return
	}
	if n := s.pruner.PruneWarnings(); n > 0 {
		s.logger.Debug("pruned warning throttle entries", zap.Int("count", n))
	}
}

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/port"
	"github.com/vertextoedge/estateshare/internal/service/credential"
	"github.com/vertextoedge/estateshare/internal/service/sharing"
)

// Config contains HTTP server configuration
type Config struct {
	BindAddr     string
	JWTSecret    string
	JWTIssuer    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// TrustedProxies may set the client address through forwarding headers
	TrustedProxies []netip.Prefix
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:     "0.0.0.0:8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

// Credentials is the credential lifecycle as seen by the API
type Credentials interface {
	NewAuthorization() (url, state string)
	Connect(ctx context.Context, userID string, in credential.ConnectInput) (*domain.Connection, error)
	Disconnect(ctx context.Context, userID string) error
	GetStatus(ctx context.Context, userID string) (*domain.ConnectionStatus, error)
}

// Catalog browses the caller's remote storage
type Catalog interface {
	ListFiles(ctx context.Context, userID string, opts domain.ListFilesOptions) (*domain.FileList, error)
	ListFolders(ctx context.Context, userID string, opts domain.ListFoldersOptions) (*domain.FileList, error)
	GetFileByID(ctx context.Context, userID, fileID string) (*domain.RemoteFile, error)
	GetFolderByID(ctx context.Context, userID, folderID string) (*domain.RemoteFile, error)
	Open(ctx context.Context, userID, fileID string) (*domain.RemoteFile, io.ReadCloser, error)
}

// Shares issues and manages share tokens
type Shares interface {
	Issue(ctx context.Context, userID, fileID string, opts sharing.IssueOptions) (*domain.IssuedShare, error)
	Revoke(ctx context.Context, userID, token string) error
	List(ctx context.Context, userID string) ([]*domain.ShareToken, error)
	Stats(ctx context.Context, userID, token string) (*domain.ShareStats, error)
	ShareURL(token string) string
	DownloadURL(token string) string
}

// FileResolver serves public identifiers
type FileResolver interface {
	Resolve(ctx context.Context, identifier string) (*domain.ResolvedFile, error)
}

// StatusStore is the part of the store used by health and debug endpoints
type StatusStore interface {
	Ping(ctx context.Context) error
	GetShareStats(ctx context.Context) (*domain.StoreStats, error)
}

// MetricsSource exposes event counters
type MetricsSource interface {
	GetMetrics() map[string]int64
}

// Deps are the services the server routes to
type Deps struct {
	Credentials Credentials
	Catalog     Catalog
	Shares      Shares
	Resolver    FileResolver
	Store       StatusStore
	Metrics     MetricsSource
	RateLimiter port.RateLimiter
}

// Server represents the HTTP API server
type Server struct {
	config *Config
	deps   Deps
	logger *zap.Logger
	server *http.Server

	driveHandler *DriveHandler
	shareHandler *ShareHandler
	fileHandler  *FileHandler
	debugHandler *DebugHandler
	handler      http.Handler
}

// New creates a new HTTP server
func New(cfg *Config, deps Deps, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
	}

	s.driveHandler = NewDriveHandler(deps.Credentials, deps.Catalog, deps.Shares, logger)
	s.shareHandler = NewShareHandler(deps.Shares, logger)
	s.fileHandler = NewFileHandler(deps.Resolver, logger)
	s.debugHandler = NewDebugHandler(deps.Store, deps.Metrics, logger)

	auth := AuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer, logger)
	limit := RateLimitMiddleware(deps.RateLimiter, cfg.TrustedProxies, logger)

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", s.handleHealth)

	// Remote storage connection
	mux.HandleFunc("GET /api/drive/auth-url", auth(s.driveHandler.HandleAuthURL))
	mux.HandleFunc("GET /api/drive/callback", auth(s.driveHandler.HandleCallback))
	mux.HandleFunc("POST /api/drive/connect", auth(s.driveHandler.HandleConnect))
	mux.HandleFunc("DELETE /api/drive/connection", auth(s.driveHandler.HandleDisconnect))
	mux.HandleFunc("GET /api/drive/status", auth(s.driveHandler.HandleStatus))

	// Browsing
	mux.HandleFunc("GET /api/drive/files", auth(s.driveHandler.HandleListFiles))
	mux.HandleFunc("GET /api/drive/folders", auth(s.driveHandler.HandleListFolders))
	mux.HandleFunc("GET /api/drive/files/{id}", auth(s.driveHandler.HandleGetFile))
	mux.HandleFunc("GET /api/drive/folders/{id}", auth(s.driveHandler.HandleGetFolder))
	mux.HandleFunc("GET /api/drive/files/{id}/content", auth(s.driveHandler.HandleFileContent))
	mux.HandleFunc("POST /api/drive/files/{id}/share", auth(s.driveHandler.HandleShare))

	// Share management
	mux.HandleFunc("GET /api/shares", auth(s.shareHandler.HandleList))
	mux.HandleFunc("GET /api/shares/{token}/stats", auth(s.shareHandler.HandleStats))
	mux.HandleFunc("DELETE /api/shares/{token}", auth(s.shareHandler.HandleRevoke))

	// Public download
	mux.Handle("GET /api/public/files/{identifier}", limit(http.HandlerFunc(s.fileHandler.HandleDownload)))

	// Debug endpoints
	mux.HandleFunc("GET /debug/stats", s.debugHandler.HandleStats)

	s.handler = LoggingMiddleware(logger)(mux)
	s.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			s.logger.Error("health check failed", zap.Error(err))
			http.Error(w, "Database connection failed", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

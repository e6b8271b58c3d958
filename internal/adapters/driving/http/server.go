package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the services the server routes to
type Dependencies struct {
	Auth          driving.AuthService
	Notifications driving.NotificationProcessor
	Channels      driving.ChannelRegistry
	Tracker       driving.SyncStateTracker
	Syncer        driving.DocumentSyncer
	Retrieval     driving.RetrievalService
	Access        driving.AccessController
	Runtime       *domain.RuntimeConfig

	// Queue receives async scan and renewal requests. Optional.
	Queue driven.TaskQueue

	// Checks are run by /ready, keyed by component name. Nil entries are skipped.
	Checks map[string]Pinger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	logger     *slog.Logger

	webhookURL        string
	defaultScanWindow time.Duration
	renewalThreshold  time.Duration

	auth          driving.AuthService
	notifications driving.NotificationProcessor
	channels      driving.ChannelRegistry
	tracker       driving.SyncStateTracker
	syncer        driving.DocumentSyncer
	retrieval     driving.RetrievalService
	access        driving.AccessController
	runtime       *domain.RuntimeConfig
	queue         driven.TaskQueue
	checks        map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// AllowedOrigins for browser clients of the retrieval API
	AllowedOrigins []string

	// WebhookURL is the public address channels are registered with
	WebhookURL string

	// DefaultScanWindow applies to manual scans that omit window_minutes
	DefaultScanWindow time.Duration

	// RenewalThreshold applies to manual renewals that omit threshold_hours
	RenewalThreshold time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		Version:           "dev",
		AllowedOrigins:    []string{"*"},
		DefaultScanWindow: 10 * time.Minute,
		RenewalThreshold:  24 * time.Hour,
	}
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultScanWindow <= 0 {
		cfg.DefaultScanWindow = 10 * time.Minute
	}
	if cfg.RenewalThreshold <= 0 {
		cfg.RenewalThreshold = 24 * time.Hour
	}

	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		logger:            logger,
		webhookURL:        cfg.WebhookURL,
		defaultScanWindow: cfg.DefaultScanWindow,
		renewalThreshold:  cfg.RenewalThreshold,
		auth:              deps.Auth,
		notifications:     deps.Notifications,
		channels:          deps.Channels,
		tracker:           deps.Tracker,
		syncer:            deps.Syncer,
		retrieval:         deps.Retrieval,
		access:            deps.Access,
		runtime:           deps.Runtime,
		queue:             deps.Queue,
		checks:            deps.Checks,
	}

	s.setupRoutes()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", headerRequestID},
		ExposedHeaders: []string{headerRequestID},
		MaxAge:         86400,
	})
	s.handler = NewRecoveryMiddleware(logger).Handler(
		NewLoggingMiddleware(logger).Handler(
			corsHandler(s.router)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 150 * time.Second, // retrieval waits on the LLM
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.auth)
	admin := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(authMiddleware.RequireAdmin(h))
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)

	// Push notifications (authenticated by channel token, not bearer)
	s.router.HandleFunc("POST /webhooks/drive", s.handleDriveWebhook)
	s.router.HandleFunc("GET /webhooks/drive/status", s.handleWebhookStatus)

	// Channel management (admin-only)
	s.router.Handle("POST /api/v1/channels", admin(s.handleCreateChannel))
	s.router.Handle("GET /api/v1/channels", admin(s.handleListChannels))
	s.router.Handle("POST /api/v1/channels/renew", admin(s.handleRenewChannels))
	s.router.Handle("GET /api/v1/channels/{id}", admin(s.handleGetChannel))
	s.router.Handle("DELETE /api/v1/channels/{id}", admin(s.handleStopChannel))

	// Sync endpoints (admin-only)
	s.router.Handle("POST /api/v1/sync/scan", admin(s.handleScanFolder))
	s.router.Handle("GET /api/v1/sync/stats", admin(s.handleSyncStats))
	s.router.Handle("GET /api/v1/sync/failed", admin(s.handleListFailed))
	s.router.Handle("GET /api/v1/sync/documents/{id}", admin(s.handleGetSyncRecord))
	s.router.Handle("GET /api/v1/sync/tasks/{id}", admin(s.handleGetTask))

	// Retrieval endpoints (authenticated)
	s.router.Handle("POST /api/v1/retrieve",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleRetrieve)))
	s.router.Handle("GET /api/v1/me/access",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleMyAccess)))
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Services holds the AI services shared by ingestion and retrieval.
// Either service may be swapped at runtime; callers fetch the current one
// per operation and never cache it. Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	config *domain.RuntimeConfig

	embeddingService driven.EmbeddingService
	llmService       driven.LLMService
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{
		config: config,
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// LLMService returns the current LLM service (may be nil)
func (s *Services) LLMService() driven.LLMService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llmService
}

// SetEmbeddingService replaces the embedding service and closes the previous one
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil && s.embeddingService != svc {
		_ = s.embeddingService.Close()
	}
	s.embeddingService = svc
	s.config.SetEmbeddingAvailable(svc != nil)
}

// SetLLMService replaces the LLM service and closes the previous one
func (s *Services) SetLLMService(svc driven.LLMService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.llmService != nil && s.llmService != svc {
		_ = s.llmService.Close()
	}
	s.llmService = svc
	s.config.SetLLMAvailable(svc != nil)
}

// Close shuts down all services
func (s *Services) Close() error {
	s.SetEmbeddingService(nil)
	s.SetLLMService(nil)
	return nil
}

// ValidateAndSetEmbedding health-checks svc before installing it.
// A failing service is closed and the current one is kept.
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}
	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return fmt.Errorf("embedding health check: %w", err)
	}
	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetLLM pings svc before installing it.
// A failing service is closed and the current one is kept.
func (s *Services) ValidateAndSetLLM(ctx context.Context, svc driven.LLMService) error {
	if svc == nil {
		s.SetLLMService(nil)
		return nil
	}
	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return fmt.Errorf("llm ping: %w", err)
	}
	s.SetLLMService(svc)
	return nil
}

// Configure builds both services from settings through factory and installs
// the ones that validate. A service that fails is logged and left unset, so
// the process can still accept webhooks while AI credentials are fixed.
// Only invalid settings are returned as an error.
func (s *Services) Configure(ctx context.Context, factory driven.AIServiceFactory, settings domain.AISettings, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	emb, err := factory.CreateEmbeddingService(ctx, &settings.Embedding)
	switch {
	case err != nil:
		logger.Warn("embedding service not created", "provider", settings.Embedding.Provider, "error", err)
	case emb == nil:
		logger.Warn("embedding service not configured")
	default:
		if err := s.ValidateAndSetEmbedding(ctx, emb); err != nil {
			logger.Warn("embedding service unavailable", "provider", settings.Embedding.Provider, "error", err)
		} else {
			logger.Info("embedding service ready", "provider", settings.Embedding.Provider, "model", emb.Model(), "dimensions", emb.Dimensions())
		}
	}

	llm, err := factory.CreateLLMService(ctx, &settings.LLM)
	switch {
	case err != nil:
		logger.Warn("llm service not created", "provider", settings.LLM.Provider, "error", err)
	case llm == nil:
		logger.Warn("llm service not configured")
	default:
		if err := s.ValidateAndSetLLM(ctx, llm); err != nil {
			logger.Warn("llm service unavailable", "provider", settings.LLM.Provider, "error", err)
		} else {
			logger.Info("llm service ready", "provider", settings.LLM.Provider, "model", llm.Model())
		}
	}
	return nil
}

package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-drive/internal/normalisers"
	"github.com/custodia-labs/sercha-drive/internal/postprocessors"
)

// Verify interface compliance
var _ driven.IngestionService = (*Service)(nil)

// EmbedderSource returns the embedding service currently configured.
// runtime.Services satisfies it, so a hot-swapped embedder is picked up
// by the next ingestion.
type EmbedderSource interface {
	EmbeddingService() driven.EmbeddingService
}

// Service implements IngestionService: extract text per page, normalise it,
// chunk it through the post-processor pipeline, then embed in batches.
type Service struct {
	embedders   EmbedderSource
	normalisers driven.NormaliserRegistry
	pipeline    driven.PostProcessorPipeline
	extractors  map[domain.FileType]extractor
	batchSize   int
	concurrency int
	logger      *slog.Logger
}

// Config holds configuration for the ingestion service
type Config struct {
	Embedders   EmbedderSource
	Normalisers driven.NormaliserRegistry    // Optional: defaults to normalisers.DefaultRegistry
	Pipeline    driven.PostProcessorPipeline // Optional: defaults to the default chunking pipeline
	Chunking    postprocessors.ChunkConfig   // Used only when Pipeline is nil
	BatchSize   int                          // Texts per embedding request (default 32)
	Concurrency int                          // Embedding requests in flight (default 4)
	Logger      *slog.Logger
}

// NewService creates an ingestion service
func NewService(cfg Config) *Service {
	if cfg.Normalisers == nil {
		cfg.Normalisers = normalisers.DefaultRegistry()
	}
	if cfg.Pipeline == nil {
		chunking := cfg.Chunking
		if chunking.Size == 0 {
			chunking = postprocessors.DefaultChunkConfig()
		}
		cfg.Pipeline = postprocessors.DefaultPipeline(chunking)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		embedders:   cfg.Embedders,
		normalisers: cfg.Normalisers,
		pipeline:    cfg.Pipeline,
		extractors:  defaultExtractors(),
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// Ingest turns the file at content.Path into embedded chunks carrying content.Access
func (s *Service) Ingest(ctx context.Context, content *domain.DocumentContent) ([]*domain.IndexedChunk, error) {
	if content == nil || content.Metadata == nil {
		return nil, fmt.Errorf("%w: missing document metadata", domain.ErrInvalidInput)
	}
	meta := content.Metadata

	extract, ok := s.extractors[content.FileType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, meta.MimeType)
	}

	var embedder driven.EmbeddingService
	if s.embedders != nil {
		embedder = s.embedders.EmbeddingService()
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding service", domain.ErrConfigMissing)
	}

	pages, err := extract(ctx, content.Path, meta.MimeType)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	chunks := s.chunk(content, pages)
	s.logger.Debug("document chunked",
		"doc_id", meta.ID,
		"file_type", content.FileType,
		"pages", len(pages),
		"chunks", len(chunks),
	)
	if len(chunks) == 0 {
		return nil, nil
	}

	if err := s.embed(ctx, embedder, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (s *Service) chunk(content *domain.DocumentContent, pages []page) []*domain.IndexedChunk {
	meta := content.Metadata

	var chunks []*domain.IndexedChunk
	for _, p := range pages {
		normalised := p.text
		if n := s.normalisers.Get(meta.MimeType); n != nil {
			normalised = n.Normalise(p.text, meta.MimeType)
		}

		for _, c := range s.pipeline.Process(normalised) {
			position := len(chunks)
			chunks = append(chunks, &domain.IndexedChunk{
				ChunkID:      fmt.Sprintf("%s-%d", meta.ID, position),
				SourceDocID:  meta.ID,
				DocumentName: meta.Name,
				Page:         p.number,
				Position:     position,
				Text:         c.Content,
				Access:       content.Access,
			})
		}
	}
	return chunks
}

// embed fills chunk embeddings in fixed-size batches with bounded concurrency
func (s *Service) embed(ctx context.Context, embedder driven.EmbeddingService, chunks []*domain.IndexedChunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for start := 0; start < len(chunks); start += s.batchSize {
		batch := chunks[start:min(start+s.batchSize, len(chunks))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}

			vectors, err := embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch: %w", err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embed batch: got %d vectors for %d texts", len(vectors), len(batch))
			}
			for i, c := range batch {
				c.Embedding = vectors[i]
			}
			return nil
		})
	}
	return g.Wait()
}

package mocks

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

var _ driven.IngestionService = (*MockIngestionService)(nil)

// MockIngestionService reads the downloaded file and emits one chunk per
// blank-line separated paragraph
type MockIngestionService struct {
	mu       sync.Mutex
	ingested []*domain.DocumentContent
	paths    []string

	// IngestFn overrides Ingest when set
	IngestFn func(content *domain.DocumentContent) ([]*domain.IndexedChunk, error)
}

// NewMockIngestionService creates a new MockIngestionService
func NewMockIngestionService() *MockIngestionService {
	return &MockIngestionService{}
}

func (m *MockIngestionService) Ingest(ctx context.Context, content *domain.DocumentContent) ([]*domain.IndexedChunk, error) {
	m.mu.Lock()
	cp := *content
	m.ingested = append(m.ingested, &cp)
	m.paths = append(m.paths, content.Path)
	m.mu.Unlock()

	if m.IngestFn != nil {
		return m.IngestFn(content)
	}

	data, err := os.ReadFile(content.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", content.Path, err)
	}

	var chunks []*domain.IndexedChunk
	for i, para := range strings.Split(string(data), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		chunks = append(chunks, &domain.IndexedChunk{
			ChunkID:      fmt.Sprintf("%s-%d", content.Metadata.ID, i),
			SourceDocID:  content.Metadata.ID,
			DocumentName: content.Metadata.Name,
			Page:         1,
			Position:     i,
			Text:         para,
			Embedding:    []float32{1, float32(i + 1)},
			Access:       content.Access,
		})
	}
	return chunks, nil
}

// Helper methods for testing

// Ingested returns every content handed to Ingest
func (m *MockIngestionService) Ingested() []*domain.DocumentContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.DocumentContent(nil), m.ingested...)
}

// Paths returns the local paths handed to Ingest
func (m *MockIngestionService) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

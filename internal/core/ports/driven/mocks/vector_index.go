package mocks

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

var _ driven.VectorIndex = (*MockVectorIndex)(nil)

// MockVectorIndex is an in-memory VectorIndex that scores by cosine similarity
// and applies AccessFilter.Matches.
type MockVectorIndex struct {
	mu      sync.RWMutex
	chunks  map[string]*domain.IndexedChunk
	filters []domain.AccessFilter

	// SearchFn overrides Search when set. Tests use it to return chunks a
	// misbehaving index would leak past the filter.
	SearchFn func(embedding []float32, filter domain.AccessFilter, limit int) ([]*domain.ScoredChunk, error)
	// UpsertFn overrides Upsert when set
	UpsertFn func(chunks []*domain.IndexedChunk) error
}

// NewMockVectorIndex creates a new MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{
		chunks: make(map[string]*domain.IndexedChunk),
	}
}

func (m *MockVectorIndex) Search(ctx context.Context, embedding []float32, filter domain.AccessFilter, limit int) ([]*domain.ScoredChunk, error) {
	m.mu.Lock()
	m.filters = append(m.filters, filter)
	m.mu.Unlock()
	if m.SearchFn != nil {
		return m.SearchFn(embedding, filter, limit)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var results []*domain.ScoredChunk
	for _, c := range m.chunks {
		if !filter.Matches(c.Access) {
			continue
		}
		results = append(results, &domain.ScoredChunk{Chunk: c, Score: cosine(embedding, c.Embedding)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ChunkID < results[j].Chunk.ChunkID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MockVectorIndex) Upsert(ctx context.Context, chunks []*domain.IndexedChunk) error {
	if m.UpsertFn != nil {
		if err := m.UpsertFn(chunks); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.ChunkID] = c
	}
	return nil
}

func (m *MockVectorIndex) DeleteByDocument(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.SourceDocID == docID {
			delete(m.chunks, id)
		}
	}
	return nil
}

func (m *MockVectorIndex) CountByDocument(ctx context.Context, docID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.chunks {
		if c.SourceDocID == docID {
			n++
		}
	}
	return n, nil
}

func (m *MockVectorIndex) HealthCheck(ctx context.Context) error {
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Helper methods for testing

// Chunks returns the stored chunks of a document
func (m *MockVectorIndex) Chunks(docID string) []*domain.IndexedChunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.IndexedChunk
	for _, c := range m.chunks {
		if c.SourceDocID == docID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ChunkID < result[j].ChunkID })
	return result
}

// Filters returns every filter passed to Search
func (m *MockVectorIndex) Filters() []domain.AccessFilter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.AccessFilter(nil), m.filters...)
}

func (m *MockVectorIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

package mocks

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*MockEmbeddingService)(nil)

// MockEmbeddingService hashes each lower-cased word into one of a few buckets
// and L2-normalises the counts, so texts sharing words score closer together.
type MockEmbeddingService struct {
	mu       sync.Mutex
	dims     int
	failNext bool
	queries  []string
}

func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{dims: 8}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, m.vector(text))
	}
	return out, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	return m.vector(query), nil
}

func (m *MockEmbeddingService) Dimensions() int                       { return m.dims }
func (m *MockEmbeddingService) Model() string                         { return "mock-bow-embedding" }
func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error { return nil }
func (m *MockEmbeddingService) Close() error                          { return nil }

// SetFailNext makes the next Embed or EmbedQuery call time out
func (m *MockEmbeddingService) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

// Queries returns every query passed to EmbedQuery, including failed ones
func (m *MockEmbeddingService) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

func (m *MockEmbeddingService) takeFailure() error {
	if !m.failNext {
		return nil
	}
	m.failNext = false
	return context.DeadlineExceeded
}

func (m *MockEmbeddingService) vector(text string) []float32 {
	v := make([]float32, m.dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		v[h.Sum32()%uint32(m.dims)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		// blank text still needs a usable vector for cosine distance
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

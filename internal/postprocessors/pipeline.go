package postprocessors

import (
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline implements PostProcessorPipeline.
// The first stage receives a single chunk holding the whole text.
type Pipeline struct {
	mu         sync.RWMutex
	processors []driven.PostProcessor
}

// NewPipeline creates an empty pipeline
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// DefaultPipeline chunks with cfg, then normalizes whitespace, drops
// fragments and removes duplicates.
func DefaultPipeline(cfg ChunkConfig) *Pipeline {
	p := NewPipeline()
	p.Add(NewChunker(cfg))
	p.Add(NewWhitespaceNormalizer())
	p.Add(NewMinLengthFilter(DefaultMinChunkLength))
	p.Add(NewDeduplicator())
	return p
}

// Add inserts a processor, keeping stages sorted by Order
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	sort.SliceStable(p.processors, func(i, j int) bool {
		return p.processors[i].Order() < p.processors[j].Order()
	})
}

// Process runs content through every stage
func (p *Pipeline) Process(content string) []driven.Chunk {
	p.mu.RLock()
	processors := make([]driven.PostProcessor, len(p.processors))
	copy(processors, p.processors)
	p.mu.RUnlock()

	chunks := []driven.Chunk{{
		Content:   content,
		EndOffset: len([]rune(content)),
	}}
	for _, proc := range processors {
		chunks = proc.Process(chunks)
	}
	return chunks
}

// List returns processor names in pipeline order
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

package postprocessors

import (
	"crypto/sha256"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.PostProcessor = (*WhitespaceNormalizer)(nil)
	_ driven.PostProcessor = (*MinLengthFilter)(nil)
	_ driven.PostProcessor = (*Deduplicator)(nil)
)

// WhitespaceNormalizer collapses runs of spaces, trims lines and drops
// chunks left empty.
type WhitespaceNormalizer struct{}

func NewWhitespaceNormalizer() *WhitespaceNormalizer {
	return &WhitespaceNormalizer{}
}

func (w *WhitespaceNormalizer) Name() string { return "whitespace-normalizer" }

func (w *WhitespaceNormalizer) Order() int { return 5 }

func (w *WhitespaceNormalizer) Process(chunks []driven.Chunk) []driven.Chunk {
	result := make([]driven.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		lines := strings.Split(chunk.Content, "\n")
		kept := lines[:0]
		blank := false
		for _, line := range lines {
			line = strings.Join(strings.Fields(line), " ")
			if line == "" {
				// keep at most one blank line between paragraphs
				if blank || len(kept) == 0 {
					continue
				}
				blank = true
			} else {
				blank = false
			}
			kept = append(kept, line)
		}

		content := strings.TrimSpace(strings.Join(kept, "\n"))
		if content == "" {
			continue
		}
		chunk.Content = content
		result = append(result, chunk)
	}
	return result
}

// DefaultMinChunkLength drops page furniture like lone page numbers
const DefaultMinChunkLength = 3

// MinLengthFilter drops chunks shorter than a number of characters
type MinLengthFilter struct {
	min int
}

func NewMinLengthFilter(minLength int) *MinLengthFilter {
	return &MinLengthFilter{min: minLength}
}

func (f *MinLengthFilter) Name() string { return "min-length-filter" }

func (f *MinLengthFilter) Order() int { return 8 }

func (f *MinLengthFilter) Process(chunks []driven.Chunk) []driven.Chunk {
	result := make([]driven.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if utf8.RuneCountInString(chunk.Content) >= f.min {
			result = append(result, chunk)
		}
	}
	return result
}

// Deduplicator removes chunks whose case-folded text was already seen
type Deduplicator struct{}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

func (d *Deduplicator) Name() string { return "deduplicator" }

func (d *Deduplicator) Order() int { return 10 }

func (d *Deduplicator) Process(chunks []driven.Chunk) []driven.Chunk {
	seen := make(map[[sha256.Size]byte]struct{}, len(chunks))
	result := make([]driven.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		key := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(chunk.Content))))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, chunk)
	}
	return result
}

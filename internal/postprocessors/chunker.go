package postprocessors

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// ChunkConfig configures the chunker. Sizes are in characters (runes).
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig returns 800 character chunks with 50 characters of overlap
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{Size: 800, Overlap: 50}
}

// separators are tried in order when looking for a break point
var separators = []string{"\n\n", "\n", ". ", "? ", "! ", "; ", " "}

// Chunker splits text into overlapping chunks, preferring to break at
// paragraph, line, sentence and word boundaries in that order.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. Invalid sizes fall back to the defaults and
// an overlap of at least the chunk size is reduced to a quarter of it.
func NewChunker(cfg ChunkConfig) *Chunker {
	def := DefaultChunkConfig()
	if cfg.Size <= 0 {
		cfg.Size = def.Size
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.Size {
		cfg.Overlap = cfg.Size / 4
	}
	return &Chunker{size: cfg.Size, overlap: cfg.Overlap}
}

func (c *Chunker) Name() string { return "chunker" }

func (c *Chunker) Order() int { return 0 }

// Process splits every incoming chunk; positions are renumbered across the output
func (c *Chunker) Process(chunks []driven.Chunk) []driven.Chunk {
	var result []driven.Chunk
	for _, chunk := range chunks {
		for _, piece := range c.split([]rune(chunk.Content)) {
			result = append(result, driven.Chunk{
				Content:     string(piece.text),
				Position:    len(result),
				StartOffset: chunk.StartOffset + piece.start,
				EndOffset:   chunk.StartOffset + piece.end,
				Metadata:    chunk.Metadata,
			})
		}
	}
	return result
}

type piece struct {
	text       []rune
	start, end int
}

func (c *Chunker) split(runes []rune) []piece {
	n := len(runes)
	if n <= c.size {
		return []piece{{text: runes, start: 0, end: n}}
	}

	var pieces []piece
	for start := 0; start < n; {
		end := min(start+c.size, n)
		if end < n {
			if bp := c.breakPoint(runes, start, end); bp > start {
				end = bp
			}
		}
		pieces = append(pieces, piece{text: runes[start:end], start: start, end: end})
		if end >= n {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return pieces
}

// breakPoint returns the rune index just after the best separator in the
// last part of runes[start:end], or -1 when there is none.
func (c *Chunker) breakPoint(runes []rune, start, end int) int {
	// Only the tail of the window is searched so chunks stay close to size.
	searchStart := max(start, end-c.size/2)
	window := string(runes[searchStart:end])

	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return searchStart + utf8.RuneCountInString(window[:idx+len(sep)])
		}
	}
	return -1
}

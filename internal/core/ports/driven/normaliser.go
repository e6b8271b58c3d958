package driven

// Normaliser cleans text extracted from one family of file formats before
// it is chunked.
type Normaliser interface {
	// Normalise returns cleaned text for content extracted from a file of mimeType
	Normalise(content string, mimeType string) string

	// SupportedTypes returns MIME types this normaliser handles.
	// Wildcards like "text/*" and "*/*" are allowed.
	SupportedTypes() []string

	// Priority orders matching normalisers (higher = more specific).
	//   50-89: format-specific (PDF, Word, spreadsheet)
	//   1-9:   fallback
	Priority() int
}

// NormaliserRegistry selects the normaliser for a MIME type.
// When multiple normalisers match, the highest priority one is used.
type NormaliserRegistry interface {
	// Get returns the best-matching normaliser, or nil if none matches
	Get(mimeType string) Normaliser

	// GetAll returns every matching normaliser, highest priority first
	GetAll(mimeType string) []Normaliser

	// Register adds a normaliser
	Register(normaliser Normaliser)

	// List returns all registered MIME types, sorted
	List() []string
}

// PostProcessor is one stage of the chunking pipeline.
// Stages run in Order(): the chunker first, then cleanup stages.
type PostProcessor interface {
	// Process transforms the chunks produced by the previous stage
	Process(chunks []Chunk) []Chunk

	// Name returns the processor name for logging
	Name() string

	// Order returns the position in the pipeline (lower = earlier)
	Order() int
}

// Chunk is a piece of page text moving through the pipeline
type Chunk struct {
	// Content is the text content of the chunk
	Content string

	// Position is the chunk index within the processed text (0-based)
	Position int

	// StartOffset and EndOffset are rune offsets into the processed text
	StartOffset int
	EndOffset   int

	// Metadata carries stage annotations
	Metadata map[string]string
}

// PostProcessorPipeline chains post-processors in order
type PostProcessorPipeline interface {
	// Process runs text through every stage and returns the final chunks
	Process(content string) []Chunk

	// Add adds a processor; stages are kept sorted by Order()
	Add(processor PostProcessor)

	// List returns processor names in pipeline order
	List() []string
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.EmbeddingService = (*GeminiEmbedding)(nil)
	_ driven.LLMService       = (*GeminiLLM)(nil)
)

const (
	defaultGeminiEmbeddingModel = "gemini-embedding-001"
	defaultGeminiLLMModel       = "gemini-1.5-flash"
)

var geminiModelDimensions = map[string]int{
	"gemini-embedding-001": 3072,
	"text-embedding-004":   768,
	"embedding-001":        768,
}

// GeminiEmbedding implements EmbeddingService using the Gemini API
type GeminiEmbedding struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewGeminiEmbedding creates a Gemini embedding service.
// dimensions overrides the model's native size when positive.
func NewGeminiEmbedding(ctx context.Context, apiKey, model string, dimensions int, opts ...option.ClientOption) (*GeminiEmbedding, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiEmbeddingModel
	}
	if dimensions <= 0 {
		dimensions = geminiModelDimensions[model]
		if dimensions == 0 {
			dimensions = 768
		}
	}

	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiEmbedding{client: client, model: model, dimensions: dimensions}, nil
}

// Embed batches all texts into one request
func (g *GeminiEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := g.client.EmbeddingModel(g.model)
	em.TaskType = genai.TaskTypeRetrievalDocument

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini batch embed: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

// EmbedQuery embeds a single query with the retrieval query task type
func (g *GeminiEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	em := g.client.EmbeddingModel(g.model)
	em.TaskType = genai.TaskTypeRetrievalQuery

	resp, err := em.EmbedContent(ctx, genai.Text(query))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp.Embedding == nil {
		return nil, errors.New("no embedding returned for query")
	}
	return resp.Embedding.Values, nil
}

// Dimensions returns the embedding dimension size
func (g *GeminiEmbedding) Dimensions() int {
	return g.dimensions
}

// Model returns the model name being used
func (g *GeminiEmbedding) Model() string {
	return g.model
}

// HealthCheck embeds a short probe string
func (g *GeminiEmbedding) HealthCheck(ctx context.Context) error {
	_, err := g.EmbedQuery(ctx, "health check")
	return err
}

// Close releases the underlying client
func (g *GeminiEmbedding) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// GeminiLLM implements LLMService using the Gemini API
type GeminiLLM struct {
	client *genai.Client
	model  string
}

// NewGeminiLLM creates a Gemini text generation service
func NewGeminiLLM(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiLLMModel
	}

	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiLLM{client: client, model: model}, nil
}

// Generate completes userPrompt with systemPrompt as the system instruction
func (g *GeminiLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m := g.client.GenerativeModel(g.model)
	m.SetTemperature(0.1)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return candidateText(resp), nil
}

// candidateText joins the text parts of the first candidate
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// Model returns the model name being used
func (g *GeminiLLM) Model() string {
	return g.model
}

// Ping fetches model metadata
func (g *GeminiLLM) Ping(ctx context.Context) error {
	if _, err := g.client.GenerativeModel(g.model).Info(ctx); err != nil {
		return fmt.Errorf("gemini model info: %w", err)
	}
	return nil
}

// Close releases the underlying client
func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

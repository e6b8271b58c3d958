package driven

import "context"

// LLMService produces the grounded answer returned by retrieval. The
// retrieved excerpts arrive inside userPrompt; the service holds no
// conversation state between calls.
type LLMService interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Model names the configured completion model, e.g. "gpt-4o-mini"
	Model() string

	Ping(ctx context.Context) error
	Close() error
}

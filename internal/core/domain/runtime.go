package domain

import "sync/atomic"

// RuntimeConfig records the backends chosen at startup and whether the AI
// services are currently configured. The backend names never change after
// construction; the availability flags flip when runtime.Services swaps a
// provider, so they are safe to read from any goroutine.
type RuntimeConfig struct {
	IndexBackend string // "vespa", "qdrant" or "pgvector"
	QueueBackend string // "redis", "postgres" or "inline"

	embedding atomic.Bool
	llm       atomic.Bool
}

func NewRuntimeConfig(indexBackend, queueBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		IndexBackend: indexBackend,
		QueueBackend: queueBackend,
	}
}

func (c *RuntimeConfig) EmbeddingAvailable() bool { return c.embedding.Load() }

func (c *RuntimeConfig) LLMAvailable() bool { return c.llm.Load() }

func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) { c.embedding.Store(available) }

func (c *RuntimeConfig) SetLLMAvailable(available bool) { c.llm.Store(available) }

// CanIngest reports whether changed documents can be chunked and embedded.
// Deletions go through regardless.
func (c *RuntimeConfig) CanIngest() bool {
	return c.EmbeddingAvailable()
}

// CanAnswer reports whether retrieval can run end to end. Without it every
// question gets the fixed apology answer.
func (c *RuntimeConfig) CanAnswer() bool {
	return c.EmbeddingAvailable() && c.LLMAvailable()
}

// Package provider defines the external model contracts (embedding,
// summarization, completion) and their HTTP client implementations.
package provider

import (
	"context"

	"github.com/hyperjump/webrag/internal/models"
)

// Embedder produces vector embeddings for text. The same embedder must serve
// both index-time and query-time calls, or nearest-neighbor semantics are
// undefined.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Summarizer maps a chunk of text to a short natural-language synopsis.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// CompletionOptions are per-call generation parameters.
type CompletionOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Completer generates a chat completion for the given messages.
type Completer interface {
	Complete(ctx context.Context, messages []models.ChatMessage, opts CompletionOptions) (string, error)
}

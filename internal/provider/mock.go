package provider

import (
	"context"
	"math"

	"github.com/hyperjump/webrag/internal/models"
)

// MockEmbedder is a deterministic embedder for tests. It returns a
// fixed-dimension vector derived from the text hash so the same text always
// gets the same embedding.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of
// the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := hashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// hashString returns a deterministic non-negative hash of s.
func hashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}

// StubSummarizer returns a fixed-prefix summary without calling any provider.
type StubSummarizer struct{}

// Summarize returns a truncated echo of the input.
func (StubSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	const max = 40
	if len(text) > max {
		text = text[:max]
	}
	return "summary: " + text, nil
}

// StubCompleter returns a fixed response without calling any provider.
type StubCompleter struct {
	Response string
	Err      error
}

// Complete returns the configured response or error.
func (s StubCompleter) Complete(ctx context.Context, messages []models.ChatMessage, opts CompletionOptions) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Response, nil
}

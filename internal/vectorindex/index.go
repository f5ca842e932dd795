// Package vectorindex stores chunk/summary records with their embeddings and
// serves nearest-neighbor search over them.
package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/webrag/internal/models"
	"github.com/hyperjump/webrag/internal/provider"
)

// Index is an append-only in-memory store of records searched by squared L2
// distance. Embeddings are computed through the configured provider; the same
// provider serves add-time and query-time, so neighbor semantics stay
// consistent. No normalization is applied beyond what the provider itself does.
type Index struct {
	embedder provider.Embedder

	mu      sync.RWMutex
	records []models.Record
}

// New creates an empty index backed by the given embedder.
func New(embedder provider.Embedder) *Index {
	return &Index{embedder: embedder}
}

// Add embeds each chunk and appends one record per (chunk, summary) pair.
// Chunk and summary counts must match (ErrArityMismatch otherwise), every
// embedding must have the provider's dimension, and the append is
// all-or-nothing: an embedding failure leaves the index unchanged.
func (idx *Index) Add(ctx context.Context, chunks, summaries []string) error {
	if len(chunks) != len(summaries) {
		return fmt.Errorf("%w: %d chunks, %d summaries", models.ErrArityMismatch, len(chunks), len(summaries))
	}
	if len(chunks) == 0 {
		return nil
	}

	embeddings, err := idx.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}
	dims := idx.embedder.Dimensions()
	for i, emb := range embeddings {
		if len(emb) != dims {
			return fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(emb), dims)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i := range chunks {
		idx.records = append(idx.records, models.Record{
			Text:      chunks[i],
			Summary:   summaries[i],
			Embedding: embeddings[i],
		})
	}
	return nil
}

// Search embeds the query and returns up to topK records ordered by ascending
// squared L2 distance, ties broken by insertion order. An empty index returns
// an empty result, never an error.
func (idx *Index) Search(ctx context.Context, query string, topK int) ([]models.Record, error) {
	idx.mu.RLock()
	empty := len(idx.records) == 0
	idx.mu.RUnlock()
	if empty || topK <= 0 {
		return nil, nil
	}

	queryEmb, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(queryEmb) != idx.embedder.Dimensions() {
		return nil, fmt.Errorf("query embedding has dimension %d, expected %d", len(queryEmb), idx.embedder.Dimensions())
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		pos  int
		dist float64
	}
	scores := make([]scored, len(idx.records))
	for i, rec := range idx.records {
		scores[i] = scored{pos: i, dist: squaredL2(queryEmb, rec.Embedding)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].dist < scores[j].dist })

	if topK > len(scores) {
		topK = len(scores)
	}
	results := make([]models.Record, topK)
	for i := 0; i < topK; i++ {
		results[i] = idx.records[scores[i].pos]
	}
	return results, nil
}

// Snapshot returns a copy of every stored record, embeddings included, so the
// index can be reconstructed without re-invoking the embedding provider.
func (idx *Index) Snapshot() []models.Record {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]models.Record, len(idx.records))
	for i, rec := range idx.records {
		emb := make([]float32, len(rec.Embedding))
		copy(emb, rec.Embedding)
		out[i] = models.Record{Text: rec.Text, Summary: rec.Summary, Embedding: emb}
	}
	return out
}

// Restore replaces the index contents with the given records. Dimensions are
// re-validated; a mismatch rejects the whole restore and leaves the index
// unchanged.
func (idx *Index) Restore(records []models.Record) error {
	dims := idx.embedder.Dimensions()
	for i, rec := range records {
		if len(rec.Embedding) != dims {
			return fmt.Errorf("record %d has embedding dimension %d, expected %d", i, len(rec.Embedding), dims)
		}
	}

	replacement := make([]models.Record, len(records))
	for i, rec := range records {
		emb := make([]float32, len(rec.Embedding))
		copy(emb, rec.Embedding)
		replacement[i] = models.Record{Text: rec.Text, Summary: rec.Summary, Embedding: emb}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.records = replacement
	return nil
}

// Len returns the number of stored records.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// Clear removes every record. Clearing is whole-index only; individual
// records are never updated or deleted.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.records = nil
}

// squaredL2 returns the squared Euclidean distance between two equal-length
// vectors.
func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Package session implements the per-session retrieval orchestrator: it
// composes chunking, summarization, and the vector index on ingest, and
// retrieval plus completion on answer, under shared rate limiting and usage
// accounting. One Model per conversation; no state is shared across sessions.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/webrag/internal/chunker"
	"github.com/hyperjump/webrag/internal/fetch"
	"github.com/hyperjump/webrag/internal/metrics"
	"github.com/hyperjump/webrag/internal/models"
	"github.com/hyperjump/webrag/internal/provider"
	"github.com/hyperjump/webrag/internal/ratelimit"
	"github.com/hyperjump/webrag/internal/validate"
	"github.com/hyperjump/webrag/internal/vectorindex"
	"github.com/hyperjump/webrag/pkg/utils"
)

const answerInstruction = "You are an AI assistant. Answer based on the provided context. " +
	"If the answer is not in the context, respond with: 'I can't retrieve the answer from the context.'"

// notReadyMessage is returned by Answer before any content has been ingested.
const notReadyMessage = "No content has been processed yet. Please ingest a URL first."

// Config holds per-session pipeline settings.
type Config struct {
	ChunkSize         int
	TopK              int
	RequestsPerMinute int
}

// AnswerOptions are per-query generation parameters. UseSummary selects
// summarized context; otherwise raw chunk text is used.
type AnswerOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	UseSummary  bool
}

// Model orchestrates the ingest and answer pipelines for one session.
type Model struct {
	chunker    *chunker.Chunker
	validator  *validate.Validator
	fetcher    fetch.Fetcher
	summarizer provider.Summarizer
	completer  provider.Completer
	index      *vectorindex.Index
	limiter    *ratelimit.Limiter
	metrics    *metrics.Collector
	topK       int
	logger     *zap.Logger // optional; when set, logs pipeline events

	mu       sync.Mutex
	context  string
	messages []models.ChatMessage
	cache    map[string]string
	ready    bool
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets a logger for pipeline events.
func WithLogger(l *zap.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// New creates a session model with its own rate limiter and metrics; nothing
// is shared with other sessions.
func New(
	fetcher fetch.Fetcher,
	embedder provider.Embedder,
	summarizer provider.Summarizer,
	completer provider.Completer,
	cfg Config,
	opts ...Option,
) *Model {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	m := &Model{
		chunker:    chunker.New(cfg.ChunkSize),
		validator:  validate.New(),
		fetcher:    fetcher,
		summarizer: summarizer,
		completer:  completer,
		index:      vectorindex.New(embedder),
		limiter:    ratelimit.New(cfg.RequestsPerMinute),
		metrics:    metrics.New(),
		topK:       cfg.TopK,
		cache:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ingest runs the document-processing pipeline: validate the URL, pass the
// rate-limit gate, fetch, validate content, chunk, summarize each chunk, and
// index all (chunk, summary) pairs atomically. Any step failure aborts the
// pipeline, records a failed request, and leaves previously committed state
// untouched. The returned error's message is the human-readable reason.
func (m *Model) Ingest(ctx context.Context, url string) error {
	start := time.Now()
	fail := func(err error) error {
		m.metrics.Record(false, time.Since(start), 0)
		if m.logger != nil {
			m.logger.Warn("ingest failed", zap.String("url", url), zap.Error(err))
		}
		return err
	}

	if !m.validator.ValidURL(url) {
		return fail(&models.ValidationError{Reason: "invalid URL"})
	}
	if !m.limiter.Allow() {
		return fail(models.ErrRateLimited)
	}

	text, err := m.fetcher.Fetch(ctx, url)
	if err != nil {
		return fail(&models.ProviderError{Op: "fetch", Err: err})
	}
	if ok, reason := m.validator.ValidateContent(text); !ok {
		return fail(&models.ValidationError{Reason: reason})
	}

	chunks := m.chunker.Split(text)
	summaries := make([]string, len(chunks))
	for i, chunk := range chunks {
		summary, err := m.summarizer.Summarize(ctx, chunk)
		if err != nil {
			return fail(&models.ProviderError{Op: "summarize", Err: err})
		}
		summaries[i] = summary
	}

	if err := m.index.Add(ctx, chunks, summaries); err != nil {
		return fail(fmt.Errorf("indexing content: %w", err))
	}

	m.mu.Lock()
	m.context = text
	m.ready = true
	m.mu.Unlock()

	m.metrics.Record(true, time.Since(start), utils.WordCount(text))
	if m.logger != nil {
		m.logger.Info("ingested url",
			zap.String("url", url),
			zap.Int("chunks", len(chunks)),
			zap.Int("index_size", m.index.Len()))
	}
	return nil
}

// Answer retrieves the top-k records for the query, assembles context from
// their summaries or raw texts, and delegates to the completion provider.
// It never returns an error: rate-limit denials and provider failures come
// back as human-readable message strings, so a conversation cannot crash.
func (m *Model) Answer(ctx context.Context, query string, opts AnswerOptions) string {
	start := time.Now()

	m.mu.Lock()
	ready := m.ready
	m.mu.Unlock()
	if !ready {
		return notReadyMessage
	}

	if !m.limiter.Allow() {
		m.metrics.Record(false, time.Since(start), 0)
		return models.ErrRateLimited.Error()
	}

	cacheKey := fmt.Sprintf("%s|%s|%t", query, opts.Model, opts.UseSummary)
	m.mu.Lock()
	if cached, ok := m.cache[cacheKey]; ok {
		m.mu.Unlock()
		m.metrics.Record(true, time.Since(start), 0)
		return cached
	}
	m.mu.Unlock()

	records, err := m.index.Search(ctx, query, m.topK)
	if err != nil {
		m.metrics.Record(false, time.Since(start), 0)
		return fmt.Sprintf("API request failed: %v", err)
	}

	contextText := joinContext(records, opts.UseSummary)
	prompt := []models.ChatMessage{
		{Role: models.RoleSystem, Content: "Context: " + contextText},
		{Role: models.RoleUser, Content: answerInstruction + "\n" + query},
	}

	answer, err := m.completer.Complete(ctx, prompt, provider.CompletionOptions{
		Model:       opts.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		m.metrics.Record(false, time.Since(start), 0)
		if m.logger != nil {
			m.logger.Warn("completion failed", zap.Error(err))
		}
		return fmt.Sprintf("API request failed: %v", err)
	}

	m.metrics.Record(true, time.Since(start), utils.WordCount(answer))

	m.mu.Lock()
	m.messages = append(m.messages,
		models.ChatMessage{Role: models.RoleUser, Content: query},
		models.ChatMessage{Role: models.RoleAssistant, Content: answer, Context: contextText},
	)
	m.cache[cacheKey] = answer
	m.mu.Unlock()

	return answer
}

// joinContext joins record summaries or raw texts with newlines, in retrieval
// order.
func joinContext(records []models.Record, useSummary bool) string {
	parts := make([]string, len(records))
	for i, rec := range records {
		if useSummary {
			parts[i] = rec.Summary
		} else {
			parts[i] = rec.Text
		}
	}
	return strings.Join(parts, "\n")
}

// Clear resets the session context, response cache, and transcript. The
// vector index survives; use Reset for a full wipe. Idempotent.
func (m *Model) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.context = ""
	m.messages = nil
	m.cache = make(map[string]string)
}

// Reset clears the session and additionally wipes the vector index and zeroes
// the metrics in place. The rate-limiter window is deliberately preserved:
// resetting must not grant extra provider quota.
func (m *Model) Reset() {
	m.Clear()
	m.index.Clear()
	m.metrics.Reset()
	m.mu.Lock()
	m.ready = false
	m.mu.Unlock()
}

// Context returns the raw text of the last ingested document.
func (m *Model) Context() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.context
}

// Messages returns a copy of the conversation transcript.
func (m *Model) Messages() []models.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ChatMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Metrics returns the current usage counters.
func (m *Model) Metrics() *models.MetricsSnapshot {
	return m.metrics.Snapshot()
}

// IndexSize returns the number of indexed records.
func (m *Model) IndexSize() int {
	return m.index.Len()
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hyperjump/webrag/internal/models"
)

// Groq defaults. The API is OpenAI-compatible, so the client also works
// against any compatible chat-completions endpoint.
const (
	DefaultGroqBaseURL  = "https://api.groq.com/openai/v1"
	DefaultSummaryModel = "llama-3.1-8b-instant"
)

const summarySystemPrompt = "Generate a concise summary for the following text."

// GroqClient is a chat-completions client implementing Completer and
// Summarizer against an OpenAI-compatible API.
type GroqClient struct {
	baseURL      string
	apiKey       string
	summaryModel string
	client       *http.Client
	maxRetries   int
}

// GroqConfig configures the chat-completions client.
type GroqConfig struct {
	BaseURL      string
	APIKey       string
	SummaryModel string
	Timeout      time.Duration
}

// NewGroqClient creates a client using the provided configuration.
func NewGroqClient(cfg GroqConfig) (*GroqClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGroqBaseURL
	}
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = DefaultSummaryModel
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	return &GroqClient{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		summaryModel: cfg.SummaryModel,
		client:       &http.Client{Timeout: t},
		maxRetries:   3,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends the messages to the chat-completions endpoint and returns the
// first choice's content.
func (c *GroqClient) Complete(ctx context.Context, messages []models.ChatMessage, opts CompletionOptions) (string, error) {
	reqMessages := make([]chatMessage, len(messages))
	for i, m := range messages {
		reqMessages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	body := chatRequest{
		Model:       opts.Model,
		Messages:    reqMessages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	payload, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}

	var out chatResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Summarize generates a concise summary of text using the configured summary
// model.
func (c *GroqClient) Summarize(ctx context.Context, text string) (string, error) {
	messages := []models.ChatMessage{
		{Role: models.RoleSystem, Content: summarySystemPrompt},
		{Role: models.RoleUser, Content: text},
	}
	return c.Complete(ctx, messages, CompletionOptions{
		Model:       c.summaryModel,
		Temperature: 0.7,
		MaxTokens:   2500,
	})
}

// post sends a JSON request, retrying on 429 and 5xx with backoff. Retry-After
// is honored when present.
func (c *GroqClient) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.maxRetries {
				if sleepErr := sleepCtx(ctx, retryDelay(attempt)); sleepErr != nil {
					return nil, sleepErr
				}
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, convErr := strconv.Atoi(ra); convErr == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("chat completion failed: %s", resp.Status)
			if attempt < c.maxRetries {
				if sleepErr := sleepCtx(ctx, delay); sleepErr != nil {
					return nil, sleepErr
				}
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("chat completion failed: %s", resp.Status)
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		return payload, nil
	}
	return nil, lastErr
}

// retryDelay returns an exponential backoff capped at 5s.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

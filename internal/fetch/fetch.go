// Package fetch retrieves page content over HTTP for ingestion.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hyperjump/webrag/internal/validate"
)

// Fetcher retrieves the text content of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Client fetches pages over HTTP, enforcing the validator's MIME allowlist
// and size cap, and stripping markup from HTML responses so the pipeline
// receives plain text.
type Client struct {
	client    *http.Client
	validator *validate.Validator
	userAgent string
}

// New creates a fetcher with the given timeout.
func New(timeout time.Duration, validator *validate.Validator) *Client {
	if timeout == 0 {
		timeout = 80 * time.Second
	}
	return &Client{
		client:    &http.Client{Timeout: timeout},
		validator: validator,
		userAgent: "webrag/1.0",
	}
}

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
	blankRunRe    = regexp.MustCompile(`\n{3,}`)
)

// Fetch GETs the URL and returns its text content. Responses with a
// disallowed content type or exceeding the size cap are rejected.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !c.validator.AllowedContentType(contentType) {
		return "", fmt.Errorf("content type %q not allowed", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, validate.MaxContentSize+1))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	if !c.validator.AllowedSize(len(body)) {
		return "", fmt.Errorf("content exceeds %d byte limit", validate.MaxContentSize)
	}

	text := string(body)
	if strings.HasPrefix(strings.ToLower(contentType), "text/html") {
		text = stripHTML(text)
	}
	return text, nil
}

// stripHTML removes script and style blocks, then remaining tags, and
// collapses blank-line runs. A heuristic, not a full HTML parser: the
// pipeline only needs readable text.
func stripHTML(s string) string {
	s = scriptBlockRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")
	s = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&nbsp;", " ").Replace(s)
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Package validate provides well-formedness and safety checks for URLs and
// fetched content. These are liveness heuristics, not a security boundary.
package validate

import (
	"net/url"
	"regexp"
	"strings"
)

// MaxContentSize caps fetched content at 10 MB, comfortably under provider
// request limits.
const MaxContentSize = 10 * 1024 * 1024

// MinContentLength is the minimum trimmed content length accepted for indexing.
const MinContentLength = 10

var scriptTagRe = regexp.MustCompile(`(?i)<script[^>]*>`)

// allowedContentTypes are the MIME types accepted from a fetch.
var allowedContentTypes = map[string]bool{
	"text/html":        true,
	"text/plain":       true,
	"text/markdown":    true,
	"application/pdf":  true,
	"application/json": true,
}

// Validator gates URLs and fetched content before they enter the pipeline.
type Validator struct{}

// New returns a content validator with default settings.
func New() *Validator {
	return &Validator{}
}

// ValidURL reports whether rawURL parses with both a scheme and a host.
func (v *Validator) ValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// AllowedContentType reports whether the MIME type (parameters stripped) is
// accepted for processing.
func (v *Validator) AllowedContentType(contentType string) bool {
	mime := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	return allowedContentTypes[strings.ToLower(mime)]
}

// AllowedSize reports whether the content size in bytes is within the cap.
func (v *Validator) AllowedSize(size int) bool {
	return size <= MaxContentSize
}

// ValidateContent checks fetched text for minimum length and script-tag
// markers. Returns ok and a human-readable reason.
func (v *Validator) ValidateContent(content string) (bool, string) {
	if scriptTagRe.MatchString(content) {
		return false, "contains script tags"
	}
	if len(strings.TrimSpace(content)) < MinContentLength {
		return false, "content too short"
	}
	return true, "content passed validation"
}

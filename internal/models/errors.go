package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline.
var (
	// ErrRateLimited signals the sliding-window limiter denied the request.
	// Transient: callers may retry once the window clears.
	ErrRateLimited = errors.New("rate limit exceeded, please wait before retrying")

	// ErrArityMismatch signals chunk and summary counts differ on index add.
	ErrArityMismatch = errors.New("chunks and summaries length mismatch")
)

// ValidationError reports a bad URL or rejected content. User-correctable,
// never retried automatically.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ProviderError reports a fetch, embed, summarize, or completion failure.
// Surfaced as a failure outcome, never a crash.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StateImportError reports a malformed or incomplete session snapshot.
// The snapshot is rejected wholesale; no partial import occurs.
type StateImportError struct {
	Reason string
}

func (e *StateImportError) Error() string {
	return "state import rejected: " + e.Reason
}

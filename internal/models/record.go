// Package models defines core data structures for records, messages, and session snapshots.
package models

// Record is the atomic unit stored by the vector index: a chunk of source text,
// its generated summary, and the chunk's embedding. Records are immutable once
// stored; the index is append-only.
type Record struct {
	Text      string    `json:"text"`
	Summary   string    `json:"summary"`
	Embedding []float32 `json:"embedding"`
}

// ChatMessage is a single conversation turn. Context carries the retrieved
// context an assistant turn was conditioned on, when available.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Context string `json:"context,omitempty"`
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

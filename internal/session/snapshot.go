package session

import (
	"encoding/json"

	"github.com/hyperjump/webrag/internal/models"
)

// requiredSnapshotKeys are the top-level fields every imported snapshot must
// carry.
var requiredSnapshotKeys = []string{"metrics", "vector_database", "messages"}

// Export captures the full session state: usage metrics, every indexed record
// (embeddings included), and the conversation transcript.
func (m *Model) Export() *models.SessionSnapshot {
	m.mu.Lock()
	messages := make([]models.ChatMessage, len(m.messages))
	copy(messages, m.messages)
	m.mu.Unlock()

	return &models.SessionSnapshot{
		Metrics:        m.metrics.Snapshot(),
		VectorDatabase: m.index.Snapshot(),
		Messages:       messages,
	}
}

// Import replaces the session's metrics, vector index, and transcript with
// the snapshot's contents. The replacement is wholesale, never a merge, and a
// rejected snapshot leaves the current state unchanged.
func (m *Model) Import(snap *models.SessionSnapshot) error {
	if snap == nil {
		return &models.StateImportError{Reason: "empty snapshot"}
	}
	if snap.Metrics == nil {
		return &models.StateImportError{Reason: "missing metrics"}
	}

	// Index restore is the only step that can fail; run it first so a
	// rejection touches nothing.
	if err := m.index.Restore(snap.VectorDatabase); err != nil {
		return &models.StateImportError{Reason: err.Error()}
	}
	m.metrics.Restore(snap.Metrics)

	m.mu.Lock()
	m.messages = make([]models.ChatMessage, len(snap.Messages))
	copy(m.messages, snap.Messages)
	m.cache = make(map[string]string)
	m.context = ""
	m.ready = len(snap.VectorDatabase) > 0
	m.mu.Unlock()
	return nil
}

// DecodeSnapshot parses raw JSON into a session snapshot, validating that all
// required top-level keys are present. Malformed or incomplete payloads are
// rejected with a StateImportError.
func DecodeSnapshot(data []byte) (*models.SessionSnapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &models.StateImportError{Reason: "not a JSON object"}
	}
	for _, key := range requiredSnapshotKeys {
		if _, ok := raw[key]; !ok {
			return nil, &models.StateImportError{Reason: "missing required key: " + key}
		}
	}

	var snap models.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &models.StateImportError{Reason: "malformed snapshot: " + err.Error()}
	}
	return &snap, nil
}

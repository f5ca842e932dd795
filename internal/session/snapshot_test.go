package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hyperjump/webrag/internal/models"
	"github.com/hyperjump/webrag/internal/provider"
)

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(&fakeFetcher{text: testDoc}, provider.StubCompleter{Response: "an answer"})
	if err := m.Ingest(ctx, "https://example.com"); err != nil {
		t.Fatal(err)
	}
	m.Answer(ctx, "what is alpha?", AnswerOptions{Model: "m"})

	snap := m.Export()
	if snap.Metrics == nil || len(snap.VectorDatabase) == 0 || len(snap.Messages) != 2 {
		t.Fatalf("incomplete export: %+v", snap)
	}
	for _, rec := range snap.VectorDatabase {
		if len(rec.Embedding) == 0 {
			t.Fatal("export dropped embeddings")
		}
	}

	// The snapshot survives JSON, the exchange format.
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}

	restored := newTestModel(&fakeFetcher{text: ""}, provider.StubCompleter{Response: "later answer"})
	if err := restored.Import(decoded); err != nil {
		t.Fatal(err)
	}
	if restored.IndexSize() != m.IndexSize() {
		t.Errorf("index size %d != %d", restored.IndexSize(), m.IndexSize())
	}
	if len(restored.Messages()) != 2 {
		t.Errorf("transcript %d messages", len(restored.Messages()))
	}
	got := restored.Metrics()
	want := snap.Metrics
	if got.TotalRequests != want.TotalRequests || got.TotalTokensUsed != want.TotalTokensUsed {
		t.Errorf("metrics %+v != %+v", got, want)
	}
	if got.UptimeSeconds < want.UptimeSeconds {
		t.Error("uptime went backwards across import")
	}

	// The restored session answers without re-ingesting.
	if answer := restored.Answer(ctx, "follow-up", AnswerOptions{Model: "m"}); answer != "later answer" {
		t.Errorf("answer %q", answer)
	}
}

func TestImport_ReplacesNotMerges(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(&fakeFetcher{text: testDoc}, provider.StubCompleter{Response: "x"})
	if err := m.Ingest(ctx, "https://example.com"); err != nil {
		t.Fatal(err)
	}
	before := m.IndexSize()

	other := newTestModel(&fakeFetcher{text: testDoc + " Extra sentence for more chunks."}, provider.StubCompleter{Response: "x"})
	if err := other.Ingest(ctx, "https://example.com/b"); err != nil {
		t.Fatal(err)
	}

	if err := m.Import(other.Export()); err != nil {
		t.Fatal(err)
	}
	if m.IndexSize() == before+other.IndexSize() {
		t.Error("import merged instead of replacing")
	}
	if m.IndexSize() != other.IndexSize() {
		t.Errorf("index size %d, want %d", m.IndexSize(), other.IndexSize())
	}
}

func TestDecodeSnapshot_MissingKey(t *testing.T) {
	payload := []byte(`{"metrics": {"total_requests": 1}, "messages": []}`)
	_, err := DecodeSnapshot(payload)
	var importErr *models.StateImportError
	if !errors.As(err, &importErr) {
		t.Fatalf("err = %v", err)
	}
}

func TestDecodeSnapshot_NotJSON(t *testing.T) {
	var importErr *models.StateImportError
	if _, err := DecodeSnapshot([]byte("not json")); !errors.As(err, &importErr) {
		t.Fatalf("err = %v", err)
	}
}

func TestImport_RejectionLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(&fakeFetcher{text: testDoc}, provider.StubCompleter{Response: "x"})
	if err := m.Ingest(ctx, "https://example.com"); err != nil {
		t.Fatal(err)
	}
	before := m.IndexSize()

	bad := &models.SessionSnapshot{
		Metrics:        &models.MetricsSnapshot{},
		VectorDatabase: []models.Record{{Text: "t", Summary: "s", Embedding: []float32{1}}}, // wrong dimension
		Messages:       []models.ChatMessage{},
	}
	var importErr *models.StateImportError
	if err := m.Import(bad); !errors.As(err, &importErr) {
		t.Fatalf("err = %v", err)
	}
	if m.IndexSize() != before {
		t.Error("failed import mutated index")
	}
	if m.Metrics().TotalRequests == 0 {
		t.Error("failed import reset metrics")
	}

	if err := m.Import(nil); !errors.As(err, &importErr) {
		t.Fatalf("nil snapshot: %v", err)
	}
}

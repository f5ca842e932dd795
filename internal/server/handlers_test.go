package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/webrag/internal/config"
	"github.com/hyperjump/webrag/internal/models"
	"github.com/hyperjump/webrag/internal/provider"
	"github.com/hyperjump/webrag/internal/session"
	"github.com/hyperjump/webrag/internal/storage"
)

const testPage = "Alpha is the first topic. Beta follows with more detail. Gamma closes out the document."

type stubFetcher struct {
	text string
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.text, f.err
}

func newTestServer(t *testing.T, withStore bool) (*Server, http.Handler) {
	t.Helper()
	var store storage.Storage
	if withStore {
		s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { s.Close() })
		store = s
	}
	factory := func() *session.Model {
		return session.New(
			&stubFetcher{text: testPage},
			provider.NewMockEmbedder(16),
			provider.StubSummarizer{},
			provider.StubCompleter{Response: "STUB"},
			session.Config{ChunkSize: 40, TopK: 3, RequestsPerMinute: 100},
		)
	}
	srv := NewServer(factory, store, &config.ServerConfig{Port: 8080},
		config.ChatConfig{Model: "test-model", Temperature: 0.7, MaxTokens: 100},
		zap.NewNop())
	return srv, srv.Router()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/api/v1/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.ID == "" {
		t.Fatal("expected non-empty session id")
	}
	return out.ID
}

func TestHandleCreateAndDeleteSession(t *testing.T) {
	_, h := newTestServer(t, false)
	id := createSession(t, h)

	w := doJSON(t, h, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	if w.Code != http.StatusOK {
		t.Errorf("delete: got %d", w.Code)
	}
	w = doJSON(t, h, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want 404", w.Code)
	}
}

func TestHandleIngest(t *testing.T) {
	_, h := newTestServer(t, false)
	id := createSession(t, h)

	w := doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/ingest",
		map[string]string{"url": "https://example.com/page"})
	if w.Code != http.StatusOK {
		t.Fatalf("ingest: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Status    string `json:"status"`
		IndexSize int    `json:"index_size"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "ingested" || out.IndexSize < 1 {
		t.Errorf("got %+v", out)
	}
}

func TestHandleIngest_InvalidURL(t *testing.T) {
	_, h := newTestServer(t, false)
	id := createSession(t, h)

	w := doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/ingest",
		map[string]string{"url": "not-a-url"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", w.Code)
	}
}

func TestHandleIngest_UnknownSession(t *testing.T) {
	_, h := newTestServer(t, false)
	w := doJSON(t, h, http.MethodPost, "/api/v1/sessions/nope/ingest",
		map[string]string{"url": "https://example.com"})
	if w.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", w.Code)
	}
}

func TestHandleChat_PersistsHistory(t *testing.T) {
	srv, h := newTestServer(t, true)
	id := createSession(t, h)

	w := doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/ingest",
		map[string]string{"url": "https://example.com/page"})
	if w.Code != http.StatusOK {
		t.Fatalf("ingest: got %d", w.Code)
	}

	w = doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/chat",
		map[string]string{"query": "what is alpha?"})
	if w.Code != http.StatusOK {
		t.Fatalf("chat: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "STUB" {
		t.Errorf("answer: got %q", out.Answer)
	}

	stored, err := srv.storage.History(context.Background(), id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(stored))
	}
	if stored[0].Message.Role != models.RoleUser || stored[1].Message.Role != models.RoleAssistant {
		t.Errorf("roles: got %s, %s", stored[0].Message.Role, stored[1].Message.Role)
	}

	// repeating the same query hits the cache and must not duplicate history
	w = doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/chat",
		map[string]string{"query": "what is alpha?"})
	if w.Code != http.StatusOK {
		t.Fatalf("chat: got %d", w.Code)
	}
	stored, err = srv.storage.History(context.Background(), id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Errorf("cached answer duplicated history: got %d messages", len(stored))
	}
}

func TestHandleChat_BeforeIngest(t *testing.T) {
	_, h := newTestServer(t, false)
	id := createSession(t, h)

	w := doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/chat",
		map[string]string{"query": "anything"})
	if w.Code != http.StatusOK {
		t.Fatalf("got %d", w.Code)
	}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Answer == "" || out.Answer == "STUB" {
		t.Errorf("expected a not-ready message, got %q", out.Answer)
	}
}

func TestHandleChat_MissingQuery(t *testing.T) {
	_, h := newTestServer(t, false)
	id := createSession(t, h)

	w := doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/chat", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", w.Code)
	}
}

func TestHandleMetrics(t *testing.T) {
	_, h := newTestServer(t, false)
	id := createSession(t, h)

	doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/ingest",
		map[string]string{"url": "https://example.com/page"})

	w := doJSON(t, h, http.MethodGet, "/api/v1/sessions/"+id+"/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d", w.Code)
	}
	var out models.MetricsSnapshot
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.TotalRequests != 1 || out.SuccessfulRequests != 1 {
		t.Errorf("got %+v", out)
	}
}

func TestHandleExportImport_RoundTrip(t *testing.T) {
	_, h := newTestServer(t, false)
	src := createSession(t, h)

	doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+src+"/ingest",
		map[string]string{"url": "https://example.com/page"})
	doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+src+"/chat",
		map[string]string{"query": "what is beta?"})

	w := doJSON(t, h, http.MethodGet, "/api/v1/sessions/"+src+"/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: got %d", w.Code)
	}
	exported := w.Body.Bytes()

	dst := createSession(t, h)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+dst+"/import", bytes.NewReader(exported))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: got %d, body: %s", rec.Code, rec.Body.String())
	}

	// the restored session can answer without a fresh ingest
	w = doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+dst+"/chat",
		map[string]string{"query": "what is gamma?"})
	if w.Code != http.StatusOK {
		t.Fatalf("chat after import: got %d", w.Code)
	}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "STUB" {
		t.Errorf("answer: got %q", out.Answer)
	}
}

func TestHandleImport_MalformedState(t *testing.T) {
	_, h := newTestServer(t, false)
	id := createSession(t, h)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/import",
		bytes.NewReader([]byte(`{"metrics": {}, "messages": []}`)))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", w.Code)
	}
}

func TestHandleClear(t *testing.T) {
	srv, h := newTestServer(t, true)
	id := createSession(t, h)

	doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/ingest",
		map[string]string{"url": "https://example.com/page"})
	doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/chat",
		map[string]string{"query": "what is alpha?"})

	w := doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/clear", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear: got %d", w.Code)
	}

	count, err := srv.storage.CountMessages(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected empty stored history, got %d", count)
	}

	m, _ := srv.session(id)
	if m.IndexSize() < 1 {
		t.Error("clear should not wipe the index")
	}
}

func TestHandleHistory(t *testing.T) {
	_, h := newTestServer(t, true)
	id := createSession(t, h)

	doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/ingest",
		map[string]string{"url": "https://example.com/page"})
	doJSON(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/chat",
		map[string]string{"query": "what is alpha?"})

	w := doJSON(t, h, http.MethodGet, "/api/v1/sessions/"+id+"/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: got %d", w.Code)
	}
	var out struct {
		SessionID string               `json:"session_id"`
		Messages  []models.ChatMessage `json:"messages"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.SessionID != id {
		t.Errorf("session_id: got %s", out.SessionID)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out.Messages))
	}
	if out.Messages[0].Content != "what is alpha?" {
		t.Errorf("first message: got %q", out.Messages[0].Content)
	}
}

func TestHandleHealth(t *testing.T) {
	_, h := newTestServer(t, false)
	w := doJSON(t, h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("got %d", w.Code)
	}
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/webrag/internal/models"
	"github.com/hyperjump/webrag/internal/session"
)

const maxImportBytes = 64 << 20

type ingestRequest struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Query       string   `json:"query"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	UseSummary  *bool    `json:"use_summary,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.createSession()
	s.logger.Debug("session created", zap.String("id", id))
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.dropSession(id) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if s.storage != nil {
		if err := s.storage.ClearHistory(r.Context(), id); err != nil {
			s.logger.Warn("failed to clear stored history", zap.String("id", id), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	m, id, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		s.respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	s.logger.Debug("ingest request", zap.String("id", id), zap.String("url", req.URL))
	if err := m.Ingest(r.Context(), req.URL); err != nil {
		s.respondError(w, ingestStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ingested",
		"index_size": m.IndexSize(),
	})
}

// ingestStatus maps a pipeline failure to an HTTP status: client mistakes are
// 4xx, upstream provider failures are 502.
func ingestStatus(err error) int {
	var validationErr *models.ValidationError
	var providerErr *models.ProviderError
	switch {
	case errors.Is(err, models.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &providerErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	m, id, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	opts := session.AnswerOptions{
		Model:       s.chat.Model,
		Temperature: s.chat.Temperature,
		MaxTokens:   s.chat.MaxTokens,
		UseSummary:  s.chat.UseSummaryOrDefault(),
	}
	if req.Model != "" {
		opts.Model = req.Model
	}
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		opts.MaxTokens = *req.MaxTokens
	}
	if req.UseSummary != nil {
		opts.UseSummary = *req.UseSummary
	}

	before := len(m.Messages())
	answer := m.Answer(r.Context(), req.Query, opts)
	s.persistExchange(r, id, m, before)
	s.respondJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// persistExchange mirrors the tail of the in-memory transcript into storage.
// Answers that never reach the transcript (cache hits, rate-limit denials,
// not-ready replies) are not persisted again.
func (s *Server) persistExchange(r *http.Request, id string, m *session.Model, before int) {
	if s.storage == nil {
		return
	}
	msgs := m.Messages()
	if len(msgs) <= before {
		return
	}
	for _, msg := range msgs[before:] {
		if err := s.storage.SaveMessage(r.Context(), id, msg); err != nil {
			s.logger.Warn("failed to persist message", zap.String("id", id), zap.Error(err))
			return
		}
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, _, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, m.Metrics())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	m, id, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.logger.Debug("export request", zap.String("id", id))
	s.respondJSON(w, http.StatusOK, m.Export())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	m, id, ok := s.lookup(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	snap, err := session.DecodeSnapshot(data)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := m.Import(snap); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("session state imported",
		zap.String("id", id),
		zap.Int("records", m.IndexSize()))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "imported",
		"index_size": m.IndexSize(),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	m, id, ok := s.lookup(w, r)
	if !ok {
		return
	}
	m.Clear()
	if s.storage != nil {
		if err := s.storage.ClearHistory(r.Context(), id); err != nil {
			s.logger.Warn("failed to clear stored history", zap.String("id", id), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	m, id, ok := s.lookup(w, r)
	if !ok {
		return
	}
	m.Reset()
	if s.storage != nil {
		if err := s.storage.ClearHistory(r.Context(), id); err != nil {
			s.logger.Warn("failed to clear stored history", zap.String("id", id), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	m, id, ok := s.lookup(w, r)
	if !ok {
		return
	}
	messages := m.Messages()
	if s.storage != nil {
		stored, err := s.storage.History(r.Context(), id, 0)
		if err != nil {
			s.logger.Error("history lookup failed", zap.String("id", id), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		messages = make([]models.ChatMessage, len(stored))
		for i, sm := range stored {
			messages[i] = sm.Message
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"messages":   messages,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// lookup resolves the session from the URL, writing a 404 when it is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Model, string, bool) {
	id := chi.URLParam(r, "id")
	m, ok := s.session(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return nil, id, false
	}
	return m, id, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

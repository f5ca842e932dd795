// Package server provides the HTTP API for webrag.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/webrag/internal/config"
	"github.com/hyperjump/webrag/internal/session"
	"github.com/hyperjump/webrag/internal/storage"
)

// SessionFactory builds a fresh session model with its own rate limiter,
// metrics, and vector index.
type SessionFactory func() *session.Model

// Server is the HTTP server for the webrag API.
type Server struct {
	newSession SessionFactory
	storage    storage.Storage
	config     *config.ServerConfig
	chat       config.ChatConfig
	logger     *zap.Logger
	server     *http.Server

	mu       sync.RWMutex
	sessions map[string]*session.Model
}

// NewServer creates a server with the given dependencies.
func NewServer(
	factory SessionFactory,
	store storage.Storage,
	cfg *config.ServerConfig,
	chat config.ChatConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		newSession: factory,
		storage:    store,
		config:     cfg,
		chat:       chat,
		logger:     logger,
		sessions:   make(map[string]*session.Model),
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteSession)
			r.Post("/ingest", s.handleIngest)
			r.Post("/chat", s.handleChat)
			r.Get("/metrics", s.handleMetrics)
			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)
			r.Post("/clear", s.handleClear)
			r.Post("/reset", s.handleReset)
			r.Get("/history", s.handleHistory)
		})
	})
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) createSession() string {
	id := uuid.New().String()
	s.mu.Lock()
	s.sessions[id] = s.newSession()
	s.mu.Unlock()
	return id
}

func (s *Server) session(id string) (*session.Model, bool) {
	s.mu.RLock()
	m, ok := s.sessions[id]
	s.mu.RUnlock()
	return m, ok
}

func (s *Server) dropSession(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	return ok
}

// Package main is the webrag CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/webrag/internal/config"
	"github.com/hyperjump/webrag/internal/fetch"
	"github.com/hyperjump/webrag/internal/provider"
	"github.com/hyperjump/webrag/internal/server"
	"github.com/hyperjump/webrag/internal/session"
	"github.com/hyperjump/webrag/internal/storage"
	"github.com/hyperjump/webrag/internal/validate"
	"github.com/hyperjump/webrag/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/webrag/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// best effort: local .env for API keys during development
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "chat":
		runChat()
	case "version", "--version", "-v":
		fmt.Printf("webrag version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (pipeline steps, provider calls, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	factory := func() *session.Model {
		return session.New(
			components.Fetcher,
			components.Embedder,
			components.Summarizer,
			components.Completer,
			session.Config{
				ChunkSize:         cfg.Pipeline.ChunkSize,
				TopK:              cfg.Pipeline.TopK,
				RequestsPerMinute: cfg.Pipeline.RequestsPerMinute,
			},
			session.WithLogger(logger),
		)
	}

	srv := server.NewServer(factory, components.Storage, &cfg.Server, cfg.Chat, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	sessionID := fs.String("session", "", "session ID (created when empty)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: webrag ingest [flags] <url>")
		os.Exit(1)
	}
	pageURL := fs.Arg(0)

	id, created, err := resolveSession(*serverURL, *sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Session setup failed: %v\n", err)
		os.Exit(1)
	}
	if created {
		fmt.Printf("Session: %s\n", id)
	}

	var out struct {
		Status    string `json:"status"`
		IndexSize int    `json:"index_size"`
	}
	err = postJSON(*serverURL+"/api/v1/sessions/"+id+"/ingest",
		map[string]string{"url": pageURL}, &out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %s (%d records indexed)\n", pageURL, out.IndexSize)
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	sessionID := fs.String("session", "", "session ID")
	model := fs.String("model", "", "override chat model")
	raw := fs.Bool("raw", false, "use raw chunk text as context instead of summaries")
	_ = fs.Parse(os.Args[2:])

	if *sessionID == "" {
		fmt.Println("Usage: webrag chat --session <id> [flags] <query>")
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: webrag chat --session <id> [flags] <query>")
		os.Exit(1)
	}

	body := map[string]interface{}{"query": query}
	if *model != "" {
		body["model"] = *model
	}
	if *raw {
		body["use_summary"] = false
	}

	var out struct {
		Answer string `json:"answer"`
	}
	err := postJSON(*serverURL+"/api/v1/sessions/"+*sessionID+"/chat", body, &out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out.Answer)
}

// resolveSession returns the given session ID, or creates a new session when
// id is empty. The second return reports whether a session was created.
func resolveSession(serverURL, id string) (string, bool, error) {
	if id != "" {
		return id, false, nil
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := postJSON(serverURL+"/api/v1/sessions", nil, &out); err != nil {
		return "", false, err
	}
	return out.ID, true, nil
}

func postJSON(url string, body interface{}, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services shared by all sessions.
type Components struct {
	Storage    storage.Storage
	Fetcher    fetch.Fetcher
	Embedder   provider.Embedder
	Summarizer provider.Summarizer
	Completer  provider.Completer
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	fetcher := fetch.New(
		time.Duration(cfg.Pipeline.FetchTimeoutSeconds)*time.Second,
		validate.New(),
	)

	var summarizer provider.Summarizer
	var completer provider.Completer
	groqKey := os.Getenv(cfg.Providers.Groq.APIKeyEnv)
	if groqKey != "" {
		groq, err := provider.NewGroqClient(provider.GroqConfig{
			BaseURL:      cfg.Providers.Groq.BaseURL,
			APIKey:       groqKey,
			SummaryModel: cfg.Providers.Groq.SummaryModel,
			Timeout:      time.Duration(cfg.Providers.Groq.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
		}
		summarizer = groq
		completer = groq
	} else {
		logger.Warn("chat provider API key not set, using stub responses",
			zap.String("env", cfg.Providers.Groq.APIKeyEnv))
		summarizer = provider.StubSummarizer{}
		completer = provider.StubCompleter{Response: "No chat provider is configured."}
	}

	var embedder provider.Embedder
	embedKey := os.Getenv(cfg.Providers.Embedding.APIKeyEnv)
	if embedKey != "" {
		client, err := provider.NewEmbeddingClient(provider.EmbeddingConfig{
			BaseURL:    cfg.Providers.Embedding.BaseURL,
			APIKey:     embedKey,
			Model:      cfg.Providers.Embedding.Model,
			Dimensions: cfg.Providers.Embedding.Dimensions,
			Timeout:    time.Duration(cfg.Providers.Embedding.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
		}
		embedder = client
	} else {
		logger.Warn("embedding API key not set, using deterministic mock embeddings",
			zap.String("env", cfg.Providers.Embedding.APIKeyEnv))
		embedder = provider.NewMockEmbedder(cfg.Providers.Embedding.Dimensions)
	}

	return &Components{
		Storage:    store,
		Fetcher:    fetcher,
		Embedder:   embedder,
		Summarizer: summarizer,
		Completer:  completer,
	}, nil
}

func printUsage() {
	fmt.Println(`webrag - Web page ingestion and retrieval-augmented chat

Usage:
  webrag server [flags]             Start the HTTP server
  webrag ingest [flags] <url>       Ingest a web page into a session
  webrag chat [flags] <query>       Ask a question against ingested content
  webrag version                    Show version
  webrag help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/webrag/config.yaml)
  --debug            Enable debug logging (pipeline steps, provider calls, etc.)

Ingest Flags:
  --server string    Server URL (default: http://localhost:8080)
  --session string   Session ID; a new session is created when omitted

Chat Flags:
  --server string    Server URL (default: http://localhost:8080)
  --session string   Session ID (required)
  --model string     Override the configured chat model
  --raw              Use raw chunk text as context instead of summaries

Examples:
  webrag server
  webrag ingest https://example.com/article
  webrag ingest --session 7f3c... https://example.com/more
  webrag chat --session 7f3c... what is the article about?
  webrag chat --session 7f3c... --raw quote the exact wording`)
}

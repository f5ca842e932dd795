// Package config provides configuration loading and structs for the webrag server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Chat      ChatConfig      `yaml:"chat"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the chat-history database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ProvidersConfig holds external model provider settings. API keys are read
// from the environment variables named here, never from the file itself.
type ProvidersConfig struct {
	Groq      GroqConfig      `yaml:"groq"`
	Embedding EmbeddingConfig `yaml:"embedding"`
}

// GroqConfig holds chat-completion provider settings.
type GroqConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	SummaryModel   string `yaml:"summary_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PipelineConfig holds ingestion and retrieval settings.
type PipelineConfig struct {
	ChunkSize           int `yaml:"chunk_size"`
	TopK                int `yaml:"top_k"`
	RequestsPerMinute   int `yaml:"requests_per_minute"`
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds"`
}

// ChatConfig holds default generation parameters for answering.
type ChatConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	UseSummary  *bool   `yaml:"use_summary"`
}

// UseSummaryOrDefault returns whether retrieval context defaults to summaries;
// true when unset.
func (c *ChatConfig) UseSummaryOrDefault() bool {
	if c.UseSummary != nil {
		return *c.UseSummary
	}
	return true
}

// Load reads and parses the config file at path, applies defaults, and
// expands the database path. Returns an error if the file cannot be read or
// parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative
// to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

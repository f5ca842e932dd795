package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/webrag.db"
	}
	if cfg.Providers.Groq.BaseURL == "" {
		cfg.Providers.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Providers.Groq.APIKeyEnv == "" {
		cfg.Providers.Groq.APIKeyEnv = "GROQ_API_KEY"
	}
	if cfg.Providers.Groq.SummaryModel == "" {
		cfg.Providers.Groq.SummaryModel = "llama-3.1-8b-instant"
	}
	if cfg.Providers.Groq.TimeoutSeconds == 0 {
		cfg.Providers.Groq.TimeoutSeconds = 60
	}
	if cfg.Providers.Embedding.BaseURL == "" {
		cfg.Providers.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Providers.Embedding.APIKeyEnv == "" {
		cfg.Providers.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Providers.Embedding.Model == "" {
		cfg.Providers.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Providers.Embedding.Dimensions == 0 {
		cfg.Providers.Embedding.Dimensions = 384
	}
	if cfg.Providers.Embedding.TimeoutSeconds == 0 {
		cfg.Providers.Embedding.TimeoutSeconds = 30
	}
	if cfg.Pipeline.ChunkSize == 0 {
		cfg.Pipeline.ChunkSize = 5000
	}
	if cfg.Pipeline.TopK == 0 {
		cfg.Pipeline.TopK = 3
	}
	if cfg.Pipeline.RequestsPerMinute == 0 {
		cfg.Pipeline.RequestsPerMinute = 60
	}
	if cfg.Pipeline.FetchTimeoutSeconds == 0 {
		cfg.Pipeline.FetchTimeoutSeconds = 80
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "llama-3.3-70b-versatile"
	}
	if cfg.Chat.Temperature == 0 {
		cfg.Chat.Temperature = 0.7
	}
	if cfg.Chat.MaxTokens == 0 {
		cfg.Chat.MaxTokens = 5000
	}
}

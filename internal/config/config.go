package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FetcherConfig configures page retrieval.
type FetcherConfig struct {
	TimeoutSecs  int    `yaml:"timeout_secs"`
	MaxAttempts  int    `yaml:"max_attempts"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	UserAgent    string `yaml:"user_agent,omitempty"`
}

// LoaderConfig selects how fetched text is handed to the chunker:
// "direct" or "file" (round-trip through a temporary text file).
type LoaderConfig struct {
	Type string `yaml:"type"`
	Dir  string `yaml:"dir,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type     string `yaml:"type"`
	MaxChars int    `yaml:"max_chars"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxRetries        int     `yaml:"max_retries"`
}

// RedisCacheConfig holds connection details for the Redis embedding cache.
type RedisCacheConfig struct {
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env,omitempty"`
	DB          int    `yaml:"db"`
	TTLSecs     int    `yaml:"ttl_secs"`
	KeyPrefix   string `yaml:"key_prefix,omitempty"`
}

// CacheConfig selects the embedding cache: "none", "memory" or "redis".
type CacheConfig struct {
	Type       string            `yaml:"type"`
	MaxEntries int               `yaml:"max_entries,omitempty"`
	Redis      *RedisCacheConfig `yaml:"redis,omitempty"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string                `yaml:"type"`
	Concurrency int                   `yaml:"concurrency"`
	OpenAI      *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Cache       CacheConfig           `yaml:"cache"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SQLiteConfig locates the SQLite index database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
}

// RetrievalConfig configures query-time retrieval.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// LLMConfig configures an HTTP language model backend.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env,omitempty"`
	Model       string  `yaml:"model,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	Temperature float64 `yaml:"temperature"`
}

// GeneratorConfig selects the language model: "extractive", "openai",
// "ollama" or "anthropic".
type GeneratorConfig struct {
	Type                   string     `yaml:"type"`
	ExtractiveMaxSentences int        `yaml:"extractive_max_sentences,omitempty"`
	OpenAI                 *LLMConfig `yaml:"openai,omitempty"`
	Ollama                 *LLMConfig `yaml:"ollama,omitempty"`
	Anthropic              *LLMConfig `yaml:"anthropic,omitempty"`
}

// AnswerConfig configures prompt composition.
type AnswerConfig struct {
	TimeoutSecs    int    `yaml:"timeout_secs"`
	PromptTemplate string `yaml:"prompt_template,omitempty"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	RequestTimeout  int    `yaml:"request_timeout_secs"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LogLevel    string            `yaml:"log_level"`
	Fetcher     FetcherConfig     `yaml:"fetcher"`
	Loader      LoaderConfig      `yaml:"loader"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Answer      AnswerConfig      `yaml:"answer"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Server      ServerConfig      `yaml:"server"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/webqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/webqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects unknown component types.
func (c *AppConfig) Validate() error {
	checks := []struct {
		field string
		value string
		allow []string
	}{
		{"loader.type", c.Loader.Type, []string{"direct", "file"}},
		{"chunker.type", c.Chunker.Type, []string{"semantic"}},
		{"embedder.type", c.Embedder.Type, []string{"tfidf", "openai"}},
		{"embedder.cache.type", c.Embedder.Cache.Type, []string{"none", "memory", "redis"}},
		{"vector_store.type", c.VectorStore.Type, []string{"memory", "sqlite", "qdrant"}},
		{"generator.type", c.Generator.Type, []string{"extractive", "openai", "ollama", "anthropic"}},
		{"summarizer.type", c.Summarizer.Type, []string{"frequency", "none"}},
	}
	for _, ch := range checks {
		ok := false
		for _, a := range ch.allow {
			if ch.value == a {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("unsupported %s %q", ch.field, ch.value)
		}
	}
	if c.Chunker.MaxChars <= 0 {
		return fmt.Errorf("chunker.max_chars must be positive, got %d", c.Chunker.MaxChars)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	return nil
}

func (f FetcherConfig) Timeout() time.Duration { return time.Duration(f.TimeoutSecs) * time.Second }

func (a AnswerConfig) Timeout() time.Duration { return time.Duration(a.TimeoutSecs) * time.Second }

func (s ServerConfig) Timeouts() (request, shutdown time.Duration) {
	return time.Duration(s.RequestTimeout) * time.Second, time.Duration(s.ShutdownTimeout) * time.Second
}

// DataDir is where persistent state lives unless configured otherwise.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "webqa"), nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "webqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Fetcher.TimeoutSecs == 0 {
		cfg.Fetcher.TimeoutSecs = 15
	}
	if cfg.Fetcher.MaxAttempts == 0 {
		cfg.Fetcher.MaxAttempts = 3
	}
	if cfg.Fetcher.MaxBodyBytes == 0 {
		cfg.Fetcher.MaxBodyBytes = 5 << 20
	}
	if cfg.Loader.Type == "" {
		cfg.Loader.Type = "direct"
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "semantic"
	}
	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = 500
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Concurrency == 0 {
		cfg.Embedder.Concurrency = 4
	}
	if cfg.Embedder.Cache.Type == "" {
		cfg.Embedder.Cache.Type = "none"
	}
	if cfg.Embedder.Cache.Type == "memory" && cfg.Embedder.Cache.MaxEntries == 0 {
		cfg.Embedder.Cache.MaxEntries = 10000
	}
	if cfg.Embedder.Cache.Type == "redis" {
		if cfg.Embedder.Cache.Redis == nil {
			cfg.Embedder.Cache.Redis = &RedisCacheConfig{}
		}
		if cfg.Embedder.Cache.Redis.Addr == "" {
			cfg.Embedder.Cache.Redis.Addr = "localhost:6379"
		}
		if cfg.Embedder.Cache.Redis.TTLSecs == 0 {
			cfg.Embedder.Cache.Redis.TTLSecs = 7 * 24 * 3600
		}
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "webqa"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 10
		}
	}
	if cfg.VectorStore.Type == "sqlite" {
		if cfg.VectorStore.SQLite == nil {
			cfg.VectorStore.SQLite = &SQLiteConfig{}
		}
		if cfg.VectorStore.SQLite.Path == "" {
			if dir, err := DataDir(); err == nil {
				cfg.VectorStore.SQLite.Path = filepath.Join(dir, "index.db")
			} else {
				cfg.VectorStore.SQLite.Path = "webqa.db"
			}
		}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "extractive"
	}
	if cfg.Generator.ExtractiveMaxSentences == 0 {
		cfg.Generator.ExtractiveMaxSentences = 3
	}
	if cfg.Answer.TimeoutSecs == 0 {
		cfg.Answer.TimeoutSecs = 60
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10
	}
}

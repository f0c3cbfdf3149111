// Package config loads the YAML application configuration.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
	MaxRetries  int    `yaml:"max_retries"`
}

// GeminiConfig is shared by the Gemini embedder and generator.
type GeminiConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Gemini    *GeminiConfig         `yaml:"gemini,omitempty"`
}

// OpenAIGeneratorConfig configures chat completions against an OpenAI-compatible API.
type OpenAIGeneratorConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	ChatModel string `yaml:"chat_model"`
	JSONModel string `yaml:"json_model"`
	Referer   string `yaml:"referer"`
	Title     string `yaml:"title"`
}

// GeneratorConfig selects the generation backend and its resilience settings.
type GeneratorConfig struct {
	Type              string                 `yaml:"type"`
	ChatTimeoutSecs   int                    `yaml:"chat_timeout_secs"`
	JSONTimeoutSecs   int                    `yaml:"json_timeout_secs"`
	RequestsPerMinute int                    `yaml:"requests_per_minute"`
	BreakerOpenSecs   int                    `yaml:"breaker_open_secs"`
	OpenAI            *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
	Gemini            *GeminiConfig          `yaml:"gemini,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Size int `yaml:"size"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
}

// StorageConfig selects where documents, quizzes and sqlite vectors live.
type StorageConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

type RetrievalConfig struct {
	K               int `yaml:"k"`
	MaxContextRunes int `yaml:"max_context_runes"`
}

type QuizConfig struct {
	Questions     int `yaml:"questions"`
	Attempts      int `yaml:"attempts"`
	MaxInputRunes int `yaml:"max_input_runes"`
}

// CacheConfig enables the Redis query-embedding cache when RedisURL is set.
type CacheConfig struct {
	RedisURL string `yaml:"redis_url"`
	TTLSecs  int    `yaml:"ttl_secs"`
}

// SummarizerConfig configures the ingest summary.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

type LogConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Storage     StorageConfig     `yaml:"storage"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Quiz        QuizConfig        `yaml:"quiz"`
	Cache       CacheConfig       `yaml:"cache"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Log         LogConfig         `yaml:"log"`
}

// ChatTimeout returns the per-call chat timeout.
func (c *AppConfig) ChatTimeout() time.Duration {
	return time.Duration(c.Generator.ChatTimeoutSecs) * time.Second
}

// JSONTimeout returns the per-call JSON completion timeout.
func (c *AppConfig) JSONTimeout() time.Duration {
	return time.Duration(c.Generator.JSONTimeoutSecs) * time.Second
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/studyrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/studyrag/config.yaml and returns them.
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
	applyEnv(cfg)
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

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "studyrag", "config.yaml"), nil
}

func defaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".studyrag", "studyrag.db")
	}
	return filepath.Join(home, ".studyrag", "studyrag.db")
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "hashing"},
		Generator:   GeneratorConfig{Type: "openai"},
		VectorStore: VectorStoreConfig{Type: "sqlite"},
		Storage:     StorageConfig{Type: "sqlite"},
		Log:         LogConfig{Mode: "development", Level: "info"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 20
		}
		if o.BatchSize == 0 {
			o.BatchSize = 32
		}
	}
	if cfg.Embedder.Type == "gemini" {
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiConfig{}
		}
		if cfg.Embedder.Gemini.APIKeyEnv == "" {
			cfg.Embedder.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
	}

	g := &cfg.Generator
	if g.Type == "" {
		g.Type = "openai"
	}
	if g.ChatTimeoutSecs == 0 {
		g.ChatTimeoutSecs = 25
	}
	if g.JSONTimeoutSecs == 0 {
		g.JSONTimeoutSecs = 30
	}
	if g.Type == "openai" {
		if g.OpenAI == nil {
			g.OpenAI = &OpenAIGeneratorConfig{}
		}
		if g.OpenAI.BaseURL == "" {
			g.OpenAI.BaseURL = "https://openrouter.ai/api/v1"
		}
		if g.OpenAI.APIKeyEnv == "" {
			g.OpenAI.APIKeyEnv = "OPENROUTER_API_KEY"
		}
	}
	if g.Type == "gemini" {
		if g.Gemini == nil {
			g.Gemini = &GeminiConfig{}
		}
		if g.Gemini.APIKeyEnv == "" {
			g.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
	}

	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 800
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "sqlite"
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant == nil {
		cfg.VectorStore.Qdrant = &QdrantConfig{}
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.Addr == "" {
			q.Addr = "localhost:6334"
		}
		if q.Collection == "" {
			q.Collection = "studyrag_chunks"
		}
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "sqlite"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultDataPath()
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 3
	}
	if cfg.Retrieval.MaxContextRunes == 0 {
		cfg.Retrieval.MaxContextRunes = 6000
	}
	if cfg.Quiz.Questions == 0 {
		cfg.Quiz.Questions = 5
	}
	if cfg.Quiz.Attempts == 0 {
		cfg.Quiz.Attempts = 3
	}
	if cfg.Quiz.MaxInputRunes == 0 {
		cfg.Quiz.MaxInputRunes = 6000
	}
	if cfg.Cache.TTLSecs == 0 {
		cfg.Cache.TTLSecs = 86400
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Log.Mode == "" {
		cfg.Log.Mode = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// applyEnv lets deployment environment variables win over the file.
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{Collection: "studyrag_chunks"}
		}
		cfg.VectorStore.Qdrant.Addr = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" && cfg.VectorStore.Qdrant != nil {
		cfg.VectorStore.Qdrant.APIKey = v
	}
	if v := os.Getenv("STUDYRAG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

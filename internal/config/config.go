// Package config provides configuration loading for Synapse.
//
// Configuration precedence (lowest to highest):
//  1. Hardcoded defaults (NewConfig)
//  2. Config file (synapse.yaml in the working directory, or --config)
//  3. Environment variables (SYNAPSE_*), with .env loaded via godotenv
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete Synapse configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Reranker   RerankerConfig   `yaml:"reranker" json:"reranker"`
	Sessions   SessionsConfig   `yaml:"sessions" json:"sessions"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// StorageConfig configures the on-disk data layout.
type StorageConfig struct {
	// DataDir is the root directory for the metadata database and the
	// per-session vector graphs. Default: ~/.synapse
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// KeywordBackend selects the keyword index backend.
	// Options: "sqlite" (default, FTS5, concurrent) or "bleve".
	KeywordBackend string `yaml:"keyword_backend" json:"keyword_backend"`
}

// SearchConfig configures the retrieval pipeline.
type SearchConfig struct {
	// VectorWeight is the RRF weight for vector search results.
	// Non-negative relative multiplier; need not sum to 1 with KeywordWeight.
	VectorWeight float64 `yaml:"vector_weight" json:"vector_weight"`

	// KeywordWeight is the RRF weight for keyword search results.
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`

	// RRFConstant is the RRF fusion smoothing parameter (k).
	// Default: 60, the standard constant used by Azure AI Search and OpenSearch.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// RetrievalTopK is the fused candidate count handed to the reranker.
	RetrievalTopK int `yaml:"retrieval_top_k" json:"retrieval_top_k"`

	// RerankTopK is the candidate count kept after reranking.
	RerankTopK int `yaml:"rerank_top_k" json:"rerank_top_k"`

	// HistoryTurns is the number of chat messages fed to the contextualizer.
	HistoryTurns int `yaml:"history_turns" json:"history_turns"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama", "openai", or "static".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// BaseURL and APIKey configure the OpenAI-compatible provider.
	BaseURL string `yaml:"base_url" json:"base_url"`
	APIKey  string `yaml:"api_key" json:"api_key"`

	// CacheSize is the query-embedding LRU size (0 disables caching).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// LLMConfig configures the generation capability (contextualizer + answers).
type LLMConfig struct {
	// BaseURL is an OpenAI-compatible endpoint. Groq's is
	// https://api.groq.com/openai/v1 (the default).
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	APIKey      string        `yaml:"api_key" json:"api_key"`
	Model       string        `yaml:"model" json:"model"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`

	// Language is the default answer language: "id" or "en".
	Language string `yaml:"language" json:"language"`
}

// RerankerConfig configures the reranking capability.
type RerankerConfig struct {
	// Variant is "cross-encoder", "hosted", or "none".
	Variant string `yaml:"variant" json:"variant"`

	// Endpoint is the rerank server URL (cross-encoder: local server,
	// hosted: remote API).
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	APIKey   string `yaml:"api_key" json:"api_key"`
	Model    string `yaml:"model" json:"model"`

	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// SessionsConfig configures session lifecycle.
type SessionsConfig struct {
	// TTL is the fixed expiry horizon applied at creation. Default: 24h.
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// SweepInterval is how often the background sweeper runs. Default: 1h.
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// IngestConfig configures document chunking.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// NewConfig returns the hardcoded defaults.
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:     ":8080",
			LogLevel: "info",
		},
		Storage: StorageConfig{
			DataDir:        defaultDataDir(),
			KeywordBackend: "sqlite",
		},
		Search: SearchConfig{
			VectorWeight:  0.5,
			KeywordWeight: 0.5,
			RRFConstant:   60,
			RetrievalTopK: 10,
			RerankTopK:    3,
			HistoryTurns:  5,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "paraphrase-multilingual",
			Dimensions: 0, // auto-detect
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.3,
			MaxTokens:   2048,
			Timeout:     60 * time.Second,
			Language:    "id",
		},
		Reranker: RerankerConfig{
			Variant: "none",
			Timeout: 30 * time.Second,
		},
		Sessions: SessionsConfig{
			TTL:           24 * time.Hour,
			SweepInterval: time.Hour,
		},
		Ingest: IngestConfig{
			ChunkSize:    500,
			ChunkOverlap: 100,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".synapse"
	}
	return home + "/.synapse"
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides. path may be empty, in which case "synapse.yaml"
// is used if present.
func Load(path string) (*Config, error) {
	// .env is optional; ignore absence.
	_ = godotenv.Load()

	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat("synapse.yaml"); err == nil {
			path = "synapse.yaml"
		}
	}
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SYNAPSE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SYNAPSE_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("SYNAPSE_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("SYNAPSE_KEYWORD_BACKEND"); v != "" {
		c.Storage.KeywordBackend = v
	}

	// Fusion tuning: explicit zero values are meaningful, so "" is the
	// only sentinel for "not set".
	if v := os.Getenv("SYNAPSE_VECTOR_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 {
			c.Search.VectorWeight = w
		}
	}
	if v := os.Getenv("SYNAPSE_KEYWORD_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 {
			c.Search.KeywordWeight = w
		}
	}
	if v := os.Getenv("SYNAPSE_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}

	if v := os.Getenv("SYNAPSE_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("SYNAPSE_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("SYNAPSE_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Embeddings.APIKey == "" {
		c.Embeddings.APIKey = v
	}

	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("SYNAPSE_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("SYNAPSE_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("SYNAPSE_LANGUAGE"); v != "" {
		c.LLM.Language = v
	}

	if v := os.Getenv("SYNAPSE_RERANKER"); v != "" {
		c.Reranker.Variant = v
	}
	if v := os.Getenv("SYNAPSE_RERANKER_ENDPOINT"); v != "" {
		c.Reranker.Endpoint = v
	}
	if v := os.Getenv("SYNAPSE_RERANKER_API_KEY"); v != "" {
		c.Reranker.APIKey = v
	}

	if v := os.Getenv("SYNAPSE_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Sessions.TTL = d
		}
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	if c.Search.VectorWeight < 0 {
		return fmt.Errorf("vector_weight must be non-negative, got %f", c.Search.VectorWeight)
	}
	if c.Search.KeywordWeight < 0 {
		return fmt.Errorf("keyword_weight must be non-negative, got %f", c.Search.KeywordWeight)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.RetrievalTopK < 1 {
		return fmt.Errorf("retrieval_top_k must be at least 1, got %d", c.Search.RetrievalTopK)
	}
	if c.Search.RerankTopK < 1 {
		return fmt.Errorf("rerank_top_k must be at least 1, got %d", c.Search.RerankTopK)
	}

	switch strings.ToLower(c.Storage.KeywordBackend) {
	case "sqlite", "bleve":
	default:
		return fmt.Errorf("storage.keyword_backend must be 'sqlite' or 'bleve', got %s", c.Storage.KeywordBackend)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "ollama", "openai", "static":
	default:
		return fmt.Errorf("embeddings.provider must be 'ollama', 'openai', or 'static', got %s", c.Embeddings.Provider)
	}

	switch strings.ToLower(c.Reranker.Variant) {
	case "cross-encoder", "hosted", "none":
	default:
		return fmt.Errorf("reranker.variant must be 'cross-encoder', 'hosted', or 'none', got %s", c.Reranker.Variant)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if c.Ingest.ChunkSize < 100 || c.Ingest.ChunkSize > 4000 {
		return fmt.Errorf("ingest.chunk_size must be between 100 and 4000, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be smaller than chunk_size, got %d", c.Ingest.ChunkOverlap)
	}

	if c.Sessions.TTL <= 0 {
		return fmt.Errorf("sessions.ttl must be positive, got %s", c.Sessions.TTL)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

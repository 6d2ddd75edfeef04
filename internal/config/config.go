package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is env-first: defaults, then an optional YAML file named by
// SOPHIA_CONFIG, then environment variable overrides.
type Config struct {
	Port     int    `yaml:"port"`
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`

	// Vector index
	QdrantURL    string `yaml:"qdrant_url"`
	Collection   string `yaml:"collection"`
	EmbeddingDim int    `yaml:"embedding_dim"`

	// Embedding
	OllamaBaseURL    string `yaml:"ollama_base_url"`
	EmbeddingModel   string `yaml:"embedding_model"`
	EmbedCacheTTLMin int    `yaml:"embed_cache_ttl_minutes"`

	// Triple store
	HalfLifeDays      float64 `yaml:"half_life_days"`
	DefaultConfidence float64 `yaml:"default_confidence"`

	// Episodes
	EpisodeTurnLimit int    `yaml:"episode_turn_limit"`
	SummaryModel     string `yaml:"summary_model"`
	SummaryEnabled   bool   `yaml:"summary_enabled"`

	// Consolidation
	ExtractionModel     string `yaml:"extraction_model"`
	ExtractionEnabled   bool   `yaml:"extraction_enabled"`
	ConsolidateDebounce int    `yaml:"consolidate_debounce_seconds"`
	ConsolidateWorkers  int    `yaml:"consolidate_workers"`
	SweepIntervalMin    int    `yaml:"sweep_interval_minutes"`

	// MCP adapter
	MemoryServerURL string `yaml:"memory_server_url"`
}

func defaults() *Config {
	return &Config{
		Port:                8741,
		DBPath:              "/data/sophia.db",
		LogLevel:            "info",
		QdrantURL:           "http://localhost:6333",
		Collection:          "sophia_triples",
		EmbeddingDim:        768,
		OllamaBaseURL:       "http://localhost:11434",
		EmbeddingModel:      "nomic-embed-text",
		EmbedCacheTTLMin:    60,
		HalfLifeDays:        90,
		DefaultConfidence:   0.8,
		EpisodeTurnLimit:    50,
		SummaryModel:        "qwen2.5:1.5b",
		SummaryEnabled:      true,
		ExtractionModel:     "qwen2.5:1.5b",
		ExtractionEnabled:   true,
		ConsolidateDebounce: 30,
		ConsolidateWorkers:  2,
		SweepIntervalMin:    5,
		MemoryServerURL:     "http://localhost:8741",
	}
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("SOPHIA_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = envInt("PORT", c.Port)
	c.DBPath = envStr("SOPHIA_DB_PATH", c.DBPath)
	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
	c.QdrantURL = envStr("QDRANT_URL", c.QdrantURL)
	c.Collection = envStr("QDRANT_COLLECTION", c.Collection)
	c.EmbeddingDim = envInt("EMBEDDING_DIM", c.EmbeddingDim)
	c.OllamaBaseURL = envStr("OLLAMA_BASE_URL", c.OllamaBaseURL)
	c.EmbeddingModel = envStr("EMBEDDING_MODEL", c.EmbeddingModel)
	c.EmbedCacheTTLMin = envInt("EMBED_CACHE_TTL_MINUTES", c.EmbedCacheTTLMin)
	c.HalfLifeDays = envFloat("HALF_LIFE_DAYS", c.HalfLifeDays)
	c.DefaultConfidence = envFloat("DEFAULT_CONFIDENCE", c.DefaultConfidence)
	c.EpisodeTurnLimit = envInt("EPISODE_TURN_LIMIT", c.EpisodeTurnLimit)
	c.SummaryModel = envStr("SUMMARY_MODEL", c.SummaryModel)
	c.SummaryEnabled = envBool("SUMMARY_ENABLED", c.SummaryEnabled)
	c.ExtractionModel = envStr("EXTRACTION_MODEL", c.ExtractionModel)
	c.ExtractionEnabled = envBool("EXTRACTION_ENABLED", c.ExtractionEnabled)
	c.ConsolidateDebounce = envInt("CONSOLIDATE_DEBOUNCE_SECONDS", c.ConsolidateDebounce)
	c.ConsolidateWorkers = envInt("CONSOLIDATE_WORKERS", c.ConsolidateWorkers)
	c.SweepIntervalMin = envInt("SWEEP_INTERVAL_MINUTES", c.SweepIntervalMin)
	c.MemoryServerURL = envStr("MEMORY_SERVER_URL", c.MemoryServerURL)
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("SOPHIA_DB_PATH must not be empty")
	}
	if c.QdrantURL == "" {
		return fmt.Errorf("QDRANT_URL must not be empty")
	}
	if c.OllamaBaseURL == "" {
		return fmt.Errorf("OLLAMA_BASE_URL must not be empty")
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.HalfLifeDays <= 0 {
		return fmt.Errorf("HALF_LIFE_DAYS must be positive, got %f", c.HalfLifeDays)
	}
	if c.DefaultConfidence <= 0 || c.DefaultConfidence > 1 {
		return fmt.Errorf("DEFAULT_CONFIDENCE must be in (0,1], got %f", c.DefaultConfidence)
	}
	if c.EpisodeTurnLimit < 2 {
		return fmt.Errorf("EPISODE_TURN_LIMIT must be at least 2, got %d", c.EpisodeTurnLimit)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

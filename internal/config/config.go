// Package config loads the application configuration from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CorpusConfig locates the chat export.
type CorpusConfig struct {
	Source string `yaml:"source"` // file path or http(s) URL
	Watch  bool   `yaml:"watch"`  // re-ingest on change while serving
}

// EmbedderConfig selects the text embedder. Type is "hash" or "ollama".
type EmbedderConfig struct {
	Type        string `yaml:"type"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"` // hash embedder only
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GeneratorConfig selects the response generator. Type is "stub" or "ollama".
type GeneratorConfig struct {
	Type        string `yaml:"type"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IndexConfig selects the vector index. Type is "memory", "sqlite" or "qdrant".
type IndexConfig struct {
	Type   string        `yaml:"type"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// SQLiteConfig holds the database file and the driver name ("sqlite3" for cgo, "sqlite" for pure Go).
type SQLiteConfig struct {
	Path   string `yaml:"path"`
	Driver string `yaml:"driver"`
}

// QdrantConfig contains gRPC connection details for Qdrant.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	BatchSize      int    `yaml:"batch_size"`
	MaxRetries     int    `yaml:"max_retries"`
	CheckpointPath string `yaml:"checkpoint_path"` // empty disables resume
}

// QueryConfig holds retrieval defaults.
type QueryConfig struct {
	K     int `yaml:"k"`
	EvalK int `yaml:"eval_k"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Generator GeneratorConfig `yaml:"generator"`
	Index     IndexConfig     `yaml:"index"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Query     QueryConfig     `yaml:"query"`
	Server    ServerConfig    `yaml:"server"`
}

// Load reads a config from path, then applies .env and environment overrides.
// A missing file yields defaults.
func Load(path string) (*AppConfig, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	applyEnv(cfg)
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
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

// Validate rejects unknown adapter names.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "hash", "ollama":
	default:
		return fmt.Errorf("unknown embedder: %s", c.Embedder.Type)
	}
	switch c.Generator.Type {
	case "stub", "ollama":
	default:
		return fmt.Errorf("unknown generator: %s", c.Generator.Type)
	}
	switch c.Index.Type {
	case "memory", "sqlite", "qdrant":
	default:
		return fmt.Errorf("unknown index: %s", c.Index.Type)
	}
	return nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Embedder:  EmbedderConfig{Type: "hash"},
		Generator: GeneratorConfig{Type: "stub"},
		Index:     IndexConfig{Type: "memory"},
		Ingest:    IngestConfig{BatchSize: 100},
		Query:     QueryConfig{K: 3, EvalK: 5},
		Server:    ServerConfig{Addr: ":8080"},
	}
}

// applyEnv lets the environment override the file.
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		host := normalizeHost(v)
		cfg.Embedder.BaseURL = host
		cfg.Generator.BaseURL = host
	}
	if v := os.Getenv("CHATRAG_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("CHATRAG_INDEX"); v != "" {
		cfg.Index.Type = v
	}
	if v := os.Getenv("CHATRAG_QDRANT_HOST"); v != "" {
		if cfg.Index.Qdrant == nil {
			cfg.Index.Qdrant = &QdrantConfig{}
		}
		host, port, found := strings.Cut(v, ":")
		cfg.Index.Qdrant.Host = host
		if n, err := strconv.Atoi(port); found && err == nil {
			cfg.Index.Qdrant.Port = n
		}
	}
}

// normalizeHost accepts OLLAMA_HOST in the forms the ollama CLI does ("host:port" or a full URL).
func normalizeHost(v string) string {
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return strings.TrimRight(v, "/")
	}
	return "http://" + strings.TrimRight(v, "/")
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Ingest.BatchSize <= 0 {
		cfg.Ingest.BatchSize = 100
	}
	if cfg.Query.K <= 0 {
		cfg.Query.K = 3
	}
	if cfg.Query.EvalK <= 0 {
		cfg.Query.EvalK = 5
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hash"
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "stub"
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Index.Type == "sqlite" {
		if cfg.Index.SQLite == nil {
			cfg.Index.SQLite = &SQLiteConfig{}
		}
		if cfg.Index.SQLite.Path == "" {
			cfg.Index.SQLite.Path = "chatrag.db"
		}
		if cfg.Index.SQLite.Driver == "" {
			cfg.Index.SQLite.Driver = "sqlite3"
		}
	}
	if cfg.Index.Type == "qdrant" {
		if cfg.Index.Qdrant == nil {
			cfg.Index.Qdrant = &QdrantConfig{}
		}
		if cfg.Index.Qdrant.Host == "" {
			cfg.Index.Qdrant.Host = "localhost"
		}
		if cfg.Index.Qdrant.Port == 0 {
			cfg.Index.Qdrant.Port = 6334
		}
		if cfg.Index.Qdrant.Collection == "" {
			cfg.Index.Qdrant.Collection = "chat_messages"
		}
	}
}

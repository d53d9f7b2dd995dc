package versobot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads and parses a config file from the given path, layered
// over DefaultConfig. Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig validates a Config for correctness.
func ValidateConfig(cfg Config) error {
	if cfg.Cache.MaxSize < 1 {
		return fmt.Errorf("cache.max_size must be at least 1, got %d", cfg.Cache.MaxSize)
	}
	if cfg.Cache.PersistEvery < 1 {
		return fmt.Errorf("cache.persist_every must be at least 1, got %d", cfg.Cache.PersistEvery)
	}
	if cfg.Sync.BatchSize < 1 {
		return fmt.Errorf("sync.batch_size must be at least 1, got %d", cfg.Sync.BatchSize)
	}
	if cfg.Embedding.Dim < 1 {
		return fmt.Errorf("embedding.dim must be at least 1, got %d", cfg.Embedding.Dim)
	}
	if cfg.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1, got %d", cfg.TopK)
	}

	// Default to no index when the backend is omitted.
	backend := cfg.Index.Backend
	if backend == "" {
		backend = BackendNone
	}
	switch backend {
	case BackendNone, BackendSQLite:
	case BackendPinecone:
		if cfg.Index.Host == "" {
			return fmt.Errorf("index.host is required for the pinecone backend")
		}
	case BackendPostgres:
		if cfg.Index.DSN == "" {
			return fmt.Errorf("index.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown index backend: %q", cfg.Index.Backend)
	}

	return nil
}

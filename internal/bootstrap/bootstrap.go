// Package bootstrap wires environment-configured backends into an agent.
// Shared by the server and the CLI so both resolve providers, embedders,
// and the index the same way.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	versobot "github.com/verso-labs/versobot"
	"github.com/verso-labs/versobot/index"
	"github.com/verso-labs/versobot/internal/logging"
	"github.com/verso-labs/versobot/providers"
)

// Registry auto-registers generation and embedding backends from
// environment variables. Missing credentials simply leave a backend
// unregistered.
func Registry() (*providers.Registry, error) {
	registry := providers.NewRegistry()

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		p, err := providers.NewGemini(key, os.Getenv("GEMINI_BASE_URL"))
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		registry.Register(p)
	} else if id := os.Getenv("GEMINI_CLIENT_ID"); id != "" {
		p, err := providers.NewGeminiOAuth(id,
			os.Getenv("GEMINI_CLIENT_SECRET"),
			os.Getenv("GEMINI_TOKEN_URL"),
			os.Getenv("GEMINI_BASE_URL"))
		if err != nil {
			return nil, fmt.Errorf("gemini oauth provider: %w", err)
		}
		registry.Register(p)
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		p, err := providers.NewOpenAI(key, os.Getenv("OPENAI_BASE_URL"))
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		if model := os.Getenv("OPENAI_EMBEDDING_MODEL"); model != "" {
			p = p.WithEmbeddingModel(model)
		}
		registry.Register(p)
		registry.RegisterEmbedder(p)
	}

	if region := os.Getenv("BEDROCK_REGION"); region != "" {
		var p *providers.BedrockProvider
		var err error
		if accessKey := os.Getenv("BEDROCK_ACCESS_KEY_ID"); accessKey != "" {
			p, err = providers.NewBedrockStatic(context.Background(), region,
				accessKey, os.Getenv("BEDROCK_SECRET_ACCESS_KEY"))
		} else {
			p, err = providers.NewBedrock(context.Background(), region)
		}
		if err != nil {
			return nil, fmt.Errorf("bedrock provider: %w", err)
		}
		registry.Register(p)
		registry.RegisterEmbedder(p)
	}

	if key := os.Getenv("HF_API_KEY"); key != "" {
		e, err := providers.NewHuggingFace(key, os.Getenv("HF_EMBEDDING_MODEL"), os.Getenv("HF_BASE_URL"))
		if err != nil {
			return nil, fmt.Errorf("huggingface embedder: %w", err)
		}
		registry.RegisterEmbedder(e)
	}

	logging.Logger.Info("backends registered",
		"providers", registry.List(), "embedders", registry.ListEmbedders())
	return registry, nil
}

// Index opens the vector index backend named by cfg, or nil for none.
func Index(cfg versobot.Config) (index.Index, error) {
	switch cfg.Index.Backend {
	case versobot.BackendPinecone:
		return index.NewPinecone(os.Getenv("PINECONE_API_KEY"), cfg.Index.Host)
	case versobot.BackendSQLite:
		return index.NewSQLite(cfg.Index.DSN)
	case versobot.BackendPostgres:
		return index.NewPostgres(cfg.Index.DSN, cfg.Embedding.Dim)
	default:
		return nil, nil
	}
}

// Options resolves the configured backends from the registry into agent
// options. Unconfigured backends are logged and skipped; the agent then
// degrades per its usual rules.
func Options(cfg versobot.Config, registry *providers.Registry) ([]versobot.Option, error) {
	var opts []versobot.Option

	if p, ok := registry.Get(cfg.Generation.Provider); ok {
		opts = append(opts, versobot.WithProvider(p))
	} else {
		logging.Logger.Warn("generation provider not configured, serving fallback replies",
			"provider", cfg.Generation.Provider)
	}
	if e, ok := registry.GetEmbedder(cfg.Embedding.Provider); ok {
		opts = append(opts, versobot.WithEmbedder(e))
	} else {
		logging.Logger.Warn("embedder not configured, retrieval degrades to fallback vectors",
			"embedder", cfg.Embedding.Provider)
	}

	idx, err := Index(cfg)
	if err != nil {
		return nil, err
	}
	if idx != nil {
		opts = append(opts, versobot.WithIndex(idx))
	}
	return opts, nil
}

// Agent builds a fully wired agent from cfg and the environment.
func Agent(cfg versobot.Config) (*versobot.Agent, error) {
	registry, err := Registry()
	if err != nil {
		return nil, err
	}
	opts, err := Options(cfg, registry)
	if err != nil {
		return nil, err
	}
	return versobot.New(cfg, opts...)
}

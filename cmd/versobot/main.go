package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	versobot "github.com/verso-labs/versobot"
	"github.com/verso-labs/versobot/internal/bootstrap"
	"github.com/verso-labs/versobot/internal/cache"
	"github.com/verso-labs/versobot/internal/logging"
	"github.com/verso-labs/versobot/internal/metrics"
	"github.com/verso-labs/versobot/internal/version"
	"github.com/verso-labs/versobot/providers"
)

func main() {
	cfg := versobot.DefaultConfig()
	if cfgPath := os.Getenv("VERSOBOT_CONFIG"); cfgPath != "" {
		loaded, err := versobot.LoadConfig(cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
		log.Printf("Config loaded: generation=%s, embedding=%s, index=%s",
			cfg.Generation.Provider, cfg.Embedding.Provider, cfg.Index.Backend)
	}

	agent, err := bootstrap.Agent(cfg)
	if err != nil {
		log.Fatalf("Failed to create agent: %v", err)
	}
	if lr := agent.CacheLoadResult(); lr.Warning != nil {
		log.Printf("Warning: cache file was unreadable, starting empty: %v", lr.Warning)
	} else if lr.Entries > 0 {
		log.Printf("Cache loaded: %d entries", lr.Entries)
	}

	addr := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(agent),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down gracefully…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		agent.FlushPending(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("versobot %s listening on %s", version.Version, addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		log.Fatalf("Server error: %v", err) //nolint:gocritic
	}
	log.Println("Server stopped.")
}

type chatRequest struct {
	UserInput string              `json:"user_input"`
	History   []providers.Message `json:"history,omitempty"`
}

type chatResponse struct {
	Text      string `json:"text"`
	Cached    bool   `json:"cached"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// statsResponse is the cache accounting plus the process-lifetime eviction
// counter read back from the metrics registry.
type statsResponse struct {
	cache.Stats
	Evictions float64 `json:"evictions"`
}

// newRouter builds the HTTP router.
func newRouter(agent *versobot.Agent) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Post("/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.UserInput == "" {
			writeError(w, http.StatusBadRequest, "user_input is required")
			return
		}

		reply := agent.Respond(r.Context(), req.UserInput, req.History)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse{
			Text:      reply.Text,
			Cached:    reply.Cached,
			ElapsedMS: reply.Elapsed.Milliseconds(),
		})
	})

	r.Get("/v1/cache/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statsResponse{
			Stats:     agent.CacheStats(),
			Evictions: metrics.CounterValue(metrics.CacheEvictions),
		})
	})

	r.Post("/v1/cache/clear", func(w http.ResponseWriter, _ *http.Request) {
		agent.ClearCache()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/v1/cache/export", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
			writeError(w, http.StatusBadRequest, "path is required")
			return
		}
		agent.ExportCacheStats(req.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/v1/sync/flush", func(w http.ResponseWriter, r *http.Request) {
		pending := agent.PendingPairs()
		agent.FlushPending(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"flushed": pending})
	})

	return r
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

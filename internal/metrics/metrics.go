// Package metrics registers the Prometheus metrics used by the agent.
// Import this package (via blank import) from the server entry point to
// register all metrics before the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Cache counters.
var (
	// CacheHits counts response-cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "versobot_cache_hits_total",
		Help: "Total response cache hits.",
	})

	// CacheMisses counts response-cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "versobot_cache_misses_total",
		Help: "Total response cache misses.",
	})

	// CacheEvictions counts entries removed by LRU eviction.
	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "versobot_cache_evictions_total",
		Help: "Total cache entries evicted under capacity pressure.",
	})
)

// Generation and sync counters.
var (
	// GenerationsTotal counts generation calls labelled by outcome
	// ("ok", "fallback", "cached").
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versobot_generations_total",
			Help: "Total generation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// PairsFlushed counts conversation pairs upserted to the knowledge index.
	PairsFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "versobot_sync_pairs_flushed_total",
		Help: "Total conversation pairs flushed to the knowledge index.",
	})

	// ChunksFailed counts upsert chunks that failed and were skipped.
	ChunksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "versobot_sync_chunks_failed_total",
		Help: "Total upsert chunks skipped after an index error.",
	})

	// TurnDuration observes end-to-end turn latency in seconds.
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "versobot_turn_duration_seconds",
		Help:    "End-to-end latency of a conversation turn.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})
)

// CounterValue reads the current value of a counter through the client data
// model. Used by the stats surfaces and tests; not on the hot path.
func CounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// Package retrieval is the boundary between the agent core and the
// knowledge index. It normalizes whatever record shape the index (or a
// caller) produces into one canonical exemplar triple, and owns query-time
// embedding: bounded retry with exponential backoff, then a deterministic
// fallback vector so a flaky embedding endpoint degrades retrieval quality
// instead of failing the turn.
package retrieval

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/verso-labs/versobot/index"
	"github.com/verso-labs/versobot/internal/logging"
	"github.com/verso-labs/versobot/providers"
)

// QueryPrefix marks query-side texts for asymmetric embedding models.
// Passage-side texts use the buffer package's passage prefix.
const QueryPrefix = "query: "

// Exemplar is the canonical retrieved record: a past conversation pair and
// its similarity score.
type Exemplar struct {
	Score    float64 `json:"score"`
	Context  string  `json:"context"`
	Response string  `json:"response"`
}

// Normalize maps heterogeneous record shapes into exemplars. It accepts
// Exemplar values, index matches (pair carried as metadata), and generic
// JSON-decoded maps keyed by score/context/response. Unrecognized items are
// dropped.
func Normalize(items []any) []Exemplar {
	out := make([]Exemplar, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case Exemplar:
			out = append(out, v)
		case *Exemplar:
			out = append(out, *v)
		case index.Match:
			out = append(out, Exemplar{
				Score:    v.Score,
				Context:  v.Metadata["context"],
				Response: v.Metadata["response"],
			})
		case map[string]any:
			e := Exemplar{}
			if s, ok := v["score"].(float64); ok {
				e.Score = s
			}
			if c, ok := v["context"].(string); ok {
				e.Context = c
			}
			if r, ok := v["response"].(string); ok {
				e.Response = r
			}
			out = append(out, e)
		}
	}
	return out
}

// fallbackExemplars keep the agent conversational when no index is
// reachable.
var fallbackExemplars = []Exemplar{
	{Score: 0.85, Context: "print ho gaya?", Response: "Haan, ho gaya. Spiral binding hi karwani hai na? ✨"},
	{Score: 0.80, Context: "paise kitne hue?", Response: "Don't change the topic haan 😏  kal ice-cream done?"},
	{Score: 0.75, Context: "mood down hai", Response: "Same scene yaar… par try karte rehna, ho jayega 🥹"},
}

// Retriever answers top-K exemplar lookups for a user turn.
type Retriever struct {
	embedder  providers.Embedder
	idx       index.Index
	dim       int
	baseDelay time.Duration
	minScore  float64 // 0 disables filtering
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithBaseDelay overrides the retry backoff base (default 350ms).
func WithBaseDelay(d time.Duration) Option {
	return func(r *Retriever) { r.baseDelay = d }
}

// WithMinScore drops matches scoring below min.
func WithMinScore(min float64) Option {
	return func(r *Retriever) { r.minScore = min }
}

// New creates a Retriever. embedder and idx may be nil; retrieval then
// degrades to fallback vectors and static exemplars respectively. dim is
// the embedding dimensionality used for fallback vectors.
func New(embedder providers.Embedder, idx index.Index, dim int, opts ...Option) *Retriever {
	r := &Retriever{
		embedder:  embedder,
		idx:       idx,
		dim:       dim,
		baseDelay: 350 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FallbackVector derives a deterministic pseudo-random vector from the
// text. Same text, same vector: repeated queries during an embedding
// outage at least retrieve consistently.
func FallbackVector(text string, dim int) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float64, dim)
	for i := range vec {
		vec[i] = rng.Float64()*0.2 - 0.1
	}
	return vec
}

// EmbedQuery embeds text under the query prefix. One retry with
// exponential backoff, then the deterministic fallback vector. Never fails.
func (r *Retriever) EmbedQuery(ctx context.Context, text string) []float64 {
	payload := QueryPrefix + text
	if r.embedder != nil {
		var lastErr error
		for attempt := 0; attempt < 2; attempt++ {
			vectors, err := r.embedder.Embed(ctx, []string{payload})
			if err == nil && len(vectors) == 1 {
				return vectors[0]
			}
			lastErr = err
			delay := r.baseDelay * (1 << attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = 2
			}
		}
		logging.FromContext(ctx).Warn("embedding failed after retries, using fallback vector", "error", lastErr)
	}
	return FallbackVector(text, r.dim)
}

// TopK returns up to k exemplars for the query. Index failures and an
// absent index both degrade to the static fallback set.
func (r *Retriever) TopK(ctx context.Context, query string, k int) []Exemplar {
	if r.idx == nil {
		logging.FromContext(ctx).Warn("knowledge index not configured, returning fallback exemplars")
		return fallbackExemplars
	}

	vec := r.EmbedQuery(ctx, query)
	matches, err := r.idx.Query(ctx, vec, k)
	if err != nil {
		logging.FromContext(ctx).Warn("index query failed, returning fallback exemplars", "error", err)
		return fallbackExemplars
	}

	items := make([]any, len(matches))
	for i, m := range matches {
		items[i] = m
	}
	out := make([]Exemplar, 0, len(matches))
	for _, e := range Normalize(items) {
		if r.minScore != 0 && e.Score < r.minScore {
			continue
		}
		out = append(out, e)
	}
	logging.FromContext(ctx).Debug("retrieved exemplars", "count", len(out))
	return out
}

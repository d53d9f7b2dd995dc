// Package versobot implements a persona-styled conversational agent with a
// response cache and a buffered knowledge-base sync pipeline.
//
// The Agent type is the main entry point: create one with New, inject
// generation/embedding backends and a vector index via options, and serve
// turns with Respond. Replies are cached by (normalized input, context
// signature); new pairs accumulate in a sync buffer that flushes to the
// index in batches or when the user closes the conversation.
package versobot

import (
	"context"
	"strings"
	"time"

	"github.com/verso-labs/versobot/index"
	"github.com/verso-labs/versobot/internal/buffer"
	"github.com/verso-labs/versobot/internal/cache"
	"github.com/verso-labs/versobot/internal/logging"
	"github.com/verso-labs/versobot/internal/metrics"
	"github.com/verso-labs/versobot/internal/retrieval"
	"github.com/verso-labs/versobot/internal/signature"
	"github.com/verso-labs/versobot/persona"
	"github.com/verso-labs/versobot/providers"
)

// EmptyReply is returned when the generation backend answers with empty
// content. Distinct from the failure fallback so the two paths stay
// observable.
const EmptyReply = "Okay, bol na… 🙂"

// Reply is the result of one conversation turn.
type Reply struct {
	Text    string        `json:"text"`
	Cached  bool          `json:"cached"`
	Elapsed time.Duration `json:"-"`
}

// Agent serves conversation turns. Safe for concurrent use: the cache and
// the sync pipeline carry their own locks and the remaining fields are
// read-only after New.
type Agent struct {
	cfg       Config
	provider  providers.Provider
	embedder  providers.Embedder
	idx       index.Index
	persona   *persona.Persona
	cache     *cache.Store
	retriever *retrieval.Retriever
	pipeline  *buffer.Pipeline
}

// Option configures an Agent at construction time.
type Option func(*Agent)

// WithProvider injects the chat generation backend. Without one, every turn
// returns the fallback reply.
func WithProvider(p providers.Provider) Option {
	return func(a *Agent) { a.provider = p }
}

// WithEmbedder injects the embedding backend used for retrieval queries and
// knowledge-base passages.
func WithEmbedder(e providers.Embedder) Option {
	return func(a *Agent) { a.embedder = e }
}

// WithIndex injects the vector index. Without one, retrieval degrades to
// static exemplars and flushed pairs are discarded.
func WithIndex(idx index.Index) Option {
	return func(a *Agent) { a.idx = idx }
}

// WithPersona overrides the persona resolved from configuration.
func WithPersona(p *persona.Persona) Option {
	return func(a *Agent) { a.persona = p }
}

// New creates an Agent from cfg.
func New(cfg Config, opts ...Option) (*Agent, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	a := &Agent{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.persona == nil {
		a.persona = persona.Resolve(cfg.Persona.Path, cfg.Persona.PublicName)
	}
	a.cache = cache.New(cfg.Cache.Path, cfg.Cache.MaxSize, cfg.Cache.PersistEvery)
	a.retriever = retrieval.New(a.embedder, a.idx, cfg.Embedding.Dim)
	a.pipeline = buffer.New(a.embedder, cfg.Sync.BatchSize, cfg.Sync.ClosingPhrases)
	return a, nil
}

// anonymize strips the private alias from text bound for prompts, the
// cache, or the knowledge index.
func (a *Agent) anonymize(s string) string {
	return persona.Anonymize(s, a.cfg.Persona.PrivateName, a.persona.Name)
}

func toSignatureInputs(history []providers.Message, exemplars []retrieval.Exemplar) ([]signature.Turn, []signature.Exemplar) {
	turns := make([]signature.Turn, len(history))
	for i, m := range history {
		turns[i] = signature.Turn{Role: m.Role, Content: m.Content}
	}
	pairs := make([]signature.Exemplar, len(exemplars))
	for i, e := range exemplars {
		pairs[i] = signature.Exemplar{Context: e.Context, Response: e.Response}
	}
	return turns, pairs
}

// Respond serves one conversation turn. It never returns an error: a failed
// generation degrades to the configured fallback reply so the conversation
// keeps moving.
func (a *Agent) Respond(ctx context.Context, userInput string, history []providers.Message) Reply {
	start := time.Now()
	log := logging.FromContext(ctx)

	userInput = a.anonymize(userInput)
	exemplars := a.retriever.TopK(ctx, userInput, a.cfg.TopK)
	turns, pairs := toSignatureInputs(history, exemplars)
	sig := signature.Compute(turns, pairs)

	if text, ok := a.cache.Get(userInput, sig); ok {
		log.Info("cache hit", "elapsed", time.Since(start))
		metrics.GenerationsTotal.WithLabelValues("cached").Inc()
		// Hit path stays fast: no buffer work, no flush.
		return Reply{Text: text, Cached: true, Elapsed: time.Since(start)}
	}

	text, fallback := a.generate(ctx, userInput, history, exemplars)
	outcome := "ok"
	if fallback {
		outcome = "fallback"
	}
	metrics.GenerationsTotal.WithLabelValues(outcome).Inc()

	if !fallback || a.cfg.CacheFallbackReplies {
		a.cache.Set(userInput, sig, text)
	}

	a.pipeline.Append(buffer.Pair{Context: userInput, Response: text})
	a.maybeFlush(ctx, userInput)

	elapsed := time.Since(start)
	metrics.TurnDuration.Observe(elapsed.Seconds())
	log.Info("turn served", "cached", false, "fallback", fallback, "elapsed", elapsed)
	return Reply{Text: text, Elapsed: elapsed}
}

// generate runs the generation backend and reports whether the reply is the
// failure fallback.
func (a *Agent) generate(ctx context.Context, userInput string, history []providers.Message, exemplars []retrieval.Exemplar) (string, bool) {
	fallbackReply := a.cfg.FallbackReply
	if fallbackReply == "" {
		fallbackReply = DefaultFallbackReply
	}
	if a.provider == nil {
		logging.FromContext(ctx).Warn("no generation backend configured, using fallback reply")
		return fallbackReply, true
	}

	prompt := persona.ComposePrompt(a.persona, userInput, history, exemplars)
	req := providers.Request{
		Model:    a.cfg.Generation.Model,
		Messages: []providers.Message{{Role: providers.RoleUser, Content: prompt}},
	}
	if a.cfg.Generation.Temperature != 0 {
		t := a.cfg.Generation.Temperature
		req.Temperature = &t
	}
	if a.cfg.Generation.MaxTokens != 0 {
		n := a.cfg.Generation.MaxTokens
		req.MaxTokens = &n
	}

	resp, err := a.provider.Complete(ctx, req)
	if err != nil {
		logging.FromContext(ctx).Warn("generation failed, using fallback reply", "provider", a.provider.Name(), "error", err)
		return fallbackReply, true
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return EmptyReply, false
	}
	return a.anonymize(text), false
}

// maybeFlush runs a sync flush when the buffer hit its batch threshold or
// the user turn contains a closing phrase.
func (a *Agent) maybeFlush(ctx context.Context, userInput string) {
	if a.pipeline.ShouldFlush(userInput) {
		a.pipeline.Flush(ctx, a.idx)
	}
}

// CacheStats returns current response-cache accounting.
func (a *Agent) CacheStats() cache.Stats {
	return a.cache.Stats()
}

// CacheLoadResult reports how the response cache was initialised from disk.
func (a *Agent) CacheLoadResult() cache.LoadResult {
	return a.cache.LoadResult()
}

// ClearCache empties the response cache and deletes its durable file.
func (a *Agent) ClearCache() {
	a.cache.Clear()
}

// ExportCacheStats writes cache statistics as JSON to path.
func (a *Agent) ExportCacheStats(path string) {
	a.cache.ExportStats(path)
}

// PendingPairs returns the number of not-yet-synced conversation pairs.
func (a *Agent) PendingPairs() int {
	return a.pipeline.Len()
}

// FlushPending force-flushes the sync buffer to the knowledge index.
func (a *Agent) FlushPending(ctx context.Context) {
	a.pipeline.Flush(ctx, a.idx)
}

// Persona returns the active persona document.
func (a *Agent) Persona() *persona.Persona {
	return a.persona
}

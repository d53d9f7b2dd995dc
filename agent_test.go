package versobot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/verso-labs/versobot/index"
	"github.com/verso-labs/versobot/providers"
)

type fakeProvider struct {
	reply string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, _ providers.Request) (*providers.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &providers.Response{Content: f.reply}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Name() string { return "fake" }

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.5, 0.5}
	}
	return out, nil
}

type fakeIndex struct {
	upserts [][]index.Record
}

func (f *fakeIndex) Upsert(_ context.Context, records []index.Record) error {
	f.upserts = append(f.upserts, records)
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float64, _ int) ([]index.Match, error) {
	return nil, nil
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.gob")
	cfg.Embedding.Dim = 2
	return cfg
}

func TestRespond_MissThenHitSkipsGeneration(t *testing.T) {
	p := &fakeProvider{reply: "haan, ho gaya ✨"}
	a, err := New(testConfig(t), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}

	history := []providers.Message{{Role: "user", Content: "print karna hai"}}
	first := a.Respond(context.Background(), "print ho gaya?", history)
	if first.Cached || first.Text != "haan, ho gaya ✨" {
		t.Fatalf("unexpected first reply: %+v", first)
	}

	second := a.Respond(context.Background(), "print ho gaya?", history)
	if !second.Cached {
		t.Error("identical turn under identical context must hit the cache")
	}
	if second.Text != first.Text {
		t.Errorf("cached reply must match: %q vs %q", second.Text, first.Text)
	}
	if p.calls != 1 {
		t.Errorf("generation must run once, ran %d times", p.calls)
	}
}

func TestRespond_InputNormalizationSharesCacheEntry(t *testing.T) {
	p := &fakeProvider{reply: "done"}
	a, err := New(testConfig(t), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}

	a.Respond(context.Background(), "Print Ho Gaya?", nil)
	r := a.Respond(context.Background(), "  print ho gaya?  ", nil)
	if !r.Cached {
		t.Error("case and whitespace variants must share one cache entry")
	}
}

func TestRespond_GenerationFailureFallsBack(t *testing.T) {
	p := &fakeProvider{err: errors.New("quota exceeded")}
	a, err := New(testConfig(t), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}

	r := a.Respond(context.Background(), "hello", nil)
	if r.Text != DefaultFallbackReply {
		t.Errorf("expected fallback reply, got %q", r.Text)
	}

	r = a.Respond(context.Background(), "hello", nil)
	if r.Cached {
		t.Error("fallback replies must not be cached by default")
	}
	if p.calls != 2 {
		t.Errorf("generation must be retried on the next turn, ran %d times", p.calls)
	}
}

func TestRespond_FallbackCachingCanBeEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheFallbackReplies = true
	p := &fakeProvider{err: errors.New("down")}
	a, err := New(cfg, WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}

	a.Respond(context.Background(), "hello", nil)
	r := a.Respond(context.Background(), "hello", nil)
	if !r.Cached {
		t.Error("fallback replies should be cached when enabled")
	}
	if p.calls != 1 {
		t.Errorf("generation must not rerun on the cached turn, ran %d times", p.calls)
	}
}

func TestRespond_NoProviderFallsBack(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	r := a.Respond(context.Background(), "hello", nil)
	if r.Text != DefaultFallbackReply {
		t.Errorf("expected fallback reply, got %q", r.Text)
	}
}

func TestRespond_EmptyGenerationGetsNudgeReply(t *testing.T) {
	p := &fakeProvider{reply: "   "}
	a, err := New(testConfig(t), WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	r := a.Respond(context.Background(), "hello", nil)
	if r.Text != EmptyReply {
		t.Errorf("expected nudge reply for empty generation, got %q", r.Text)
	}
}

func TestRespond_AnonymizesPrivateName(t *testing.T) {
	cfg := testConfig(t)
	cfg.Persona.PrivateName = "Priya"
	cfg.Persona.PublicName = "verso"
	p := &fakeProvider{reply: "Priya bol rahi hai"}
	a, err := New(cfg, WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}

	r := a.Respond(context.Background(), "kya bola Priya ne?", nil)
	if r.Text != "verso bol rahi hai" {
		t.Errorf("private name must not leak into replies: %q", r.Text)
	}
}

func TestRespond_ClosingPhraseFlushesPendingPairs(t *testing.T) {
	idx := &fakeIndex{}
	a, err := New(testConfig(t),
		WithProvider(&fakeProvider{reply: "done"}),
		WithEmbedder(fakeEmbedder{}),
		WithIndex(idx),
	)
	if err != nil {
		t.Fatal(err)
	}

	a.Respond(context.Background(), "kaam chal raha hai", nil)
	if len(idx.upserts) != 0 {
		t.Fatal("no flush expected below threshold without a closing phrase")
	}

	a.Respond(context.Background(), "ok thanks, bye!", nil)
	if len(idx.upserts) != 1 {
		t.Fatalf("closing phrase must flush the buffer, got %d upserts", len(idx.upserts))
	}
	if len(idx.upserts[0]) != 2 {
		t.Errorf("both turns must sync, got %d records", len(idx.upserts[0]))
	}
	if a.PendingPairs() != 0 {
		t.Errorf("buffer must drain after flush, %d pending", a.PendingPairs())
	}
}

func TestRespond_CachedTurnNeverFlushes(t *testing.T) {
	idx := &fakeIndex{}
	a, err := New(testConfig(t),
		WithProvider(&fakeProvider{reply: "done"}),
		WithEmbedder(fakeEmbedder{}),
		WithIndex(idx),
	)
	if err != nil {
		t.Fatal(err)
	}

	a.Respond(context.Background(), "ok thanks", nil)
	if len(idx.upserts) != 1 {
		t.Fatalf("closing turn must flush on the miss path, got %d upserts", len(idx.upserts))
	}

	a.Respond(context.Background(), "kaam chal raha hai", nil)
	if a.PendingPairs() != 1 {
		t.Fatalf("expected 1 pending pair, got %d", a.PendingPairs())
	}

	r := a.Respond(context.Background(), "ok thanks", nil)
	if !r.Cached {
		t.Fatal("expected a cache hit")
	}
	if len(idx.upserts) != 1 {
		t.Errorf("cache hits must not touch the sync pipeline, got %d upserts", len(idx.upserts))
	}
	if a.PendingPairs() != 1 {
		t.Errorf("cache hits must not drain the buffer, %d pending", a.PendingPairs())
	}
}

func TestRespond_BatchThresholdFlushes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sync.BatchSize = 2
	idx := &fakeIndex{}
	a, err := New(cfg,
		WithProvider(&fakeProvider{reply: "done"}),
		WithEmbedder(fakeEmbedder{}),
		WithIndex(idx),
	)
	if err != nil {
		t.Fatal(err)
	}

	a.Respond(context.Background(), "pehla message", nil)
	a.Respond(context.Background(), "doosra message", nil)
	if len(idx.upserts) != 1 {
		t.Fatalf("batch threshold must flush, got %d upserts", len(idx.upserts))
	}
}

func TestFlushPending(t *testing.T) {
	idx := &fakeIndex{}
	a, err := New(testConfig(t),
		WithProvider(&fakeProvider{reply: "done"}),
		WithEmbedder(fakeEmbedder{}),
		WithIndex(idx),
	)
	if err != nil {
		t.Fatal(err)
	}

	a.Respond(context.Background(), "kaam chal raha hai", nil)
	if a.PendingPairs() != 1 {
		t.Fatalf("expected 1 pending pair, got %d", a.PendingPairs())
	}
	a.FlushPending(context.Background())
	if a.PendingPairs() != 0 || len(idx.upserts) != 1 {
		t.Error("manual flush must drain the buffer to the index")
	}
}

func TestCachePassthroughs(t *testing.T) {
	a, err := New(testConfig(t), WithProvider(&fakeProvider{reply: "done"}))
	if err != nil {
		t.Fatal(err)
	}

	a.Respond(context.Background(), "hello", nil)
	a.Respond(context.Background(), "hello", nil)

	stats := a.CacheStats()
	if stats.TotalEntries != 1 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	a.ClearCache()
	if got := a.CacheStats(); got.TotalEntries != 0 || got.Hits != 0 {
		t.Errorf("clear must reset the cache: %+v", got)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.TopK = 0
	if _, err := New(cfg); err == nil {
		t.Error("expected validation error for top_k = 0")
	}
}

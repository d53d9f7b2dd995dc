package buffer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/verso-labs/versobot/index"
)

type fakeEmbedder struct {
	err   error
	calls int
	texts []string
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.calls++
	f.texts = texts
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2}
	}
	return out, nil
}

type fakeIndex struct {
	err     error
	upserts [][]index.Record
}

func (f *fakeIndex) Upsert(_ context.Context, records []index.Record) error {
	f.upserts = append(f.upserts, records)
	return f.err
}

func (f *fakeIndex) Query(_ context.Context, _ []float64, _ int) ([]index.Match, error) {
	return nil, nil
}

func pairs(n int) []Pair {
	out := make([]Pair, n)
	for i := range out {
		out[i] = Pair{Context: fmt.Sprintf("ctx-%d", i), Response: fmt.Sprintf("rsp-%d", i)}
	}
	return out
}

func TestFlush_UpsertsAllPairs(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := &fakeIndex{}
	p := New(emb, 10, nil)

	for _, pair := range pairs(3) {
		p.Append(pair)
	}
	p.Flush(context.Background(), idx)

	if p.Len() != 0 {
		t.Errorf("expected drained buffer, got %d", p.Len())
	}
	if len(idx.upserts) != 1 || len(idx.upserts[0]) != 3 {
		t.Fatalf("expected one upsert of 3 records, got %+v", idx.upserts)
	}
	rec := idx.upserts[0][0]
	if rec.Metadata["context"] != "ctx-0" || rec.Metadata["response"] != "rsp-0" {
		t.Errorf("metadata must carry the pair: %+v", rec.Metadata)
	}
	if len(rec.ID) != 64 {
		t.Errorf("expected content-derived hex id, got %q", rec.ID)
	}
}

func TestFlush_PassagePrefix(t *testing.T) {
	emb := &fakeEmbedder{}
	p := New(emb, 10, nil)
	p.Append(Pair{Context: "print ho gaya?", Response: "haan"})
	p.Flush(context.Background(), &fakeIndex{})

	if emb.texts[0] != "passage: print ho gaya?" {
		t.Errorf("expected passage prefix, got %q", emb.texts[0])
	}
}

func TestFlush_ContentDerivedIDStable(t *testing.T) {
	a := recordID(Pair{Context: "c", Response: "r"})
	b := recordID(Pair{Context: "c", Response: "r"})
	c := recordID(Pair{Context: "c", Response: "other"})
	if a != b {
		t.Error("same pair must produce the same record id")
	}
	if a == c {
		t.Error("different pairs must produce different record ids")
	}
}

func TestFlush_DrainsUnconditionallyOnIndexFailure(t *testing.T) {
	idx := &fakeIndex{err: errors.New("index down")}
	p := New(&fakeEmbedder{}, 10, nil)

	for _, pair := range pairs(5) {
		p.Append(pair)
	}
	p.Flush(context.Background(), idx)

	if p.Len() != 0 {
		t.Errorf("buffer must drain even when every upsert fails, got %d", p.Len())
	}
}

func TestFlush_EmbeddingFailureDiscardsAll(t *testing.T) {
	idx := &fakeIndex{}
	p := New(&fakeEmbedder{err: errors.New("no embedder")}, 10, nil)

	for _, pair := range pairs(4) {
		p.Append(pair)
	}
	p.Flush(context.Background(), idx)

	if p.Len() != 0 {
		t.Error("buffer must drain after embedding failure")
	}
	if len(idx.upserts) != 0 {
		t.Error("no upserts should be attempted after embedding failure")
	}
}

func TestFlush_NilEmbedderDiscards(t *testing.T) {
	p := New(nil, 10, nil)
	p.Append(Pair{Context: "c", Response: "r"})
	p.Flush(context.Background(), &fakeIndex{})
	if p.Len() != 0 {
		t.Error("buffer must drain when no embedder is configured")
	}
}

func TestFlush_NilIndexClearsBuffer(t *testing.T) {
	emb := &fakeEmbedder{}
	p := New(emb, 10, nil)
	p.Append(Pair{Context: "c", Response: "r"})
	p.Flush(context.Background(), nil)

	if p.Len() != 0 {
		t.Error("buffer must clear on flush with no index")
	}
	if emb.calls != 0 {
		t.Error("no embedding should happen with no index")
	}
}

func TestFlush_EmptyBufferIsNoop(t *testing.T) {
	idx := &fakeIndex{}
	p := New(&fakeEmbedder{}, 10, nil)
	p.Flush(context.Background(), idx)
	if len(idx.upserts) != 0 {
		t.Error("flushing an empty buffer must not call the index")
	}
}

func TestFlush_ChunksAtFifty(t *testing.T) {
	idx := &fakeIndex{}
	p := New(&fakeEmbedder{}, 200, nil)

	for _, pair := range pairs(120) {
		p.Append(pair)
	}
	p.Flush(context.Background(), idx)

	if len(idx.upserts) != 3 {
		t.Fatalf("expected 3 chunks for 120 records, got %d", len(idx.upserts))
	}
	if len(idx.upserts[0]) != 50 || len(idx.upserts[1]) != 50 || len(idx.upserts[2]) != 20 {
		t.Errorf("unexpected chunk sizes: %d, %d, %d",
			len(idx.upserts[0]), len(idx.upserts[1]), len(idx.upserts[2]))
	}
}

func TestShouldFlush_BatchThreshold(t *testing.T) {
	p := New(&fakeEmbedder{}, 3, nil)
	p.Append(Pair{Context: "a"})
	p.Append(Pair{Context: "b"})
	if p.ShouldFlush("regular message") {
		t.Error("below threshold and no closing phrase: no flush")
	}
	p.Append(Pair{Context: "c"})
	if !p.ShouldFlush("regular message") {
		t.Error("at threshold: flush")
	}
}

func TestShouldFlush_ClosingPhrase(t *testing.T) {
	p := New(&fakeEmbedder{}, 100, nil)
	p.Append(Pair{Context: "a"})

	tests := []struct {
		input string
		want  bool
	}{
		{"thanks yaar", true},
		{"THANKS", true},
		{"Ok Bye!", true},
		{"good night", true},
		{"kal milte hai", false},
	}
	for _, tt := range tests {
		if got := p.ShouldFlush(tt.input); got != tt.want {
			t.Errorf("ShouldFlush(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestShouldFlush_CustomVocabulary(t *testing.T) {
	p := New(&fakeEmbedder{}, 100, []string{"ciao"})
	if !p.ShouldFlush("ok ciao") {
		t.Error("custom closing phrase should trigger a flush")
	}
	if p.ShouldFlush("thanks") {
		t.Error("default vocabulary should be replaced by the custom one")
	}
}

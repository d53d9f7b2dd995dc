package providers

import (
	"context"
	"testing"
)

type namedProvider struct{ name string }

func (p namedProvider) Name() string { return p.name }

func (p namedProvider) Complete(_ context.Context, _ Request) (*Response, error) {
	return &Response{}, nil
}

type namedEmbedder struct{ name string }

func (e namedEmbedder) Name() string { return e.name }

func (e namedEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	return make([][]float64, len(texts)), nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(namedProvider{name: "gemini"})
	r.Register(namedProvider{name: "openai"})
	r.RegisterEmbedder(namedEmbedder{name: "huggingface"})

	if _, ok := r.Get("gemini"); !ok {
		t.Error("expected registered provider to be found")
	}
	if _, ok := r.Get("bedrock"); ok {
		t.Error("expected miss for unregistered provider")
	}
	if _, ok := r.GetEmbedder("huggingface"); !ok {
		t.Error("expected registered embedder to be found")
	}

	if got := len(r.List()); got != 2 {
		t.Errorf("expected 2 providers listed, got %d", got)
	}
	if got := len(r.ListEmbedders()); got != 1 {
		t.Errorf("expected 1 embedder listed, got %d", got)
	}
}

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultHFEmbedModel is the instruction-tuned E5 model the knowledge base
// was built with. E5 models expect the "query: "/"passage: " prefixes that
// the retrieval and sync layers apply.
const DefaultHFEmbedModel = "intfloat/multilingual-e5-large-instruct"

// HuggingFaceEmbedder implements Embedder against a HuggingFace Inference
// feature-extraction endpoint.
type HuggingFaceEmbedder struct {
	Base
	httpClient *http.Client
	model      string
}

// NewHuggingFace creates a HuggingFace embedder. An empty apiKey is a
// startup error: embedding credentials are required, not degradable.
// model defaults to DefaultHFEmbedModel; baseURL defaults to the public
// inference router.
func NewHuggingFace(apiKey, model, baseURL string) (*HuggingFaceEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("huggingface: api key is required")
	}
	if model == "" {
		model = DefaultHFEmbedModel
	}
	if baseURL == "" {
		baseURL = "https://router.huggingface.co/hf-inference"
	}
	return &HuggingFaceEmbedder{
		Base:       Base{name: "huggingface", apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/")},
		httpClient: &http.Client{},
		model:      model,
	}, nil
}

type hfEmbedRequest struct {
	Inputs []string `json:"inputs"`
}

// Embed runs the feature-extraction pipeline and returns one vector per
// input text.
func (h *HuggingFaceEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(hfEmbedRequest{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s/pipeline/feature-extraction", h.baseURL, h.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("huggingface: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var vectors [][]float64
	if err := json.Unmarshal(respBody, &vectors); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("huggingface: got %d vectors for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Pinecone is an Index backed by a Pinecone serverless index over its REST
// API. host is the per-index data-plane endpoint reported by the Pinecone
// console (https://{index}-{project}.svc.{region}.pinecone.io).
type Pinecone struct {
	httpClient *http.Client
	apiKey     string
	host       string
}

// NewPinecone creates a Pinecone index client.
func NewPinecone(apiKey, host string) (*Pinecone, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("pinecone: api key is required")
	}
	if host == "" {
		return nil, fmt.Errorf("pinecone: index host is required")
	}
	if !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	return &Pinecone{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		host:       strings.TrimRight(host, "/"),
	}, nil
}

type pineconeUpsertRequest struct {
	Vectors []Record `json:"vectors"`
}

type pineconeQueryRequest struct {
	Vector          []float64 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type pineconeQueryResponse struct {
	Matches []Match `json:"matches"`
}

type pineconeError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (p *Pinecone) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var pe pineconeError
		if json.Unmarshal(respBody, &pe) == nil && pe.Message != "" {
			return fmt.Errorf("pinecone %s: %s (status %d)", path, pe.Message, resp.StatusCode)
		}
		return fmt.Errorf("pinecone %s: status %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Upsert writes records into the index.
func (p *Pinecone) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	return p.post(ctx, "/vectors/upsert", pineconeUpsertRequest{Vectors: records}, nil)
}

// Query returns the topK nearest matches for the given vector, with
// metadata included.
func (p *Pinecone) Query(ctx context.Context, vector []float64, topK int) ([]Match, error) {
	var out pineconeQueryResponse
	req := pineconeQueryRequest{Vector: vector, TopK: topK, IncludeMetadata: true}
	if err := p.post(ctx, "/query", req, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

// Package providers defines the generation and embedding collaborator
// interfaces and their concrete backends: Gemini (REST), OpenAI
// (openai-go), AWS Bedrock, and HuggingFace Inference embeddings.
//
// The agent core only sees the Provider and Embedder interfaces; failures
// from either are degraded at the turn boundary, never propagated to the
// end user.
package providers

import "context"

// Message role constants shared by all providers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat generation request.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// Usage carries token accounting for a generation call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the result of a generation call.
type Response struct {
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        Usage  `json:"usage"`
}

// Provider is the generation collaborator contract.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Embedder is the embedding collaborator contract. Implementations return
// one fixed-length vector per input text, in input order.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

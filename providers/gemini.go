package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
)

// DefaultGeminiModel is used when a request does not name a model.
const DefaultGeminiModel = "gemini-2.5-pro"

// GeminiProvider implements Provider for Google Gemini over the
// generateContent REST API.
type GeminiProvider struct {
	Base
	httpClient *http.Client
}

// NewGemini creates a Gemini provider authenticating with an API key.
// A missing key is a startup error, not a degraded mode.
func NewGemini(apiKey, baseURL string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return &GeminiProvider{
		Base:       Base{name: "gemini", apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/")},
		httpClient: &http.Client{},
	}, nil
}

// NewGeminiOAuth creates a Gemini provider for enterprise endpoints that
// authenticate with OAuth2 client credentials instead of an API key. The
// returned client fetches and refreshes tokens transparently.
func NewGeminiOAuth(clientID, clientSecret, tokenURL, baseURL string) (*GeminiProvider, error) {
	if clientID == "" || clientSecret == "" || tokenURL == "" {
		return nil, fmt.Errorf("gemini: client id, secret, and token url are required for oauth")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("gemini: base url is required for oauth endpoints")
	}
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return &GeminiProvider{
		Base:       Base{name: "gemini", baseURL: strings.TrimRight(baseURL, "/")},
		httpClient: cc.Client(context.Background()),
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

type geminiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// convertMessagesToGemini maps provider messages onto Gemini contents.
// Gemini has no system role; system text is prepended to the next user turn.
func convertMessagesToGemini(messages []Message) []geminiContent {
	var systemText string
	var contents []geminiContent

	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if systemText != "" {
				systemText += "\n"
			}
			systemText += msg.Content
			continue
		}

		role := msg.Role
		if role == RoleAssistant {
			role = "model"
		}

		content := msg.Content
		if role == RoleUser && systemText != "" {
			content = systemText + "\n" + content
			systemText = ""
		}

		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: content}},
		})
	}
	return contents
}

// Complete sends a generateContent request and returns the reply.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	geminiReq := geminiRequest{Contents: convertMessagesToGemini(req.Messages)}
	if req.Temperature != nil || req.MaxTokens != nil {
		geminiReq.GenerationConfig = &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
	}

	body, err := json.Marshal(geminiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("x-goog-api-key", p.apiKey)
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var ge geminiErrorResponse
		if json.Unmarshal(respBody, &ge) == nil && ge.Error.Message != "" {
			return nil, fmt.Errorf("gemini: %s (status %d)", ge.Error.Message, httpResp.StatusCode)
		}
		return nil, fmt.Errorf("gemini: status %d", httpResp.StatusCode)
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(geminiResp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: empty candidate list")
	}

	var text strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return &Response{
		Model:        model,
		Content:      text.String(),
		FinishReason: geminiResp.Candidates[0].FinishReason,
		Usage: Usage{
			PromptTokens:     geminiResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: geminiResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      geminiResp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

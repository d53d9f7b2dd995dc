package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// DefaultTitanEmbeddingModel is the Bedrock embedding model used by Embed.
const DefaultTitanEmbeddingModel = "amazon.titan-embed-text-v2:0"

// BedrockProvider implements Provider and Embedder for AWS Bedrock via the
// InvokeModel API. Anthropic Claude and Amazon Titan text models are
// supported for generation; Titan text embeddings for embedding.
type BedrockProvider struct {
	Base
	client         *bedrockruntime.Client
	region         string
	embeddingModel string
}

// NewBedrock creates a Bedrock provider using the default AWS credential
// chain. region defaults to us-east-1.
func NewBedrock(ctx context.Context, region string) (*BedrockProvider, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &BedrockProvider{
		Base:           Base{name: "bedrock"},
		client:         bedrockruntime.NewFromConfig(cfg),
		region:         region,
		embeddingModel: DefaultTitanEmbeddingModel,
	}, nil
}

// NewBedrockStatic creates a Bedrock provider with explicit static
// credentials, bypassing the default chain. Useful when the agent runs
// outside AWS with injected keys.
func NewBedrockStatic(ctx context.Context, region, accessKeyID, secretAccessKey string) (*BedrockProvider, error) {
	if accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("bedrock: access key id and secret are required")
	}
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &BedrockProvider{
		Base:           Base{name: "bedrock"},
		client:         bedrockruntime.NewFromConfig(cfg),
		region:         region,
		embeddingModel: DefaultTitanEmbeddingModel,
	}, nil
}

type bedrockAnthropicRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []Message `json:"messages"`
	Temperature      *float64  `json:"temperature,omitempty"`
	System           string    `json:"system,omitempty"`
}

type bedrockAnthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type bedrockTitanRequest struct {
	InputText            string `json:"inputText"`
	TextGenerationConfig struct {
		MaxTokenCount int     `json:"maxTokenCount,omitempty"`
		Temperature   float64 `json:"temperature,omitempty"`
	} `json:"textGenerationConfig"`
}

type bedrockTitanResponse struct {
	Results []struct {
		OutputText       string `json:"outputText"`
		CompletionReason string `json:"completionReason"`
		TokenCount       int    `json:"tokenCount"`
	} `json:"results"`
	InputTextTokenCount int `json:"inputTextTokenCount"`
}

type bedrockTitanEmbedRequest struct {
	InputText string `json:"inputText"`
}

type bedrockTitanEmbedResponse struct {
	Embedding           []float64 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Complete routes the request to the model family indicated by its prefix.
func (p *BedrockProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	switch {
	case strings.HasPrefix(req.Model, "anthropic."):
		return p.completeAnthropic(ctx, req)
	case strings.HasPrefix(req.Model, "amazon.titan"):
		return p.completeTitan(ctx, req)
	default:
		return nil, fmt.Errorf("bedrock: unsupported model %q", req.Model)
	}
}

func (p *BedrockProvider) invoke(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke: %w", err)
	}
	return output.Body, nil
}

func (p *BedrockProvider) completeAnthropic(ctx context.Context, req Request) (*Response, error) {
	maxTokens := 1024
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	var system string
	var messages []Message
	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			system = msg.Content
		} else {
			messages = append(messages, msg)
		}
	}

	body, err := json.Marshal(bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Messages:         messages,
		Temperature:      req.Temperature,
		System:           system,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := p.invoke(ctx, req.Model, body)
	if err != nil {
		return nil, err
	}

	var resp bedrockAnthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}

	return &Response{
		Model:        req.Model,
		Content:      text.String(),
		FinishReason: resp.StopReason,
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

func (p *BedrockProvider) completeTitan(ctx context.Context, req Request) (*Response, error) {
	var sb strings.Builder
	for _, msg := range req.Messages {
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}

	titanReq := bedrockTitanRequest{InputText: sb.String()}
	if req.MaxTokens != nil {
		titanReq.TextGenerationConfig.MaxTokenCount = *req.MaxTokens
	}
	if req.Temperature != nil {
		titanReq.TextGenerationConfig.Temperature = *req.Temperature
	}

	body, err := json.Marshal(titanReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := p.invoke(ctx, req.Model, body)
	if err != nil {
		return nil, err
	}

	var resp bedrockTitanResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("bedrock titan: empty result list")
	}

	return &Response{
		Model:        req.Model,
		Content:      resp.Results[0].OutputText,
		FinishReason: resp.Results[0].CompletionReason,
		Usage: Usage{
			PromptTokens:     resp.InputTextTokenCount,
			CompletionTokens: resp.Results[0].TokenCount,
			TotalTokens:      resp.InputTextTokenCount + resp.Results[0].TokenCount,
		},
	}, nil
}

// Embed returns Titan text embeddings, one InvokeModel call per input.
func (p *BedrockProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, 0, len(texts))
	for _, text := range texts {
		body, err := json.Marshal(bedrockTitanEmbedRequest{InputText: text})
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		respBody, err := p.invoke(ctx, p.embeddingModel, body)
		if err != nil {
			return nil, err
		}
		var resp bedrockTitanEmbedResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		vectors = append(vectors, resp.Embedding)
	}
	return vectors, nil
}

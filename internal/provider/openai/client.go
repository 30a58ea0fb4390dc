// Package openai implements the SDK-backed upstream clients: Azure OpenAI
// deployments and generic OpenAI-compatible endpoints. Both flavours share
// the same completion path and response normalisation; they differ only in
// how the SDK client is configured.
package openai

import (
	"context"
	"fmt"
	"net/http"

	oa "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/azure"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"aigateway/internal/config"
	"aigateway/internal/models"
	"aigateway/internal/provider"
)

// Client talks to an OpenAI-compatible upstream through the official SDK.
type Client struct {
	name          string
	fallbackModel string
	client        oa.Client
}

// New creates a client for a generic OpenAI-compatible endpoint using bearer
// token authentication against the configured base URL.
func New(cfg config.AzureConfig, httpClient *http.Client) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.Endpoint),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Client{
		name:          "openai",
		fallbackModel: cfg.Model,
		client:        oa.NewClient(opts...),
	}
}

// NewAzure creates a client for an Azure-hosted OpenAI resource using API key
// plus API version authentication.
func NewAzure(cfg config.AzureConfig, httpClient *http.Client) *Client {
	opts := []option.RequestOption{
		azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
		azure.WithAPIKey(cfg.APIKey),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Client{
		name:          "azure-openai",
		fallbackModel: cfg.Model,
		client:        oa.NewClient(opts...),
	}
}

func (c *Client) Name() string {
	return c.name
}

// Complete performs one chat completion call and normalises the SDK result.
func (c *Client) Complete(ctx context.Context, req provider.Request) (*models.ChatResponse, error) {
	messages := make([]oa.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleSystem:
			messages = append(messages, oa.SystemMessage(m.Content))
		case models.RoleAssistant:
			messages = append(messages, oa.AssistantMessage(m.Content))
		default:
			messages = append(messages, oa.UserMessage(m.Content))
		}
	}

	params := oa.ChatCompletionNewParams{
		Model:       shared.ChatModel(req.Model),
		Messages:    messages,
		Temperature: oa.Float(req.Temperature),
		MaxTokens:   oa.Int(int64(req.MaxTokens)),
	}
	if req.TopP != nil {
		params.TopP = oa.Float(*req.TopP)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s chat completion: %w", c.name, err)
	}

	return toResponse(resp, c.fallbackModel)
}

// toResponse maps the object-shaped SDK result into the canonical response.
// Missing usage counters come back as zeroes rather than an error; an empty
// choices list or a choice without message content is malformed.
func toResponse(resp *oa.ChatCompletion, fallbackModel string) (*models.ChatResponse, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", provider.ErrMalformedResponse)
	}

	choice := resp.Choices[0]
	if !choice.Message.JSON.Content.Valid() {
		return nil, fmt.Errorf("%w: choice is missing message content", provider.ErrMalformedResponse)
	}

	model := resp.Model
	if model == "" {
		model = fallbackModel
	}

	return &models.ChatResponse{
		Response: choice.Message.Content,
		Model:    model,
		Usage: map[string]int{
			"prompt_tokens":     int(resp.Usage.PromptTokens),
			"completion_tokens": int(resp.Usage.CompletionTokens),
			"total_tokens":      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// Package digitalocean implements the DigitalOcean inference upstream. The
// endpoint speaks an OpenAI-compatible chat completion dialect but returns a
// plain JSON document, so the client posts directly with a bearer token and
// normalises the dictionary-shaped result itself.
package digitalocean

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"aigateway/internal/config"
	"aigateway/internal/models"
	"aigateway/internal/provider"
)

const (
	completionsSuffix = "/chat/completions"
	contentTypeJSON   = "application/json"
	maxErrorBodyBytes = 64 * 1024
)

// Client posts chat completions to a DigitalOcean inference endpoint.
type Client struct {
	endpoint      string
	apiKey        string
	fallbackModel string
	client        *http.Client
}

// New creates a DigitalOcean client. A configured key carrying a leading
// "Bearer " prefix is stripped so the Authorization header is not doubled.
func New(cfg config.DigitalOceanConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:        strings.TrimPrefix(cfg.APIKey, "Bearer "),
		fallbackModel: cfg.Model,
		client:        httpClient,
	}
}

func (c *Client) Name() string {
	return "digitalocean"
}

type chatPayload struct {
	Model       string           `json:"model"`
	Messages    []models.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
	TopP        *float64         `json:"top_p,omitempty"`
}

type chatResponse struct {
	Model   string                     `json:"model"`
	Choices []chatChoice               `json:"choices"`
	Usage   map[string]json.RawMessage `json:"usage"`
}

type chatChoice struct {
	Message *chatMessage `json:"message"`
}

type chatMessage struct {
	Content *string `json:"content"`
}

// Complete performs one chat completion call. A non-200 status is a hard
// upstream error carrying the response body as diagnostic text.
func (c *Client) Complete(ctx context.Context, req provider.Request) (*models.ChatResponse, error) {
	payload := chatPayload{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("digitalocean chat request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		errBody, readErr := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodyBytes))
		if readErr != nil {
			return nil, fmt.Errorf("upstream error status %d and failed to read body: %w", httpResp.StatusCode, readErr)
		}
		upstreamErr := &provider.UpstreamError{
			Provider:   "DigitalOcean",
			StatusCode: httpResp.StatusCode,
			Body:       strings.TrimSpace(string(errBody)),
		}
		slog.Error("digitalocean API error", "status", httpResp.StatusCode, "body", upstreamErr.Body)
		return nil, upstreamErr
	}

	var parsed chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrMalformedResponse, err)
	}

	return toResponse(parsed, c.fallbackModel)
}

// completionsURL appends the chat completions suffix unless the configured
// endpoint already ends with it.
func (c *Client) completionsURL() string {
	if strings.HasSuffix(c.endpoint, completionsSuffix) {
		return c.endpoint
	}
	return c.endpoint + completionsSuffix
}

// toResponse maps the dictionary-shaped result into the canonical response.
// The configured model is the fallback when the upstream omits its own; a
// missing usage block becomes an empty mapping. Usage entries that are not
// plain integers (nested detail objects, nulls) are dropped rather than
// failing the whole response.
func toResponse(parsed chatResponse, fallbackModel string) (*models.ChatResponse, error) {
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", provider.ErrMalformedResponse)
	}

	choice := parsed.Choices[0]
	if choice.Message == nil || choice.Message.Content == nil {
		return nil, fmt.Errorf("%w: choice is missing message content", provider.ErrMalformedResponse)
	}

	model := parsed.Model
	if model == "" {
		model = fallbackModel
	}

	usage := make(map[string]int, len(parsed.Usage))
	for key, raw := range parsed.Usage {
		var count int
		if err := json.Unmarshal(raw, &count); err == nil {
			usage[key] = count
		}
	}

	return &models.ChatResponse{
		Response: *choice.Message.Content,
		Model:    model,
		Usage:    usage,
	}, nil
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigateway/internal/config"
	"aigateway/internal/models"
	"aigateway/internal/provider"
	"aigateway/internal/provider/digitalocean"
)

type stubClient struct {
	resp    *models.ChatResponse
	err     error
	lastReq provider.Request
	calls   int
}

func (s *stubClient) Name() string { return "stub" }

func (s *stubClient) Complete(ctx context.Context, req provider.Request) (*models.ChatResponse, error) {
	s.lastReq = req
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func testConfig(providerID string) config.Config {
	cfg := config.Config{
		Provider:     providerID,
		SystemPrompt: "You are a helpful AI assistant.",
		Server:       config.ServerConfig{Host: "127.0.0.1", Port: 8000, Origins: []string{"*"}},
		Log:          config.LogConfig{Level: "INFO"},
	}
	cfg.Azure = config.AzureConfig{
		Endpoint:   "https://agent.openai.azure.com/",
		APIKey:     "azure-key",
		Model:      "gpt-4",
		APIVersion: "2024-02-15-preview",
	}
	cfg.DigitalOcean = config.DigitalOceanConfig{
		Endpoint: "https://inference.do-ai.run/v1",
		APIKey:   "do-key",
		Model:    "openai-gpt-4o",
	}
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config, client provider.Client) *Server {
	t.Helper()
	srv, err := New(cfg, client)
	require.NoError(t, err)
	return srv
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestRootDescriptor(t *testing.T) {
	srv := newTestServer(t, testConfig(config.ProviderAzure), &stubClient{})

	rec := doRequest(srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.JSONEq(t, `{
		"service": "AI API Gateway",
		"version": "2.0.0",
		"provider": "azure",
		"docs": "/docs",
		"health": "/health",
		"endpoints": {"chat": "/api/chat", "completion": "/api/completion"}
	}`, rec.Body.String())
}

func TestHealthAzure(t *testing.T) {
	cfg := testConfig(config.ProviderAzure)
	cfg.Azure.APIKey = ""
	srv := newTestServer(t, cfg, &stubClient{})

	rec := doRequest(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code, "health must serve even without a key")

	var body struct {
		Status        string         `json:"status"`
		Message       string         `json:"message"`
		Configuration map[string]any `json:"configuration"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "Service is running", body.Message)
	assert.Equal(t, "azure", body.Configuration["ai_provider"])
	assert.Equal(t, true, body.Configuration["endpoint_configured"])
	assert.Equal(t, false, body.Configuration["api_key_configured"])
	assert.Equal(t, "gpt-4", body.Configuration["model"])
	assert.Equal(t, "2024-02-15-preview", body.Configuration["api_version"])
	assert.NotContains(t, rec.Body.String(), "do-key", "secrets never appear in the summary")
}

func TestHealthDigitalOcean(t *testing.T) {
	srv := newTestServer(t, testConfig(config.ProviderDigitalOcean), &stubClient{})

	rec := doRequest(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Configuration map[string]any `json:"configuration"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "digitalocean", body.Configuration["ai_provider"])
	assert.Equal(t, true, body.Configuration["api_key_configured"])
	assert.Equal(t, "openai-gpt-4o", body.Configuration["model"])
	assert.NotContains(t, body.Configuration, "api_version")
}

func TestChatSuccess(t *testing.T) {
	stub := &stubClient{resp: &models.ChatResponse{
		Response: "hello",
		Model:    "gpt-4-0613",
		Usage:    map[string]int{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
	}}
	srv := newTestServer(t, testConfig(config.ProviderAzure), stub)

	rec := doRequest(srv, http.MethodPost, "/api/chat", `{
		"messages": [
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "hello"},
			{"role": "user", "content": "again"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.JSONEq(t, `{
		"response": "hello",
		"model": "gpt-4-0613",
		"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
	}`, rec.Body.String())

	require.Len(t, stub.lastReq.Messages, 4)
	assert.Equal(t, "system", stub.lastReq.Messages[0].Role)
	assert.Equal(t, "You are a helpful AI assistant.", stub.lastReq.Messages[0].Content)
	assert.Equal(t, "again", stub.lastReq.Messages[3].Content)
	assert.Equal(t, "gpt-4", stub.lastReq.Model)
	require.NotNil(t, stub.lastReq.TopP)
	assert.Equal(t, 0.95, *stub.lastReq.TopP)
}

func TestChatValidationStopsBeforeUpstream(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty messages", `{"messages": []}`, "messages"},
		{"temperature out of range", `{"messages": [{"role": "user", "content": "hi"}], "temperature": 2.5}`, "temperature"},
		{"max_tokens zero", `{"messages": [{"role": "user", "content": "hi"}], "max_tokens": 0}`, "max_tokens"},
		{"max_tokens above bound", `{"messages": [{"role": "user", "content": "hi"}], "max_tokens": 4001}`, "max_tokens"},
		{"top_p out of range", `{"messages": [{"role": "user", "content": "hi"}], "top_p": 1.5}`, "top_p"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubClient{resp: &models.ChatResponse{Usage: map[string]int{}}}
			srv := newTestServer(t, testConfig(config.ProviderAzure), stub)

			rec := doRequest(srv, http.MethodPost, "/api/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"detail"`)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Zero(t, stub.calls, "validation failures must not reach the upstream")
		})
	}
}

func TestChatMalformedJSON(t *testing.T) {
	srv := newTestServer(t, testConfig(config.ProviderAzure), &stubClient{})

	rec := doRequest(srv, http.MethodPost, "/api/chat", `{"messages": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/api/chat", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatUpstreamFailure(t *testing.T) {
	stub := &stubClient{err: &provider.UpstreamError{
		Provider:   "DigitalOcean",
		StatusCode: http.StatusBadGateway,
		Body:       "model overloaded",
	}}
	srv := newTestServer(t, testConfig(config.ProviderDigitalOcean), stub)

	rec := doRequest(srv, http.MethodPost, "/api/chat", `{"messages": [{"role": "user", "content": "hi"}]}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body.Detail, "Failed to generate response: "))
	assert.Contains(t, body.Detail, "model overloaded")
}

func TestChatShapeFailure(t *testing.T) {
	stub := &stubClient{err: errors.New("upstream response has unexpected shape: no choices returned")}
	srv := newTestServer(t, testConfig(config.ProviderAzure), stub)

	rec := doRequest(srv, http.MethodPost, "/api/chat", `{"messages": [{"role": "user", "content": "hi"}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCompletionDoesNotForwardTopP(t *testing.T) {
	stub := &stubClient{resp: &models.ChatResponse{Response: "ok", Model: "gpt-4", Usage: map[string]int{}}}
	srv := newTestServer(t, testConfig(config.ProviderAzure), stub)

	rec := doRequest(srv, http.MethodPost, "/api/completion", `{"prompt": "Say hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Nil(t, stub.lastReq.TopP)
	require.Len(t, stub.lastReq.Messages, 2)
	assert.Equal(t, "system", stub.lastReq.Messages[0].Role)
	assert.Equal(t, models.Message{Role: "user", Content: "Say hi"}, stub.lastReq.Messages[1])
}

func TestCompletionValidation(t *testing.T) {
	srv := newTestServer(t, testConfig(config.ProviderAzure), &stubClient{})

	rec := doRequest(srv, http.MethodPost, "/api/completion", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "prompt")
}

func TestCORSHeaders(t *testing.T) {
	cfg := testConfig(config.ProviderAzure)
	cfg.Server.Origins = []string{"https://app.example"}
	srv := newTestServer(t, cfg, &stubClient{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

// Full pipeline through the real DigitalOcean client against a stubbed
// upstream: the gateway must return the upstream's text, model, and usage
// verbatim in the canonical shape.
func TestCompletionEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "Hello!"}}],
			"model": "gpt-4",
			"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
		}`))
	}))
	defer upstream.Close()

	cfg := testConfig(config.ProviderDigitalOcean)
	cfg.DigitalOcean.Endpoint = upstream.URL
	client := digitalocean.New(cfg.DigitalOcean, http.DefaultClient)

	srv := newTestServer(t, cfg, client)

	rec := doRequest(srv, http.MethodPost, "/api/completion", `{"prompt": "Say hi"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.JSONEq(t, `{
		"response": "Hello!",
		"model": "gpt-4",
		"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
	}`, rec.Body.String())
}

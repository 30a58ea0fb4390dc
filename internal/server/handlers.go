package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"aigateway/internal/config"
	"aigateway/internal/provider"
	"aigateway/internal/translator"
)

type rootResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Provider  string            `json:"provider"`
	Docs      string            `json:"docs"`
	Health    string            `json:"health"`
	Endpoints map[string]string `json:"endpoints"`
}

type healthResponse struct {
	Status        string         `json:"status"`
	Message       string         `json:"message"`
	Configuration map[string]any `json:"configuration"`
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, rootResponse{
		Service:  serviceName,
		Version:  serviceVersion,
		Provider: s.cfg.Provider,
		Docs:     "/docs",
		Health:   "/health",
		Endpoints: map[string]string{
			"chat":       "/api/chat",
			"completion": "/api/completion",
		},
	})
}

// handleHealth reports configuration presence only. It does not probe the
// upstream, so a serving process is always "healthy" even with an unreachable
// provider. Secrets are reported as booleans, never echoed.
func (s *Server) handleHealth(c echo.Context) error {
	var configuration map[string]any
	if s.cfg.Provider == config.ProviderDigitalOcean {
		configuration = map[string]any{
			"ai_provider":         s.cfg.Provider,
			"endpoint_configured": s.cfg.DigitalOcean.Endpoint != "",
			"api_key_configured":  s.cfg.DigitalOcean.APIKey != "",
			"model":               s.cfg.DigitalOcean.Model,
		}
	} else {
		configuration = map[string]any{
			"ai_provider":         s.cfg.Provider,
			"endpoint_configured": s.cfg.Azure.Endpoint != "",
			"api_key_configured":  s.cfg.Azure.APIKey != "",
			"model":               s.cfg.Azure.Model,
			"api_version":         s.cfg.Azure.APIVersion,
		}
	}

	return c.JSON(http.StatusOK, healthResponse{
		Status:        "healthy",
		Message:       "Service is running",
		Configuration: configuration,
	})
}

func (s *Server) handleChat(c echo.Context) error {
	var req translator.ChatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return detailError{Status: http.StatusBadRequest, Message: err.Error()}
	}

	return s.complete(c, req.ToRequest(s.cfg.ModelName(), s.cfg.SystemPrompt))
}

func (s *Server) handleCompletion(c echo.Context) error {
	var req translator.CompletionRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return detailError{Status: http.StatusBadRequest, Message: err.Error()}
	}

	return s.complete(c, req.ToRequest(s.cfg.ModelName(), s.cfg.SystemPrompt))
}

func (s *Server) complete(c echo.Context, req provider.Request) error {
	slog.Info("calling upstream",
		"provider", s.client.Name(),
		"model", req.Model,
		"messages", len(req.Messages),
	)

	resp, err := s.client.Complete(c.Request().Context(), req)
	if err != nil {
		slog.Error("completion failed", "provider", s.client.Name(), "err", err)
		return detailError{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate response: " + err.Error(),
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return detailError{Status: http.StatusBadRequest, Message: "request body is required"}
		}
		return detailError{Status: http.StatusBadRequest, Message: fmt.Sprintf("invalid JSON payload: %v", err)}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return detailError{Status: http.StatusBadRequest, Message: "request body must contain a single JSON object"}
	}
	return nil
}

// detailError is surfaced to callers as {"detail": message} with the given
// status, matching the error body the gateway has always produced.
type detailError struct {
	Status  int
	Message string
}

func (e detailError) Error() string {
	return e.Message
}

type detailBody struct {
	Detail string `json:"detail"`
}

func detailErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var de detailError
	if errors.As(err, &de) {
		_ = c.JSON(de.Status, detailBody{Detail: de.Message})
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, detailBody{Detail: fmt.Sprintf("%v", he.Message)})
		return
	}

	_ = c.JSON(http.StatusInternalServerError, detailBody{Detail: "internal server error"})
}

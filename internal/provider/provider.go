// Package provider defines the upstream client contract shared by every
// provider variant. The active variant is chosen once at startup by the
// factory and injected into the server; handlers never know which upstream
// they are talking to.
package provider

import (
	"context"
	"errors"
	"fmt"

	"aigateway/internal/models"
)

// ErrMalformedResponse indicates a successful upstream call whose body could
// not be mapped into a ChatResponse. It is surfaced like any other upstream
// failure, never silently defaulted.
var ErrMalformedResponse = errors.New("upstream response has unexpected shape")

// Client is the single capability every upstream variant exposes.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (*models.ChatResponse, error)
}

// Request carries one chat completion call to an upstream. TopP is nil on
// paths that do not forward nucleus sampling.
type Request struct {
	Model       string
	Messages    []models.Message
	Temperature float64
	MaxTokens   int
	TopP        *float64
}

// UpstreamError is a non-success HTTP status from an upstream call. The body
// text is kept verbatim for diagnostics and is included in the error message
// surfaced to callers.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Body)
}

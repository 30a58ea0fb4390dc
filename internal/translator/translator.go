// Package translator models the gateway's wire request payloads, validates
// their field constraints, and assembles the ordered message sequence handed
// to the upstream client.
package translator

import (
	"errors"
	"fmt"

	"aigateway/internal/models"
	"aigateway/internal/provider"
)

// Sampling parameter defaults and bounds. Both request kinds share the same
// ranges; only chat requests carry top_p.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 800
	DefaultTopP        = 0.95

	minTemperature = 0.0
	maxTemperature = 2.0
	minMaxTokens   = 1
	maxMaxTokens   = 4000
	minTopP        = 0.0
	maxTopP        = 1.0
)

var (
	errEmptyMessages = errors.New("messages must contain at least one entry")
	errEmptyPrompt   = errors.New("prompt must not be empty")
)

// ChatRequest is the POST /api/chat payload. Optional fields are pointers so
// an absent value can be told apart from an explicit zero.
type ChatRequest struct {
	Messages     []models.Message `json:"messages"`
	SystemPrompt *string          `json:"system_prompt"`
	Temperature  *float64         `json:"temperature"`
	MaxTokens    *int             `json:"max_tokens"`
	TopP         *float64         `json:"top_p"`
}

// Validate checks the field constraints. Message roles are passed through to
// the upstream without further inspection.
func (r ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return errEmptyMessages
	}
	if err := validateTemperature(r.Temperature); err != nil {
		return err
	}
	if err := validateMaxTokens(r.MaxTokens); err != nil {
		return err
	}
	return validateTopP(r.TopP)
}

// ToRequest assembles the upstream request: effective system prompt first,
// then the conversation in its original order. top_p is always forwarded on
// this path, defaulted when absent.
func (r ChatRequest) ToRequest(model, defaultSystemPrompt string) provider.Request {
	topP := DefaultTopP
	if r.TopP != nil {
		topP = *r.TopP
	}

	return provider.Request{
		Model:       model,
		Messages:    BuildMessages(r.SystemPrompt, defaultSystemPrompt, r.Messages),
		Temperature: floatOrDefault(r.Temperature, DefaultTemperature),
		MaxTokens:   intOrDefault(r.MaxTokens, DefaultMaxTokens),
		TopP:        &topP,
	}
}

// CompletionRequest is the POST /api/completion payload. It carries no top_p.
type CompletionRequest struct {
	Prompt       string   `json:"prompt"`
	SystemPrompt *string  `json:"system_prompt"`
	Temperature  *float64 `json:"temperature"`
	MaxTokens    *int     `json:"max_tokens"`
}

// Validate checks the field constraints.
func (r CompletionRequest) Validate() error {
	if r.Prompt == "" {
		return errEmptyPrompt
	}
	if err := validateTemperature(r.Temperature); err != nil {
		return err
	}
	return validateMaxTokens(r.MaxTokens)
}

// ToRequest assembles the upstream request as a one-turn conversation. TopP
// stays nil: nucleus sampling is not forwarded for simple completions.
func (r CompletionRequest) ToRequest(model, defaultSystemPrompt string) provider.Request {
	conversation := []models.Message{{Role: models.RoleUser, Content: r.Prompt}}

	return provider.Request{
		Model:       model,
		Messages:    BuildMessages(r.SystemPrompt, defaultSystemPrompt, conversation),
		Temperature: floatOrDefault(r.Temperature, DefaultTemperature),
		MaxTokens:   intOrDefault(r.MaxTokens, DefaultMaxTokens),
	}
}

// BuildMessages resolves the effective system prompt and prepends it to the
// conversation. The request prompt wins when present and non-empty, otherwise
// the configured default applies; an empty effective prompt adds no system
// turn. The conversation itself is appended unchanged, order preserved.
func BuildMessages(override *string, defaultPrompt string, conversation []models.Message) []models.Message {
	prompt := defaultPrompt
	if override != nil && *override != "" {
		prompt = *override
	}

	messages := make([]models.Message, 0, len(conversation)+1)
	if prompt != "" {
		messages = append(messages, models.Message{Role: models.RoleSystem, Content: prompt})
	}
	return append(messages, conversation...)
}

func validateTemperature(v *float64) error {
	if v != nil && (*v < minTemperature || *v > maxTemperature) {
		return fmt.Errorf("temperature must be between %.1f and %.1f, got %v", minTemperature, maxTemperature, *v)
	}
	return nil
}

func validateMaxTokens(v *int) error {
	if v != nil && (*v < minMaxTokens || *v > maxMaxTokens) {
		return fmt.Errorf("max_tokens must be between %d and %d, got %d", minMaxTokens, maxMaxTokens, *v)
	}
	return nil
}

func validateTopP(v *float64) error {
	if v != nil && (*v < minTopP || *v > maxTopP) {
		return fmt.Errorf("top_p must be between %.1f and %.1f, got %v", minTopP, maxTopP, *v)
	}
	return nil
}

func floatOrDefault(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

func intOrDefault(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}

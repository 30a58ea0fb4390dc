// Package models defines the canonical types shared across the gateway.
package models

// Roles recognised by the chat completion contract. Incoming message roles are
// passed through to the upstream unchanged; these constants exist for the
// messages the gateway itself constructs.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversational turn. Order within a conversation is
// significant and preserved end to end.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the canonical response every provider variant normalises
// into. Usage carries token counters as reported by the upstream; it may be
// empty when the upstream omits accounting, but is never nil so it always
// renders as a JSON object.
type ChatResponse struct {
	Response string         `json:"response"`
	Model    string         `json:"model"`
	Usage    map[string]int `json:"usage"`
}

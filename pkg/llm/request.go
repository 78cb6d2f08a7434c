package llm

import "encoding/json"

// ChatRequest represents a provider-agnostic chat completion request.
type ChatRequest struct {
	// Model name (e.g., "claude-sonnet-4-20250514")
	Model string `json:"model"`

	// MaxTokens caps the generated output.
	MaxTokens int `json:"max_tokens"`

	// System prompt. Empty means the field is omitted from the request.
	System string `json:"system,omitempty"`

	// Conversation messages, oldest first.
	Messages []Message `json:"messages"`

	// Tools advertised to the model, in registration order.
	Tools []ToolSchema `json:"tools,omitempty"`
}

// ToolSchema is the declarative description of a tool handed to the model.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

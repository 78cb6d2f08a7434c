package llm

import "time"

// Stop reasons reported by the model.
const (
	StopReasonEndTurn = "end_turn"
	StopReasonToolUse = "tool_use"
)

// ChatResponse represents a provider-agnostic chat completion response.
type ChatResponse struct {
	// ID is the provider's message identifier.
	ID string `json:"id,omitempty"`

	// Model that generated the response
	Model string `json:"model"`

	// Response timestamp
	CreatedAt time.Time `json:"created_at,omitzero"`

	// The assistant's response message
	Message Message `json:"message"`

	// Stop reason (e.g., "end_turn", "tool_use", "max_tokens")
	StopReason string `json:"stop_reason,omitempty"`

	// Token usage
	Usage *Usage `json:"usage,omitempty"`
}

// Usage contains token counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	// Cache token counts (Anthropic prompt caching)
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// ErrorResponse is the JSON error body returned by the tether API.
type ErrorResponse struct {
	Error string `json:"error"`
}

package anthropic

import (
	"encoding/json"

	"github.com/papercomputeco/tether/pkg/llm"
)

// anthropicRequest represents Anthropic's Messages API request format.
type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []llm.ToolSchema   `json:"tools,omitempty"`
	Stream    bool               `json:"stream,omitempty"`
}

// anthropicMessage represents a message in Anthropic's format. Content is
// either a string or an array of typed blocks, which is exactly how
// llm.Content encodes itself.
type anthropicMessage struct {
	Role    string      `json:"role"`
	Content llm.Content `json:"content"`
}

// anthropicResponse represents Anthropic's response format.
type anthropicResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Role       string          `json:"role"`
	Content    llm.Content     `json:"content"`
	Model      string          `json:"model"`
	StopReason string          `json:"stop_reason"`
	Usage      *anthropicUsage `json:"usage,omitempty"`
}

type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Streaming event payloads.

type messageStartEvent struct {
	Message struct {
		ID    string          `json:"id"`
		Role  string          `json:"role"`
		Model string          `json:"model"`
		Usage *anthropicUsage `json:"usage"`
	} `json:"message"`
}

type contentBlockStartEvent struct {
	Index        int             `json:"index"`
	ContentBlock json.RawMessage `json:"content_block"`
}

type contentBlockDeltaEvent struct {
	Index int `json:"index"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
}

type messageDeltaEvent struct {
	Delta struct {
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage *anthropicUsage `json:"usage"`
}

func (u *anthropicUsage) toUsage() *llm.Usage {
	if u == nil {
		return nil
	}
	return &llm.Usage{
		PromptTokens:             u.InputTokens,
		CompletionTokens:         u.OutputTokens,
		TotalTokens:              u.InputTokens + u.OutputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens,
	}
}

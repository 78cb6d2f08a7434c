package llm

import (
	"encoding/json"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Block type tags as they appear on the wire and in storage.
const (
	BlockTypeText       = "text"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    string  `json:"role"`    // "user", "assistant"
	Content Content `json:"content"` // Ordered content blocks
}

// ContentBlock is a closed set of block variants: TextBlock, ToolUseBlock,
// ToolResultBlock and UnknownBlock. Code that switches over blocks should
// handle all four.
type ContentBlock interface {
	// BlockType returns the wire tag of the block.
	BlockType() string

	sealed()
}

// TextBlock carries plain assistant or user text.
type TextBlock struct {
	Text string `json:"text"`
}

// ToolUseBlock is the assistant requesting a tool execution.
type ToolUseBlock struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResultBlock answers a ToolUseBlock from the immediately preceding
// assistant message.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// UnknownBlock preserves a block whose tag this package does not model.
// Raw holds the original JSON object and is written back untouched.
type UnknownBlock struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

func (TextBlock) BlockType() string       { return BlockTypeText }
func (ToolUseBlock) BlockType() string    { return BlockTypeToolUse }
func (ToolResultBlock) BlockType() string { return BlockTypeToolResult }
func (b UnknownBlock) BlockType() string  { return b.Type }

func (TextBlock) sealed()       {}
func (ToolUseBlock) sealed()    {}
func (ToolResultBlock) sealed() {}
func (UnknownBlock) sealed()    {}

// NewTextMessage creates a simple text message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:    role,
		Content: Content{TextBlock{Text: text}},
	}
}

// GetText returns the concatenated text content from all text blocks in the message.
func (m *Message) GetText() string {
	return m.Content.Text()
}

// ToolUses returns the tool_use blocks of the message in order.
func (m *Message) ToolUses() []ToolUseBlock {
	var uses []ToolUseBlock
	for _, block := range m.Content {
		if tu, ok := block.(ToolUseBlock); ok {
			uses = append(uses, tu)
		}
	}
	return uses
}

// Text returns the concatenated text of all text blocks.
func (c Content) Text() string {
	var sb strings.Builder
	for _, block := range c {
		if tb, ok := block.(TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String()
}

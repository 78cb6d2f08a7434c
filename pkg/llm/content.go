package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Content is the ordered payload of a Message.
//
// On the wire a Content holding exactly one TextBlock is encoded as a plain
// JSON string, anything else as an array of typed block objects. Decoding
// keeps only the essential fields of known blocks so that stored history
// always comes back in the minimal shape, while unknown blocks are passed
// through byte for byte.
type Content []ContentBlock

type wireBlock struct {
	Type      string          `json:"type"`
	Text      *string         `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     map[string]any  `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c Content) MarshalJSON() ([]byte, error) {
	if len(c) == 1 {
		if tb, ok := c[0].(TextBlock); ok {
			return json.Marshal(tb.Text)
		}
	}

	out := make([]json.RawMessage, 0, len(c))
	for _, block := range c {
		raw, err := marshalBlock(block)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

// MarshalBlocks encodes the content as a block array even when it is plain
// text. Provider wire formats that require typed blocks use this.
func (c Content) MarshalBlocks() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(c))
	for _, block := range c {
		raw, err := marshalBlock(block)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

func marshalBlock(block ContentBlock) (json.RawMessage, error) {
	switch b := block.(type) {
	case TextBlock:
		text := b.Text
		return json.Marshal(wireBlock{Type: BlockTypeText, Text: &text})
	case ToolUseBlock:
		input := b.Input
		if input == nil {
			input = map[string]any{}
		}
		// input is required by the API even when empty, so it is encoded
		// outside the omitempty wire struct.
		return json.Marshal(struct {
			Type  string         `json:"type"`
			ID    string         `json:"id"`
			Name  string         `json:"name"`
			Input map[string]any `json:"input"`
		}{BlockTypeToolUse, b.ID, b.Name, input})
	case ToolResultBlock:
		content, err := json.Marshal(b.Content)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireBlock{
			Type:      BlockTypeToolResult,
			ToolUseID: b.ToolUseID,
			Content:   content,
			IsError:   b.IsError,
		})
	case UnknownBlock:
		if len(b.Raw) == 0 {
			return json.Marshal(map[string]string{"type": b.Type})
		}
		return b.Raw, nil
	default:
		return nil, fmt.Errorf("unsupported content block %T", block)
	}
}

// UnmarshalJSON implements json.Unmarshaler. It accepts a JSON string
// (plain text) or an array of block objects.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}

	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = Content{TextBlock{Text: text}}
		return nil

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		blocks := make(Content, 0, len(items))
		for _, item := range items {
			block, err := unmarshalBlock(item)
			if err != nil {
				return err
			}
			blocks = append(blocks, block)
		}
		*c = blocks
		return nil

	default:
		return fmt.Errorf("content must be a string or an array of blocks, got %q", string(data[:1]))
	}
}

func unmarshalBlock(item json.RawMessage) (ContentBlock, error) {
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return UnknownBlock{Raw: append(json.RawMessage(nil), trimmed...)}, nil
	}

	var wb wireBlock
	if err := json.Unmarshal(trimmed, &wb); err != nil {
		return nil, fmt.Errorf("decoding content block: %w", err)
	}

	switch wb.Type {
	case BlockTypeText:
		text := ""
		if wb.Text != nil {
			text = *wb.Text
		}
		return TextBlock{Text: text}, nil

	case BlockTypeToolUse:
		input := wb.Input
		if input == nil {
			input = map[string]any{}
		}
		return ToolUseBlock{ID: wb.ID, Name: wb.Name, Input: input}, nil

	case BlockTypeToolResult:
		return ToolResultBlock{
			ToolUseID: wb.ToolUseID,
			Content:   toolResultText(wb.Content),
			IsError:   wb.IsError,
		}, nil

	default:
		return UnknownBlock{Type: wb.Type, Raw: append(json.RawMessage(nil), trimmed...)}, nil
	}
}

// toolResultText flattens a tool_result payload. Providers may send either a
// string or a list of text blocks.
func toolResultText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var sb strings.Builder
		for _, p := range parts {
			if p.Type == BlockTypeText {
				sb.WriteString(p.Text)
			}
		}
		return sb.String()
	}

	return string(raw)
}

// ParseContent decodes a stored content value. Values that are not a JSON
// string or block array, such as rows written as raw text, come back as a
// single text block.
func ParseContent(stored string) Content {
	var c Content
	if err := json.Unmarshal([]byte(stored), &c); err != nil || c == nil {
		return Content{TextBlock{Text: stored}}
	}
	return c
}

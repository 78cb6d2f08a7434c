package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/papercomputeco/tether/pkg/llm"
	"github.com/papercomputeco/tether/pkg/sse"
	"github.com/papercomputeco/tether/pkg/utils"
)

// blockState accumulates one content block while it streams in.
type blockState struct {
	kind    string
	text    strings.Builder
	id      string
	name    string
	partial strings.Builder
	raw     json.RawMessage
}

// stream implements llm.Stream over an Anthropic SSE body.
type stream struct {
	ctx    context.Context
	body   io.ReadCloser
	reader *sse.Reader
	logger *slog.Logger

	id         string
	model      string
	stopReason string
	usage      *anthropicUsage
	blocks     map[int]*blockState

	final *llm.ChatResponse
}

func newStream(ctx context.Context, body io.ReadCloser, transcript io.Writer, logger *slog.Logger) *stream {
	return &stream{
		ctx:    ctx,
		body:   body,
		reader: sse.NewTeeReader(body, transcript),
		logger: logger,
		blocks: make(map[int]*blockState),
	}
}

// Next returns the next text delta, or nil, nil when the message is complete.
func (s *stream) Next() (*llm.StreamEvent, error) {
	if s.final != nil {
		return nil, nil
	}

	for {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}

		ev, err := s.reader.Next()
		if err != nil {
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("reading anthropic stream: %w", err)
		}
		if ev == nil {
			// Body ended without message_stop; assemble what arrived.
			s.finish()
			return nil, nil
		}

		delta, done, err := s.handle(ev)
		if err != nil {
			return nil, err
		}
		if done {
			s.finish()
			return nil, nil
		}
		if delta != nil {
			return delta, nil
		}
	}
}

func (s *stream) handle(ev *sse.Event) (*llm.StreamEvent, bool, error) {
	eventType := ev.Type
	if eventType == "" {
		var envelope struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal([]byte(ev.Data), &envelope)
		eventType = envelope.Type
	}

	switch eventType {
	case "message_start":
		var e messageStartEvent
		if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
			return nil, false, fmt.Errorf("decoding message_start: %w", err)
		}
		s.id = e.Message.ID
		s.model = e.Message.Model
		s.usage = e.Message.Usage

	case "content_block_start":
		var e contentBlockStartEvent
		if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
			return nil, false, fmt.Errorf("decoding content_block_start: %w", err)
		}
		var head struct {
			Type string `json:"type"`
			Text string `json:"text"`
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(e.ContentBlock, &head); err != nil {
			return nil, false, fmt.Errorf("decoding content block: %w", err)
		}
		b := &blockState{kind: head.Type, id: head.ID, name: head.Name, raw: e.ContentBlock}
		b.text.WriteString(head.Text)
		s.blocks[e.Index] = b

	case "content_block_delta":
		var e contentBlockDeltaEvent
		if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
			return nil, false, fmt.Errorf("decoding content_block_delta: %w", err)
		}
		b, ok := s.blocks[e.Index]
		if !ok {
			b = &blockState{kind: llm.BlockTypeText}
			s.blocks[e.Index] = b
		}
		switch e.Delta.Type {
		case "text_delta":
			b.text.WriteString(e.Delta.Text)
			return &llm.StreamEvent{Index: e.Index, Text: e.Delta.Text}, false, nil
		case "input_json_delta":
			b.partial.WriteString(e.Delta.PartialJSON)
		}

	case "message_delta":
		var e messageDeltaEvent
		if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
			return nil, false, fmt.Errorf("decoding message_delta: %w", err)
		}
		if e.Delta.StopReason != "" {
			s.stopReason = e.Delta.StopReason
		}
		if e.Usage != nil {
			if s.usage == nil {
				s.usage = &anthropicUsage{}
			}
			s.usage.OutputTokens = e.Usage.OutputTokens
		}

	case "message_stop":
		return nil, true, nil

	case "error":
		var e anthropicError
		if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
			return nil, false, &APIError{Type: "stream_error", Message: ev.Data}
		}
		return nil, false, &APIError{Type: e.Error.Type, Message: e.Error.Message}
	}

	// content_block_stop, ping and unknown events carry nothing to assemble.
	return nil, false, nil
}

func (s *stream) finish() {
	indexes := make([]int, 0, len(s.blocks))
	for i := range s.blocks {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	content := make(llm.Content, 0, len(indexes))
	for _, i := range indexes {
		b := s.blocks[i]
		switch b.kind {
		case llm.BlockTypeText:
			content = append(content, llm.TextBlock{Text: b.text.String()})
		case llm.BlockTypeToolUse:
			input := map[string]any{}
			if partial := strings.TrimSpace(b.partial.String()); partial != "" {
				if err := json.Unmarshal([]byte(partial), &input); err != nil {
					// The tool then runs with empty input and reports what it is missing.
					s.logger.Warn("discarding malformed streamed tool input",
						"tool", b.name,
						"tool_use_id", b.id,
						"input", utils.Truncate(partial, 200),
						"error", err,
					)
					input = map[string]any{}
				}
			}
			content = append(content, llm.ToolUseBlock{ID: b.id, Name: b.name, Input: input})
		default:
			content = append(content, llm.UnknownBlock{Type: b.kind, Raw: b.raw})
		}
	}

	s.final = &llm.ChatResponse{
		ID:    s.id,
		Model: s.model,
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: content,
		},
		StopReason: s.stopReason,
		Usage:      s.usage.toUsage(),
		CreatedAt:  time.Now(),
	}
}

// Response returns the assembled response once Next has returned nil, nil.
func (s *stream) Response() *llm.ChatResponse {
	return s.final
}

func (s *stream) Close() error {
	return s.body.Close()
}

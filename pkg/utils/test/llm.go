package testutils

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/papercomputeco/tether/pkg/llm"
)

// ErrScriptExhausted is returned when the client has no scripted response left.
var ErrScriptExhausted = errors.New("no scripted response left")

// ScriptedClient is an llm.Client that replays responses in order and records
// every request it receives.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []*llm.ChatResponse
	errs      []error
	requests  []*llm.ChatRequest
	streams   []*ScriptedStream
}

var _ llm.Client = (*ScriptedClient)(nil)

// NewScriptedClient creates a client replaying responses in order.
func NewScriptedClient(responses ...*llm.ChatResponse) *ScriptedClient {
	return &ScriptedClient{responses: responses}
}

// FailNext makes the next call return err instead of a response.
func (c *ScriptedClient) FailNext(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

// Requests returns the requests received so far.
func (c *ScriptedClient) Requests() []*llm.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.requests)
}

// Streams returns the streams handed out so far.
func (c *ScriptedClient) Streams() []*ScriptedStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.streams)
}

func (c *ScriptedClient) next(req *llm.ChatRequest) (*llm.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)

	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return nil, err
	}
	if len(c.responses) == 0 {
		return nil, ErrScriptExhausted
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

// Chat returns the next scripted response.
func (c *ScriptedClient) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.next(req)
}

// Stream returns the next scripted response as a stream of word deltas.
func (c *ScriptedClient) Stream(ctx context.Context, req *llm.ChatRequest) (llm.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := c.next(req)
	if err != nil {
		return nil, err
	}

	s := &ScriptedStream{ctx: ctx, resp: resp}
	for i, block := range resp.Message.Content {
		if tb, ok := block.(llm.TextBlock); ok {
			for _, word := range strings.SplitAfter(tb.Text, " ") {
				if word != "" {
					s.deltas = append(s.deltas, &llm.StreamEvent{Index: i, Text: word})
				}
			}
		}
	}

	c.mu.Lock()
	c.streams = append(c.streams, s)
	c.mu.Unlock()

	return s, nil
}

// ScriptedStream replays text deltas of a scripted response.
type ScriptedStream struct {
	ctx    context.Context
	resp   *llm.ChatResponse
	deltas []*llm.StreamEvent
	done   bool

	mu     sync.Mutex
	closed bool
}

// Next returns the next delta, or nil, nil after the last one.
func (s *ScriptedStream) Next() (*llm.StreamEvent, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.deltas) == 0 {
		s.done = true
		return nil, nil
	}
	ev := s.deltas[0]
	s.deltas = s.deltas[1:]
	return ev, nil
}

// Response returns the scripted response once every delta was read.
func (s *ScriptedStream) Response() *llm.ChatResponse {
	if !s.done {
		return nil
	}
	return s.resp
}

// Close marks the stream closed.
func (s *ScriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *ScriptedStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// TextResponse is an end_turn response with a single text block.
func TextResponse(text string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model:      "test-model",
		Message:    llm.NewTextMessage(llm.RoleAssistant, text),
		StopReason: llm.StopReasonEndTurn,
	}
}

// ToolUseResponse is a tool_use response requesting the given calls.
func ToolUseResponse(uses ...llm.ToolUseBlock) *llm.ChatResponse {
	content := make(llm.Content, 0, len(uses))
	for _, u := range uses {
		content = append(content, u)
	}
	return &llm.ChatResponse{
		Model:      "test-model",
		Message:    llm.Message{Role: llm.RoleAssistant, Content: content},
		StopReason: llm.StopReasonToolUse,
	}
}

// StopResponse is a text response ending with an arbitrary stop reason.
func StopResponse(stopReason, text string) *llm.ChatResponse {
	resp := TextResponse(text)
	resp.StopReason = stopReason
	return resp
}

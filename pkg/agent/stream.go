package agent

import (
	"context"
	"iter"

	"github.com/papercomputeco/tether/pkg/llm"
)

// EventType identifies a streamed turn event.
type EventType string

const (
	// EventConversation is emitted first, once the conversation is resolved.
	EventConversation EventType = "conversation"

	// EventText carries an incremental piece of assistant text.
	EventText EventType = "text"

	// EventToolCall is emitted before a requested tool runs.
	EventToolCall EventType = "tool_call"

	// EventToolResult is emitted after a tool ran.
	EventToolResult EventType = "tool_result"

	// EventDone is the last event of a successful turn and carries its result.
	EventDone EventType = "done"
)

// Event is one element of a streamed turn.
type Event struct {
	Type EventType `json:"type"`

	// Text is set for EventText.
	Text string `json:"text,omitempty"`

	// ToolCall is set for EventToolCall.
	ToolCall *llm.ToolUseBlock `json:"tool_call,omitempty"`

	// ToolResult is set for EventToolResult.
	ToolResult *llm.ToolResultBlock `json:"tool_result,omitempty"`

	// Set for EventConversation.
	ConversationID          int64 `json:"conversation_id,omitempty"`
	FellBack                bool  `json:"fell_back,omitempty"`
	RequestedConversationID int64 `json:"requested_conversation_id,omitempty"`

	// Result is set for EventDone.
	Result *TurnResult `json:"result,omitempty"`
}

// Stream executes one turn, streaming model text as it is generated.
//
// The sequence yields the conversation, text deltas and tool activity as
// they happen and ends with a single EventDone carrying the same result Run
// would return. A failed turn ends with a non-nil error instead. Breaking
// out of the loop cancels the in-flight LLM call and ends the turn; messages
// persisted up to that point are kept.
func (a *Agent) Stream(ctx context.Context, req TurnRequest) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stopped := false
		emit := func(ev Event) bool {
			if stopped {
				return false
			}
			if !yield(ev, nil) {
				stopped = true
				cancel()
				return false
			}
			return true
		}

		result, err := a.run(ctx, req, true, emit)
		if stopped {
			return
		}
		if err != nil {
			yield(Event{}, err)
			return
		}
		yield(Event{Type: EventDone, Result: result}, nil)
	}
}

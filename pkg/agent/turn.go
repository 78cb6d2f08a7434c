package agent

import "github.com/papercomputeco/tether/pkg/llm"

// Outcome is the terminal state of a turn.
type Outcome string

const (
	// OutcomeDone means the model ended its turn.
	OutcomeDone Outcome = "done"

	// OutcomeAborted means the model stopped for any reason other than
	// ending its turn or requesting tools. Nothing after the user message
	// and earlier model turns is persisted.
	OutcomeAborted Outcome = "aborted"

	// OutcomeMaxIterations means the iteration bound was reached while the
	// model kept requesting tools. The conversation stays usable.
	OutcomeMaxIterations Outcome = "max_iterations"

	// outcomeError labels turns that failed with an error in metrics and
	// events.
	outcomeError Outcome = "error"
)

// TurnRequest is the input of one turn.
type TurnRequest struct {
	// Message is the user's message text.
	Message string `json:"message"`

	// ConversationID continues an existing conversation. Zero starts a new
	// one.
	ConversationID int64 `json:"conversation_id,omitempty"`

	// UserID defaults to the agent's default user.
	UserID string `json:"user_id,omitempty"`

	// System replaces the agent's base instructions for this turn.
	System string `json:"system,omitempty"`

	// Model overrides the agent's model for this turn.
	Model string `json:"model,omitempty"`
}

// TurnResult describes a finished turn.
type TurnResult struct {
	ConversationID int64  `json:"conversation_id"`
	UserID         string `json:"user_id"`

	// FellBack is set when the requested conversation did not exist or
	// belonged to another user and a new conversation was created instead.
	FellBack                bool  `json:"fell_back"`
	RequestedConversationID int64 `json:"requested_conversation_id,omitempty"`

	Outcome    Outcome `json:"outcome"`
	StopReason string  `json:"stop_reason,omitempty"`
	Iterations int     `json:"iterations"`
	ToolCalls  int     `json:"tool_calls"`

	// Reply is the text of the last assistant message of the turn.
	Reply string `json:"reply"`

	MemoriesSaved int `json:"memories_saved"`

	// Messages are the messages appended to the conversation by this turn,
	// starting with the user message.
	Messages []llm.Message `json:"messages"`
}

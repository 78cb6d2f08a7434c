package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after an agent turn stops.
	EventTypeTurnCompleted = "tether.turn.completed"
)

// TurnCompletedEvent is a transport-neutral event payload for a finished turn.
type TurnCompletedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	UserID         string `json:"user_id"`
	ConversationID int64  `json:"conversation_id"`
	FellBack       bool   `json:"fell_back,omitempty"`
	Model          string `json:"model"`

	Outcome       string `json:"outcome"`
	StopReason    string `json:"stop_reason,omitempty"`
	Iterations    int    `json:"iterations"`
	ToolCalls     int    `json:"tool_calls"`
	MemoriesSaved int    `json:"memories_saved"`

	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// NewTurnCompletedEvent returns an event with its envelope fields set.
func NewTurnCompletedEvent(now time.Time) *TurnCompletedEvent {
	return &TurnCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     now.UTC(),
	}
}

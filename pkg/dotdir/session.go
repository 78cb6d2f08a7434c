package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// SessionState is the persisted chat session state.
type SessionState struct {
	// LastConversations maps a user id to the conversation "tether chat"
	// resumes for that user.
	LastConversations map[string]int64 `json:"last_conversations"`

	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// LastConversation returns the remembered conversation of the user, or 0.
func (s *SessionState) LastConversation(userID string) int64 {
	if s == nil {
		return 0
	}
	return s.LastConversations[userID]
}

// LoadSession loads the session state from a target .tether/session.json.
// A missing file yields an empty state.
// If overrideDir is non-empty, it is used instead of the default location.
func (m *Manager) LoadSession(overrideDir string) (*SessionState, error) {
	path, err := m.SessionPath(overrideDir)
	if err != nil {
		return nil, err
	}

	state := &SessionState{LastConversations: map[string]int64{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing session state: %w", err)
	}
	if state.LastConversations == nil {
		state.LastConversations = map[string]int64{}
	}

	return state, nil
}

// SaveLastConversation remembers conversationID as the user's last conversation.
func (m *Manager) SaveLastConversation(userID string, conversationID int64, overrideDir string) error {
	if userID == "" {
		return errors.New("user id is required")
	}

	state, err := m.LoadSession(overrideDir)
	if err != nil {
		return err
	}

	state.LastConversations[userID] = conversationID
	return m.saveSession(state, overrideDir)
}

// ClearLastConversation forgets the user's last conversation so the next
// chat starts a new one. Clearing an unknown user is not an error.
func (m *Manager) ClearLastConversation(userID string, overrideDir string) error {
	state, err := m.LoadSession(overrideDir)
	if err != nil {
		return err
	}

	if _, ok := state.LastConversations[userID]; !ok {
		return nil
	}

	delete(state.LastConversations, userID)
	return m.saveSession(state, overrideDir)
}

func (m *Manager) saveSession(state *SessionState, overrideDir string) error {
	path, err := m.SessionPath(overrideDir)
	if err != nil {
		return err
	}

	state.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}

	return nil
}

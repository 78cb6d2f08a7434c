// Package storage defines the durable stores behind the agent: an
// append-only message log per conversation and a user-scoped set of memory
// snippets. Backends live in sub-packages.
package storage

import (
	"context"
	"time"

	"github.com/papercomputeco/tether/pkg/llm"
)

// DefaultUserID owns conversations and memories when no user is given.
const DefaultUserID = "default"

// DefaultConfidence is the confidence of a memory saved without one.
const DefaultConfidence = 1.0

// Conversation is a persisted, user-owned message log.
type Conversation struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one immutable entry of a conversation.
type Message struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversation_id"`
	Role           string      `json:"role"`
	Content        llm.Content `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`
}

// LLMMessage returns the message in the shape replayed to the model.
func (m *Message) LLMMessage() llm.Message {
	return llm.Message{Role: m.Role, Content: m.Content}
}

// Memory is a durable fact snippet about a user.
type Memory struct {
	ID                   int64     `json:"id"`
	UserID               string    `json:"user_id"`
	Content              string    `json:"content"`
	Confidence           float64   `json:"confidence"`
	SourceConversationID *int64    `json:"source_conversation_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// SaveMemoryInput is the argument of MemoryStore.SaveMemory.
type SaveMemoryInput struct {
	UserID  string
	Content string

	// SourceConversationID records which conversation the fact came from.
	SourceConversationID *int64

	// Confidence defaults to DefaultConfidence when zero.
	Confidence float64
}

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	// CreateConversation assigns a new identifier. An empty title is
	// replaced by DefaultTitle of the creation time.
	CreateConversation(ctx context.Context, userID, title string) (*Conversation, error)

	// GetConversation returns ErrNotFound for a missing identifier.
	GetConversation(ctx context.Context, id int64) (*Conversation, error)

	// ListConversations returns every conversation, most recently updated first.
	ListConversations(ctx context.Context) ([]*Conversation, error)

	// ListConversationsByUser returns the user's conversations, most recently
	// updated first.
	ListConversationsByUser(ctx context.Context, userID string) ([]*Conversation, error)

	// AddMessage appends a message and bumps the conversation's UpdatedAt.
	// It returns ErrNotFound when the conversation does not exist.
	AddMessage(ctx context.Context, conversationID int64, role string, content llm.Content) (*Message, error)

	// GetMessages returns the conversation's messages in insertion order.
	GetMessages(ctx context.Context, conversationID int64) ([]*Message, error)
}

// MemoryStore persists user-scoped memories.
type MemoryStore interface {
	// SaveMemory inserts a memory, or for an existing (user, content) pair
	// keeps its identifier, raises confidence to the max of old and new and
	// refreshes UpdatedAt. Content is compared after trimming surrounding
	// whitespace. Blank content returns ErrEmptyMemory.
	SaveMemory(ctx context.Context, in SaveMemoryInput) (int64, error)

	// ListMemories returns the user's memories, most recently updated first.
	ListMemories(ctx context.Context, userID string) ([]*Memory, error)

	// RecentMemories is ListMemories capped at limit.
	RecentMemories(ctx context.Context, userID string, limit int) ([]*Memory, error)

	// ClearMemories deletes every memory of the user and returns how many
	// were removed.
	ClearMemories(ctx context.Context, userID string) (int, error)
}

// Driver is a backend implementing both stores.
type Driver interface {
	ConversationStore
	MemoryStore

	// Close closes the store and releases any resources.
	Close() error
}

// DefaultTitle is the title given to conversations created without one.
func DefaultTitle(t time.Time) string {
	return "Conversation " + t.Format("2006-01-02 15:04")
}

// Package inmemory is a storage.Driver kept entirely in process memory.
// It is used by tests and by ephemeral runs.
package inmemory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/tether/pkg/llm"
	"github.com/papercomputeco/tether/pkg/storage"
)

type memoryKey struct {
	userID  string
	content string
}

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex guarding every map below
	mu sync.RWMutex

	conversations map[int64]*storage.Conversation
	messages      map[int64][]*storage.Message
	memories      map[int64]*storage.Memory

	// memoryIndex enforces uniqueness of (user, content)
	memoryIndex map[memoryKey]int64

	nextConversation int64
	nextMessage      int64
	nextMemory       int64

	// Now is the clock used for timestamps. Defaults to time.Now in UTC.
	Now func() time.Time
}

var _ storage.Driver = (*Driver)(nil)

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		conversations: make(map[int64]*storage.Conversation),
		messages:      make(map[int64][]*storage.Message),
		memories:      make(map[int64]*storage.Memory),
		memoryIndex:   make(map[memoryKey]int64),
	}
}

func (s *Driver) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateConversation stores a new conversation owned by userID.
func (s *Driver) CreateConversation(_ context.Context, userID, title string) (*storage.Conversation, error) {
	if userID == "" {
		userID = storage.DefaultUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if strings.TrimSpace(title) == "" {
		title = storage.DefaultTitle(now)
	}

	s.nextConversation++
	c := &storage.Conversation{
		ID:        s.nextConversation,
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[c.ID] = c

	copied := *c
	return &copied, nil
}

// GetConversation retrieves a conversation by id.
func (s *Driver) GetConversation(_ context.Context, id int64) (*storage.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, storage.ErrNotFound{Kind: "conversation", ID: id}
	}

	copied := *c
	return &copied, nil
}

// ListConversations returns all conversations, most recently updated first.
func (s *Driver) ListConversations(_ context.Context) ([]*storage.Conversation, error) {
	return s.listConversations(func(*storage.Conversation) bool { return true }), nil
}

// ListConversationsByUser returns the user's conversations, most recently
// updated first.
func (s *Driver) ListConversationsByUser(_ context.Context, userID string) ([]*storage.Conversation, error) {
	return s.listConversations(func(c *storage.Conversation) bool { return c.UserID == userID }), nil
}

func (s *Driver) listConversations(keep func(*storage.Conversation) bool) []*storage.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Conversation
	for _, c := range s.conversations {
		if keep(c) {
			copied := *c
			out = append(out, &copied)
		}
	}
	slices.SortFunc(out, func(a, b *storage.Conversation) int {
		if cmp := b.UpdatedAt.Compare(a.UpdatedAt); cmp != 0 {
			return cmp
		}
		return int(b.ID - a.ID)
	})
	return out
}

// AddMessage appends a message to a conversation and bumps its UpdatedAt.
func (s *Driver) AddMessage(_ context.Context, conversationID int64, role string, content llm.Content) (*storage.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return nil, storage.ErrNotFound{Kind: "conversation", ID: conversationID}
	}

	now := s.now()
	s.nextMessage++
	m := &storage.Message{
		ID:             s.nextMessage,
		ConversationID: conversationID,
		Role:           role,
		Content:        slices.Clone(content),
		CreatedAt:      now,
	}
	s.messages[conversationID] = append(s.messages[conversationID], m)
	c.UpdatedAt = now

	copied := *m
	return &copied, nil
}

// GetMessages returns a conversation's messages in insertion order.
func (s *Driver) GetMessages(_ context.Context, conversationID int64) ([]*storage.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.messages[conversationID]
	out := make([]*storage.Message, 0, len(stored))
	for _, m := range stored {
		copied := *m
		copied.Content = slices.Clone(m.Content)
		out = append(out, &copied)
	}
	return out, nil
}

// SaveMemory inserts a memory, or refreshes the existing one with the same
// user and content.
func (s *Driver) SaveMemory(_ context.Context, in storage.SaveMemoryInput) (int64, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return 0, storage.ErrEmptyMemory
	}
	userID := in.UserID
	if userID == "" {
		userID = storage.DefaultUserID
	}
	confidence := in.Confidence
	if confidence == 0 {
		confidence = storage.DefaultConfidence
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := memoryKey{userID: userID, content: content}

	if id, ok := s.memoryIndex[key]; ok {
		m := s.memories[id]
		m.Confidence = max(m.Confidence, confidence)
		m.UpdatedAt = now
		return id, nil
	}

	s.nextMemory++
	m := &storage.Memory{
		ID:         s.nextMemory,
		UserID:     userID,
		Content:    content,
		Confidence: confidence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.SourceConversationID != nil {
		source := *in.SourceConversationID
		m.SourceConversationID = &source
	}
	s.memories[m.ID] = m
	s.memoryIndex[key] = m.ID

	return m.ID, nil
}

// ListMemories returns all of the user's memories, most recently updated first.
func (s *Driver) ListMemories(ctx context.Context, userID string) ([]*storage.Memory, error) {
	return s.RecentMemories(ctx, userID, 0)
}

// RecentMemories returns at most limit of the user's memories, most recently
// updated first. A limit of zero or less means no limit.
func (s *Driver) RecentMemories(_ context.Context, userID string, limit int) ([]*storage.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Memory
	for _, m := range s.memories {
		if m.UserID == userID {
			copied := *m
			out = append(out, &copied)
		}
	}
	slices.SortFunc(out, func(a, b *storage.Memory) int {
		if cmp := b.UpdatedAt.Compare(a.UpdatedAt); cmp != 0 {
			return cmp
		}
		return int(b.ID - a.ID)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ClearMemories deletes all of the user's memories.
func (s *Driver) ClearMemories(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, m := range s.memories {
		if m.UserID != userID {
			continue
		}
		delete(s.memoryIndex, memoryKey{userID: m.UserID, content: m.Content})
		delete(s.memories, id)
		removed++
	}
	return removed, nil
}

// Close is a no-op for the in-memory store.
func (s *Driver) Close() error {
	return nil
}

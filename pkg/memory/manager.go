package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/tether/pkg/metrics"
	"github.com/papercomputeco/tether/pkg/storage"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Store storage.MemoryStore

	// Metrics is optional.
	Metrics *metrics.Metrics

	Logger *slog.Logger
}

// Manager ties extraction and retrieval to a memory store.
type Manager struct {
	store   storage.MemoryStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewManager creates a Manager.
func NewManager(c ManagerConfig) (*Manager, error) {
	if c.Store == nil {
		return nil, ErrNotConfigured
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	return &Manager{
		store:   c.Store,
		metrics: c.Metrics,
		logger:  c.Logger,
	}, nil
}

// Ingest extracts candidate memories from a user message and saves each one
// for the user. It returns how many were saved before any error.
func (m *Manager) Ingest(ctx context.Context, userID string, conversationID int64, message string) (int, error) {
	candidates := Extract(message)
	if len(candidates) == 0 {
		return 0, nil
	}

	var source *int64
	if conversationID > 0 {
		source = &conversationID
	}

	saved := 0
	for _, content := range candidates {
		id, err := m.store.SaveMemory(ctx, storage.SaveMemoryInput{
			UserID:               userID,
			Content:              content,
			SourceConversationID: source,
			Confidence:           storage.DefaultConfidence,
		})
		if err != nil {
			m.metrics.ObserveMemoriesSaved(saved)
			return saved, fmt.Errorf("saving memory: %w", err)
		}
		saved++

		m.logger.Debug("saved memory",
			"user_id", userID,
			"memory_id", id,
			"conversation_id", conversationID,
		)
	}

	m.metrics.ObserveMemoriesSaved(saved)
	return saved, nil
}

// Recall returns the user's memories most relevant to query under budget.
func (m *Manager) Recall(ctx context.Context, userID, query string, budget Budget) ([]string, error) {
	recent, err := m.store.RecentMemories(ctx, userID, RecallWindow)
	if err != nil {
		return nil, fmt.Errorf("loading memories: %w", err)
	}

	selected := Rank(recent, query, budget)
	m.metrics.ObserveMemoriesRecalled(len(selected))

	m.logger.Debug("recalled memories",
		"user_id", userID,
		"considered", len(recent),
		"selected", len(selected),
		"max_items", budget.MaxItems,
		"max_chars", budget.MaxChars,
	)

	return selected, nil
}

// List returns every memory of the user, most recently updated first.
func (m *Manager) List(ctx context.Context, userID string) ([]*storage.Memory, error) {
	return m.store.ListMemories(ctx, userID)
}

// Save stores one memory as given, bypassing extraction.
func (m *Manager) Save(ctx context.Context, in storage.SaveMemoryInput) (int64, error) {
	id, err := m.store.SaveMemory(ctx, in)
	if err != nil {
		return 0, err
	}
	m.metrics.ObserveMemoriesSaved(1)
	return id, nil
}

// Clear deletes every memory of the user.
func (m *Manager) Clear(ctx context.Context, userID string) (int, error) {
	return m.store.ClearMemories(ctx, userID)
}

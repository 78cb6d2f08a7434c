// Package entdriver implements the stores on top of ent's SQL dialect layer.
// It is database-agnostic and is embedded by the sqlite and postgres drivers.
package entdriver

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/tether/pkg/llm"
	"github.com/papercomputeco/tether/pkg/storage"
)

const (
	conversationsTable = "conversations"
	messagesTable      = "messages"
	memoriesTable      = "memories"
)

var (
	conversationColumns = []string{"id", "user_id", "title", "created_at", "updated_at"}
	messageColumns      = []string{"id", "conversation_id", "role", "content", "created_at"}
	memoryColumns       = []string{"id", "user_id", "content", "confidence", "source_conversation_id", "created_at", "updated_at"}
)

// execQuerier is the part of dialect.Driver and dialect.Tx the queries need.
type execQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// EntDriver provides storage operations using an ent SQL driver.
type EntDriver struct {
	Driver *entsql.Driver

	// Now is the clock used for timestamps. Defaults to time.Now in UTC.
	Now func() time.Time
}

var _ storage.Driver = (*EntDriver)(nil)

func (ed *EntDriver) now() time.Time {
	if ed.Now != nil {
		return ed.Now().UTC()
	}
	return time.Now().UTC()
}

func (ed *EntDriver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(ed.Driver.Dialect())
}

// insert runs an INSERT and returns the new row's id.
func (ed *EntDriver) insert(ctx context.Context, q execQuerier, ib *entsql.InsertBuilder) (int64, error) {
	if ed.Driver.Dialect() == dialect.Postgres {
		query, args := ib.Returning("id").Query()
		rows := &entsql.Rows{}
		if err := q.Query(ctx, query, args, rows); err != nil {
			return 0, err
		}
		defer rows.Close()

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return 0, err
			}
			return 0, errors.New("insert returned no id")
		}
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		return id, rows.Err()
	}

	query, args := ib.Query()
	var res stdsql.Result
	if err := q.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (ed *EntDriver) exec(ctx context.Context, q execQuerier, query string, args []any) (int64, error) {
	var res stdsql.Result
	if err := q.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreateConversation stores a new conversation owned by userID.
func (ed *EntDriver) CreateConversation(ctx context.Context, userID, title string) (*storage.Conversation, error) {
	if userID == "" {
		userID = storage.DefaultUserID
	}
	now := ed.now()
	if strings.TrimSpace(title) == "" {
		title = storage.DefaultTitle(now)
	}

	ib := ed.builder().Insert(conversationsTable).
		Columns("user_id", "title", "created_at", "updated_at").
		Values(userID, title, now, now)

	id, err := ed.insert(ctx, ed.Driver, ib)
	if err != nil {
		return nil, fmt.Errorf("could not create conversation: %w", err)
	}

	return &storage.Conversation{
		ID:        id,
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetConversation retrieves a conversation by id.
func (ed *EntDriver) GetConversation(ctx context.Context, id int64) (*storage.Conversation, error) {
	return ed.getConversation(ctx, ed.Driver, id)
}

func (ed *EntDriver) getConversation(ctx context.Context, q execQuerier, id int64) (*storage.Conversation, error) {
	b := ed.builder()
	query, args := b.Select(conversationColumns...).
		From(b.Table(conversationsTable)).
		Where(entsql.EQ("id", id)).
		Query()

	convs, err := ed.queryConversations(ctx, q, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if len(convs) == 0 {
		return nil, storage.ErrNotFound{Kind: "conversation", ID: id}
	}
	return convs[0], nil
}

// ListConversations returns all conversations, most recently updated first.
func (ed *EntDriver) ListConversations(ctx context.Context) ([]*storage.Conversation, error) {
	b := ed.builder()
	query, args := b.Select(conversationColumns...).
		From(b.Table(conversationsTable)).
		OrderBy(entsql.Desc("updated_at"), entsql.Desc("id")).
		Query()

	convs, err := ed.queryConversations(ctx, ed.Driver, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// ListConversationsByUser returns the user's conversations, most recently
// updated first.
func (ed *EntDriver) ListConversationsByUser(ctx context.Context, userID string) ([]*storage.Conversation, error) {
	b := ed.builder()
	query, args := b.Select(conversationColumns...).
		From(b.Table(conversationsTable)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("updated_at"), entsql.Desc("id")).
		Query()

	convs, err := ed.queryConversations(ctx, ed.Driver, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

func (ed *EntDriver) queryConversations(ctx context.Context, q execQuerier, query string, args []any) ([]*storage.Conversation, error) {
	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*storage.Conversation
	for rows.Next() {
		c := &storage.Conversation{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// AddMessage appends a message to a conversation and bumps its updated_at
// in a single transaction.
func (ed *EntDriver) AddMessage(ctx context.Context, conversationID int64, role string, content llm.Content) (*storage.Message, error) {
	encoded, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content: %w", err)
	}

	tx, err := ed.Driver.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	msg, err := ed.addMessage(ctx, tx, conversationID, role, content, string(encoded))
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}
	return msg, nil
}

func (ed *EntDriver) addMessage(ctx context.Context, tx dialect.Tx, conversationID int64, role string, content llm.Content, encoded string) (*storage.Message, error) {
	if _, err := ed.getConversation(ctx, tx, conversationID); err != nil {
		return nil, err
	}

	now := ed.now()
	ib := ed.builder().Insert(messagesTable).
		Columns("conversation_id", "role", "content", "created_at").
		Values(conversationID, role, encoded, now)

	id, err := ed.insert(ctx, tx, ib)
	if err != nil {
		return nil, fmt.Errorf("could not insert message: %w", err)
	}

	query, args := ed.builder().Update(conversationsTable).
		Set("updated_at", now).
		Where(entsql.EQ("id", conversationID)).
		Query()
	if _, err := ed.exec(ctx, tx, query, args); err != nil {
		return nil, fmt.Errorf("could not bump conversation: %w", err)
	}

	return &storage.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	}, nil
}

// GetMessages returns a conversation's messages in insertion order.
func (ed *EntDriver) GetMessages(ctx context.Context, conversationID int64) ([]*storage.Message, error) {
	b := ed.builder()
	query, args := b.Select(messageColumns...).
		From(b.Table(messagesTable)).
		Where(entsql.EQ("conversation_id", conversationID)).
		OrderBy(entsql.Asc("id")).
		Query()

	rows := &entsql.Rows{}
	if err := ed.Driver.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []*storage.Message
	for rows.Next() {
		var (
			m       = &storage.Message{}
			content string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Content = llm.ParseContent(content)
		m.CreatedAt = m.CreatedAt.UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return msgs, nil
}

// SaveMemory inserts a memory, or refreshes the existing row with the same
// user and content.
func (ed *EntDriver) SaveMemory(ctx context.Context, in storage.SaveMemoryInput) (int64, error) {
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

	tx, err := ed.Driver.Tx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	id, err := ed.saveMemory(ctx, tx, userID, content, confidence, in.SourceConversationID)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit memory: %w", err)
	}
	return id, nil
}

func (ed *EntDriver) saveMemory(ctx context.Context, tx dialect.Tx, userID, content string, confidence float64, source *int64) (int64, error) {
	b := ed.builder()
	query, args := b.Select("id", "confidence").
		From(b.Table(memoriesTable)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("content", content))).
		Query()

	rows := &entsql.Rows{}
	if err := tx.Query(ctx, query, args, rows); err != nil {
		return 0, fmt.Errorf("failed to look up memory: %w", err)
	}

	var (
		id       int64
		existing float64
		found    bool
	)
	if rows.Next() {
		if err := rows.Scan(&id, &existing); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan memory: %w", err)
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("failed to look up memory: %w", err)
	}
	rows.Close()

	now := ed.now()

	if found {
		query, args := ed.builder().Update(memoriesTable).
			Set("confidence", max(existing, confidence)).
			Set("updated_at", now).
			Where(entsql.EQ("id", id)).
			Query()
		if _, err := ed.exec(ctx, tx, query, args); err != nil {
			return 0, fmt.Errorf("could not update memory: %w", err)
		}
		return id, nil
	}

	var sourceID any
	if source != nil {
		sourceID = *source
	}
	ib := ed.builder().Insert(memoriesTable).
		Columns("user_id", "content", "confidence", "source_conversation_id", "created_at", "updated_at").
		Values(userID, content, confidence, sourceID, now, now)

	id, err := ed.insert(ctx, tx, ib)
	if err != nil {
		return 0, fmt.Errorf("could not insert memory: %w", err)
	}
	return id, nil
}

// ListMemories returns all of the user's memories, most recently updated first.
func (ed *EntDriver) ListMemories(ctx context.Context, userID string) ([]*storage.Memory, error) {
	return ed.RecentMemories(ctx, userID, 0)
}

// RecentMemories returns at most limit of the user's memories, most recently
// updated first. A limit of zero or less means no limit.
func (ed *EntDriver) RecentMemories(ctx context.Context, userID string, limit int) ([]*storage.Memory, error) {
	b := ed.builder()
	sel := b.Select(memoryColumns...).
		From(b.Table(memoriesTable)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("updated_at"), entsql.Desc("id"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := ed.Driver.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var mems []*storage.Memory
	for rows.Next() {
		var (
			m      = &storage.Memory{}
			source stdsql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &m.Confidence, &source, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		if source.Valid {
			id := source.Int64
			m.SourceConversationID = &id
		}
		m.CreatedAt = m.CreatedAt.UTC()
		m.UpdatedAt = m.UpdatedAt.UTC()
		mems = append(mems, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read memories: %w", err)
	}
	return mems, nil
}

// ClearMemories deletes all of the user's memories.
func (ed *EntDriver) ClearMemories(ctx context.Context, userID string) (int, error) {
	query, args := ed.builder().Delete(memoriesTable).
		Where(entsql.EQ("user_id", userID)).
		Query()

	n, err := ed.exec(ctx, ed.Driver, query, args)
	if err != nil {
		return 0, fmt.Errorf("failed to clear memories: %w", err)
	}
	return int(n), nil
}

// Close closes the database connection.
func (ed *EntDriver) Close() error {
	return ed.Driver.Close()
}

// Package migrate declares the relational tables of the SQL backends and
// applies them with ent's auto-migration. Only additive changes are made:
// new tables, columns and indexes.
package migrate

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// textSize makes string columns unbounded text on every dialect.
const textSize = 2147483647

var (
	// ConversationsColumns holds the columns for the "conversations" table.
	ConversationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		// user_id defaults so rows created before users existed are owned
		// by the default user once the column is added.
		{Name: "user_id", Type: field.TypeString, Default: "default"},
		{Name: "title", Type: field.TypeString, Size: textSize},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// ConversationsTable holds the schema information for the "conversations" table.
	ConversationsTable = &schema.Table{
		Name:       "conversations",
		Columns:    ConversationsColumns,
		PrimaryKey: []*schema.Column{ConversationsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "conversation_user_id_updated_at",
				Unique:  false,
				Columns: []*schema.Column{ConversationsColumns[1], ConversationsColumns[4]},
			},
		},
	}

	// MessagesColumns holds the columns for the "messages" table.
	MessagesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "role", Type: field.TypeString},
		// content is the JSON encoding of llm.Content.
		{Name: "content", Type: field.TypeString, Size: textSize},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "conversation_id", Type: field.TypeInt64},
	}
	// MessagesTable holds the schema information for the "messages" table.
	MessagesTable = &schema.Table{
		Name:       "messages",
		Columns:    MessagesColumns,
		PrimaryKey: []*schema.Column{MessagesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "messages_conversations_messages",
				Columns:    []*schema.Column{MessagesColumns[4]},
				RefColumns: []*schema.Column{ConversationsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "message_conversation_id",
				Unique:  false,
				Columns: []*schema.Column{MessagesColumns[4]},
			},
		},
	}

	// MemoriesColumns holds the columns for the "memories" table.
	MemoriesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "content", Type: field.TypeString, Size: textSize},
		{Name: "confidence", Type: field.TypeFloat64, Default: 1.0},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "source_conversation_id", Type: field.TypeInt64, Nullable: true},
	}
	// MemoriesTable holds the schema information for the "memories" table.
	MemoriesTable = &schema.Table{
		Name:       "memories",
		Columns:    MemoriesColumns,
		PrimaryKey: []*schema.Column{MemoriesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "memories_conversations_memories",
				Columns:    []*schema.Column{MemoriesColumns[6]},
				RefColumns: []*schema.Column{ConversationsColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "memory_user_id_content",
				Unique:  true,
				Columns: []*schema.Column{MemoriesColumns[1], MemoriesColumns[2]},
			},
			{
				Name:    "memory_user_id_updated_at",
				Unique:  false,
				Columns: []*schema.Column{MemoriesColumns[1], MemoriesColumns[5]},
			},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		ConversationsTable,
		MessagesTable,
		MemoriesTable,
	}
)

func init() {
	MessagesTable.ForeignKeys[0].RefTable = ConversationsTable
	MemoriesTable.ForeignKeys[0].RefTable = ConversationsTable
}

// Create runs the auto-migration for tables, defaulting to Tables.
func Create(ctx context.Context, drv dialect.Driver, tables ...*schema.Table) error {
	if len(tables) == 0 {
		tables = Tables
	}

	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return fmt.Errorf("running migration: %w", err)
	}
	return nil
}

package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/tether/pkg/storage"
)

var (
	conversationListToolName    = "conversation_list"
	conversationListDescription = "List tether conversations, most recently updated first. Pass a user_id to list only that user's conversations."
)

// ConversationListInput represents the input arguments for the MCP
// conversation_list tool.
type ConversationListInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"only list conversations of this user"`
}

type ConversationListOutput struct {
	Conversations []*storage.Conversation `json:"conversations"`
}

func (s *Server) handleConversationList(ctx context.Context, _ *mcp.CallToolRequest, input ConversationListInput) (*mcp.CallToolResult, ConversationListOutput, error) {
	var (
		convs []*storage.Conversation
		err   error
	)
	if input.UserID != "" {
		convs, err = s.config.Store.ListConversationsByUser(ctx, input.UserID)
	} else {
		convs, err = s.config.Store.ListConversations(ctx)
	}
	if err != nil {
		return errorResult(fmt.Sprintf("Listing conversations failed: %v", err)), ConversationListOutput{}, nil
	}
	if convs == nil {
		convs = []*storage.Conversation{}
	}

	output := ConversationListOutput{Conversations: convs}
	return jsonResult(output), output, nil
}

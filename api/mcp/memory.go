package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/tether/pkg/memory"
	"github.com/papercomputeco/tether/pkg/storage"
)

var (
	memoryRecallToolName    = "memory_recall"
	memoryRecallDescription = "Recall what tether remembers about a user that is relevant to a query. Returns the memories that would be injected into the system prompt for that message, best match first."

	memoryListToolName    = "memory_list"
	memoryListDescription = "List every memory stored for a user, most recently updated first."

	memorySaveToolName    = "memory_save"
	memorySaveDescription = "Store a durable fact about a user. Saving a fact that already exists keeps one copy and raises its confidence."
)

// MemoryRecallInput represents the input arguments for the MCP memory_recall tool.
type MemoryRecallInput struct {
	UserID string `json:"user_id" jsonschema:"the user whose memories to search"`
	Query  string `json:"query" jsonschema:"the message to find relevant memories for"`
}

// MemoryRecallOutput represents the structured output of a memory recall.
type MemoryRecallOutput struct {
	Budget   memory.Budget `json:"budget"`
	Memories []string      `json:"memories"`
}

// MemoryListInput represents the input arguments for the MCP memory_list tool.
type MemoryListInput struct {
	UserID string `json:"user_id" jsonschema:"the user whose memories to list"`
}

type MemoryListOutput struct {
	Memories []*storage.Memory `json:"memories"`
}

// MemorySaveInput represents the input arguments for the MCP memory_save tool.
type MemorySaveInput struct {
	UserID     string  `json:"user_id" jsonschema:"the user the fact is about"`
	Content    string  `json:"content" jsonschema:"the fact to remember"`
	Confidence float64 `json:"confidence,omitempty" jsonschema:"confidence between 0 and 1, defaults to 1"`
}

type MemorySaveOutput struct {
	ID int64 `json:"id"`
}

// handleMemoryRecall processes a memory recall request via MCP.
func (s *Server) handleMemoryRecall(ctx context.Context, _ *mcp.CallToolRequest, input MemoryRecallInput) (*mcp.CallToolResult, MemoryRecallOutput, error) {
	if input.UserID == "" {
		return errorResult("user_id is required"), MemoryRecallOutput{}, nil
	}
	if strings.TrimSpace(input.Query) == "" {
		return errorResult("query is required"), MemoryRecallOutput{}, nil
	}

	budget := memory.BudgetFor(input.Query)
	recalled, err := s.config.Memory.Recall(ctx, input.UserID, input.Query, budget)
	if err != nil {
		return errorResult(fmt.Sprintf("Memory recall failed: %v", err)), MemoryRecallOutput{}, nil
	}
	if recalled == nil {
		recalled = []string{}
	}

	output := MemoryRecallOutput{Budget: budget, Memories: recalled}
	return jsonResult(output), output, nil
}

func (s *Server) handleMemoryList(ctx context.Context, _ *mcp.CallToolRequest, input MemoryListInput) (*mcp.CallToolResult, MemoryListOutput, error) {
	if input.UserID == "" {
		return errorResult("user_id is required"), MemoryListOutput{}, nil
	}

	mems, err := s.config.Memory.List(ctx, input.UserID)
	if err != nil {
		return errorResult(fmt.Sprintf("Listing memories failed: %v", err)), MemoryListOutput{}, nil
	}
	if mems == nil {
		mems = []*storage.Memory{}
	}

	output := MemoryListOutput{Memories: mems}
	return jsonResult(output), output, nil
}

func (s *Server) handleMemorySave(ctx context.Context, _ *mcp.CallToolRequest, input MemorySaveInput) (*mcp.CallToolResult, MemorySaveOutput, error) {
	if input.UserID == "" {
		return errorResult("user_id is required"), MemorySaveOutput{}, nil
	}
	if input.Confidence < 0 || input.Confidence > 1 {
		return errorResult("confidence must be between 0 and 1"), MemorySaveOutput{}, nil
	}

	id, err := s.config.Memory.Save(ctx, storage.SaveMemoryInput{
		UserID:     input.UserID,
		Content:    input.Content,
		Confidence: input.Confidence,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("Saving memory failed: %v", err)), MemorySaveOutput{}, nil
	}

	s.logger.Info("memory saved via mcp", "user_id", input.UserID, "memory_id", id)

	output := MemorySaveOutput{ID: id}
	return jsonResult(output), output, nil
}

// jsonResult renders a tool output as its text content.
func jsonResult(v any) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}
}

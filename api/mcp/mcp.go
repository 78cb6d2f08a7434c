// Package mcp provides an MCP (Model Context Protocol) server that exposes
// tether's memories and conversations to other agents.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/tether/pkg/memory"
	"github.com/papercomputeco/tether/pkg/storage"
	"github.com/papercomputeco/tether/pkg/utils"
)

type Config struct {
	// Store lists conversations for the conversation_list tool
	Store storage.ConversationStore

	// Memory backs the memory tools (optional, the memory tools are not
	// registered without it)
	Memory *memory.Manager

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	logger    *slog.Logger
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the memory and conversation tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
		logger: c.Logger,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "tether",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Store == nil {
			return nil, errors.New("conversation store is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        conversationListToolName,
			Description: conversationListDescription,
		}, s.handleConversationList)

		if c.Memory != nil {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        memoryRecallToolName,
				Description: memoryRecallDescription,
			}, s.handleMemoryRecall)
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        memoryListToolName,
				Description: memoryListDescription,
			}, s.handleMemoryList)
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        memorySaveToolName,
				Description: memorySaveDescription,
			}, s.handleMemorySave)
		}
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

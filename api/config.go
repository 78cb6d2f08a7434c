// Package api provides the HTTP API server for running turns and inspecting
// conversations and memories.
package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/papercomputeco/tether/pkg/agent"
	"github.com/papercomputeco/tether/pkg/memory"
	"github.com/papercomputeco/tether/pkg/storage"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8082")
	ListenAddr string

	// Agent runs turns. Required.
	Agent *agent.Agent

	// Store backs the conversation endpoints. Required.
	Store storage.ConversationStore

	// Memory backs the memory endpoints. Nil makes them answer 503.
	Memory *memory.Manager

	// Gatherer enables GET /metrics when set.
	Gatherer prometheus.Gatherer

	// MCPHandler is mounted at /mcp when set.
	MCPHandler http.Handler

	Logger *slog.Logger
}

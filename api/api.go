package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papercomputeco/tether/pkg/llm"
)

// Server is the API server for running turns and querying tether state.
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The agent and store are injected to share them with the rest of the
// runtime.
func NewServer(config Config) (*Server, error) {
	if config.Agent == nil {
		return nil, errors.New("agent is required")
	}
	if config.Store == nil {
		return nil, errors.New("conversation store is required")
	}
	if config.Logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		config: config,
		logger: config.Logger,
		app:    app,
	}

	app.Use(s.requestLogger)

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Post("/turns", s.handleTurn)
	v1.Get("/conversations", s.handleListConversations)
	v1.Get("/conversations/:id", s.handleGetConversation)
	v1.Get("/users/:user/memories", s.handleListMemories)
	v1.Post("/users/:user/memories", s.handleSaveMemory)
	v1.Delete("/users/:user/memories", s.handleClearMemories)
	v1.Get("/users/:user/memories/recall", s.handleRecallMemories)

	if config.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{})))
	}

	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s, nil
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// errorHandler renders errors that escape handlers, including fiber's own
// 404 and 405, as JSON.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(llm.ErrorResponse{Error: err.Error()})
}

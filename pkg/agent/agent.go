// Package agent runs tool-using LLM turns over persisted conversations.
//
// One turn moves through START, then CALL_LLM and EXECUTE_TOOLS alternately,
// and ends in DONE, ABORTED or MAX_ITER. The user message is persisted before
// the first LLM call and every model turn is persisted as soon as it arrives,
// so a crash loses at most the in-flight LLM call.
package agent

import (
	"errors"
	"log/slog"

	"github.com/papercomputeco/tether/pkg/eventstream"
	"github.com/papercomputeco/tether/pkg/llm"
	"github.com/papercomputeco/tether/pkg/memory"
	"github.com/papercomputeco/tether/pkg/metrics"
	"github.com/papercomputeco/tether/pkg/storage"
	"github.com/papercomputeco/tether/pkg/tools"
)

const (
	// DefaultMaxIterations bounds the LLM calls of one turn.
	DefaultMaxIterations = 10

	// DefaultMaxTokens caps the output of each LLM call.
	DefaultMaxTokens = 1024
)

// Config is the agent configuration.
type Config struct {
	// LLM is the model client. Required.
	LLM llm.Client

	// Store persists conversations and messages. Required.
	Store storage.ConversationStore

	// Tools is the registry advertised to the model. Nil means no tools.
	Tools *tools.Registry

	// Memory extracts and recalls user memories. Nil disables memory.
	Memory *memory.Manager

	// Publisher receives one event per finished turn. Optional.
	Publisher eventstream.Publisher

	// Metrics is optional.
	Metrics *metrics.Metrics

	Logger *slog.Logger

	// Model is the model identifier sent with every request. Required.
	Model string

	// MaxTokens defaults to DefaultMaxTokens.
	MaxTokens int

	// MaxIterations defaults to DefaultMaxIterations.
	MaxIterations int

	// DefaultUser owns turns that name no user. Defaults to storage.DefaultUserID.
	DefaultUser string

	// SystemPrompt is the base instructions used when a turn brings none.
	SystemPrompt string
}

// Agent runs turns. It is safe for concurrent use by turns on different
// conversations.
type Agent struct {
	llm       llm.Client
	store     storage.ConversationStore
	tools     *tools.Registry
	memory    *memory.Manager
	publisher eventstream.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	model         string
	maxTokens     int
	maxIterations int
	defaultUser   string
	systemPrompt  string
}

// New creates an Agent.
func New(c Config) (*Agent, error) {
	if c.LLM == nil {
		return nil, errors.New("llm client is required")
	}
	if c.Store == nil {
		return nil, errors.New("conversation store is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if c.Model == "" {
		return nil, errors.New("model is required")
	}

	registry := c.Tools
	if registry == nil {
		var err error
		registry, err = tools.NewRegistry(c.Logger)
		if err != nil {
			return nil, err
		}
	}

	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	maxIterations := c.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	defaultUser := c.DefaultUser
	if defaultUser == "" {
		defaultUser = storage.DefaultUserID
	}

	return &Agent{
		llm:           c.LLM,
		store:         c.Store,
		tools:         registry,
		memory:        c.Memory,
		publisher:     c.Publisher,
		metrics:       c.Metrics,
		logger:        c.Logger,
		model:         c.Model,
		maxTokens:     maxTokens,
		maxIterations: maxIterations,
		defaultUser:   defaultUser,
		systemPrompt:  c.SystemPrompt,
	}, nil
}

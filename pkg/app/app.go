// Package app builds the tether runtime context: every long-lived
// component (store, LLM client, tool registry, memory manager, event
// publisher, metrics and agent) is constructed once here from a resolved
// config.Config and handed to the commands that need it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/papercomputeco/tether/pkg/agent"
	"github.com/papercomputeco/tether/pkg/config"
	"github.com/papercomputeco/tether/pkg/eventstream"
	"github.com/papercomputeco/tether/pkg/llm"
	"github.com/papercomputeco/tether/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/tether/pkg/memory"
	"github.com/papercomputeco/tether/pkg/metrics"
	"github.com/papercomputeco/tether/pkg/storage"
	"github.com/papercomputeco/tether/pkg/tools"
	"github.com/papercomputeco/tether/pkg/tools/builtin"
	"github.com/papercomputeco/tether/pkg/worker"
)

// Options carries process-level inputs and test overrides.
type Options struct {
	Logger *slog.Logger

	// ConfigDir overrides the .tether/ directory resolution.
	ConfigDir string

	// Getenv reads the API key variable. Defaults to os.Getenv.
	Getenv func(string) string

	// LLM replaces the client built from config.
	LLM llm.Client

	// Store replaces the storage driver built from config. App.Close
	// closes it either way.
	Store storage.Driver

	// Publisher replaces the publisher built from config. It is still
	// wrapped in the worker pool.
	Publisher eventstream.Publisher

	// Tools replaces the default tool registration list.
	Tools []tools.Tool
}

// App is the runtime context of one tether process.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Store     storage.Driver
	LLM       llm.Client
	Tools     *tools.Registry
	Memory    *memory.Manager
	Publisher eventstream.Publisher
	Metrics   *metrics.Metrics
	Agent     *agent.Agent

	// Registry holds every collector of the process and backs /metrics.
	Registry *prometheus.Registry

	closers []func() error
}

// New builds the runtime from cfg. On error everything built so far is
// released.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}

	a := &App{
		Config:   cfg,
		Logger:   opts.Logger,
		Registry: prometheus.NewRegistry(),
	}

	if err := a.build(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	cfg := a.Config

	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	store := opts.Store
	if store == nil {
		var err error
		store, err = OpenStore(ctx, cfg.Storage, opts.ConfigDir, a.Logger)
		if err != nil {
			return err
		}
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	client := opts.LLM
	if client == nil {
		getenv := opts.Getenv
		if getenv == nil {
			getenv = os.Getenv
		}
		var err error
		client, err = newLLMClient(cfg.LLM, getenv, a.Logger)
		if err != nil {
			return err
		}
	}
	a.LLM = client

	toolList := opts.Tools
	if toolList == nil {
		toolList = builtin.Defaults()
	}
	registry, err := tools.NewRegistry(a.Logger, toolList...)
	if err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}
	a.Tools = registry

	if cfg.Memory.IsEnabled() {
		a.Memory, err = memory.NewManager(memory.ManagerConfig{
			Store:   store,
			Metrics: a.Metrics,
			Logger:  a.Logger,
		})
		if err != nil {
			return fmt.Errorf("creating memory manager: %w", err)
		}
	}

	publisher := opts.Publisher
	if publisher == nil {
		publisher, err = newPublisher(cfg.EventStream, a.Logger)
		if err != nil {
			return err
		}
	}
	pool, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    a.Logger,
	})
	if err != nil {
		_ = publisher.Close()
		return fmt.Errorf("creating publish pool: %w", err)
	}
	a.Publisher = pool
	a.closers = append(a.closers, pool.Close)

	a.Agent, err = agent.New(agent.Config{
		LLM:           client,
		Store:         store,
		Tools:         registry,
		Memory:        a.Memory,
		Publisher:     pool,
		Metrics:       a.Metrics,
		Logger:        a.Logger,
		Model:         cfg.LLM.Model,
		MaxTokens:     int(cfg.LLM.MaxTokens),
		MaxIterations: int(cfg.Agent.MaxIterations),
		DefaultUser:   cfg.Agent.DefaultUser,
		SystemPrompt:  cfg.Agent.SystemPrompt,
	})
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}

	a.Logger.Debug("runtime ready",
		"storage", cfg.Storage.Driver,
		"model", cfg.LLM.Model,
		"tools", registry.Names(),
		"memory", a.Memory != nil,
		"eventstream", cfg.EventStream.Provider,
	)

	return nil
}

// Close releases the runtime in reverse construction order. Queued turn
// events are drained before the store closes.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newLLMClient(c config.LLMConfig, getenv func(string) string, logger *slog.Logger) (llm.Client, error) {
	switch c.Provider {
	case "", "anthropic":
		key := getenv(c.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("no API key: set %s", c.APIKeyEnv)
		}
		client, err := anthropic.New(anthropic.Config{
			APIKey:  key,
			BaseURL: c.BaseURL,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating anthropic client: %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported llm provider %q (available: anthropic)", c.Provider)
	}
}

// Package servecmder provides the serve command, which runs the tether HTTP
// API together with the MCP server and the metrics endpoint.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tether/api"
	"github.com/papercomputeco/tether/api/mcp"
	"github.com/papercomputeco/tether/cmd/tether/cmdutil"
	"github.com/papercomputeco/tether/pkg/app"
	"github.com/papercomputeco/tether/pkg/config"
)

type serveCommander struct {
	listen   string
	jsonLogs bool
	logFile  string
	noMCP    bool

	model         string
	maxTokens     uint
	baseURL       string
	maxIterations uint
	systemPrompt  string
	defaultUser   string
	eventStream   string
	kafkaBrokers  string
	kafkaTopic    string
	storage       cmdutil.StorageFlags

	logger *slog.Logger
}

const serveLongDesc string = `Run the tether API server.

The server exposes:
  POST   /v1/turns                          Run a turn (add ?stream=true for SSE)
  GET    /v1/conversations                  List conversations
  GET    /v1/conversations/:id              Get a conversation with its messages
  GET    /v1/users/:user/memories           List a user's memories
  POST   /v1/users/:user/memories           Save a memory
  DELETE /v1/users/:user/memories           Delete a user's memories
  GET    /v1/users/:user/memories/recall    Preview memory recall for ?q=
  GET    /metrics                           Prometheus metrics
  ALL    /mcp                               MCP streamable HTTP endpoint

Finished turns are published to the configured event stream (nop or kafka).

Examples:
  tether serve
  tether serve --listen :9000 --json-logs
  tether serve --log-file ~/.tether/serve.log
  tether serve --eventstream kafka --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the tether API server"

var serveFlagKeys = append([]string{
	config.FlagAPIListen,
	config.FlagModel,
	config.FlagMaxTokens,
	config.FlagLLMBaseURL,
	config.FlagMaxIterations,
	config.FlagSystemPrompt,
	config.FlagDefaultUser,
	config.FlagEventStream,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}, cmdutil.StorageFlagKeys...)

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cmdutil.LoadConfig(cmd, serveFlagKeys...)
			if err != nil {
				return err
			}
			log, closeLog, err := cmdutil.WithLogFile(cmd, cmdutil.NewLogger(cmd, slog.LevelInfo, cmder.jsonLogs), cmder.logFile)
			if err != nil {
				return err
			}
			defer closeLog()
			cmder.logger = log

			a, err := cmdutil.NewApp(cmd.Context(), cmd, cfg, cmder.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					cmder.logger.Error("closing runtime", "error", err)
				}
			}()

			return cmder.run(a)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxTokens, &cmder.maxTokens)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMBaseURL, &cmder.baseURL)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxIterations, &cmder.maxIterations)
	config.AddStringFlag(cmd, config.Flags, config.FlagSystemPrompt, &cmder.systemPrompt)
	config.AddStringFlag(cmd, config.Flags, config.FlagDefaultUser, &cmder.defaultUser)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &cmder.eventStream)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmdutil.AddStorageFlags(cmd, &cmder.storage)
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Log as JSON")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Serve an MCP endpoint without tools")

	return cmd
}

func (c *serveCommander) run(a *app.App) error {
	server, err := c.newServer(a)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

// newServer wires the API and MCP servers to the runtime.
func (c *serveCommander) newServer(a *app.App) (*api.Server, error) {
	mcpServer, err := mcp.NewServer(mcp.Config{
		Store:  a.Store,
		Memory: a.Memory,
		Noop:   c.noMCP,
		Logger: a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	server, err := api.NewServer(api.Config{
		ListenAddr: a.Config.API.Listen,
		Agent:      a.Agent,
		Store:      a.Store,
		Memory:     a.Memory,
		Gatherer:   a.Registry,
		MCPHandler: mcpServer.Handler(),
		Logger:     a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	return server, nil
}

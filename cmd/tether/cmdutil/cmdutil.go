// Package cmdutil holds the config, logger and runtime plumbing shared by the
// tether commands.
package cmdutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/tether/pkg/app"
	"github.com/papercomputeco/tether/pkg/config"
	"github.com/papercomputeco/tether/pkg/logger"
)

// Persistent flags of the root command.
const (
	FlagDebug     = "debug"
	FlagConfigDir = "config-dir"
)

// StorageFlagKeys are the flag registry keys of the storage flags.
var StorageFlagKeys = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
}

// StorageFlags receives the storage flag values. They reach the config
// through viper, the fields only back the pflag values.
type StorageFlags struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// AddStorageFlags registers --storage, --sqlite and --postgres-dsn on cmd.
func AddStorageFlags(cmd *cobra.Command, f *StorageFlags) {
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &f.Driver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.SQLitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &f.PostgresDSN)
}

// ConfigDir returns the --config-dir override, empty when unset.
func ConfigDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString(FlagConfigDir)
	return dir
}

// Debug returns the --debug flag.
func Debug(cmd *cobra.Command) bool {
	debug, _ := cmd.Flags().GetBool(FlagDebug)
	return debug
}

// LoadConfig resolves the effective configuration of cmd. Flags named by
// registryKeys take precedence over TETHER_* env vars, config.toml and the
// defaults.
func LoadConfig(cmd *cobra.Command, registryKeys ...string) (*config.Config, error) {
	v, err := config.InitViper(ConfigDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, registryKeys)
	return config.FromViper(v), nil
}

// NewLogger builds a command logger writing to stderr, colorized when stderr
// is a terminal. --debug lowers the level to Debug regardless of level.
func NewLogger(cmd *cobra.Command, level slog.Level, jsonLogs bool) *slog.Logger {
	if Debug(cmd) {
		level = slog.LevelDebug
	}

	return logger.New(
		logger.WithWriter(os.Stderr),
		logger.WithLevel(level),
		logger.WithJSON(jsonLogs),
		logger.WithPretty(!jsonLogs && term.IsTerminal(int(os.Stderr.Fd()))),
	)
}

// WithLogFile tees log into a JSON log file appended at path, with caller
// locations. The returned func closes the file. An empty path returns log
// unchanged.
func WithLogFile(cmd *cobra.Command, log *slog.Logger, path string) (*slog.Logger, func() error, error) {
	if path == "" {
		return log, func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithWriter(f),
		logger.WithJSON(true),
		logger.WithDebug(Debug(cmd)),
		logger.WithSource(true),
	)
	return logger.Multi(log, file), f.Close, nil
}

// NewApp builds the tether runtime for a command.
func NewApp(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log *slog.Logger) (*app.App, error) {
	return app.New(ctx, cfg, app.Options{
		Logger:    log,
		ConfigDir: ConfigDir(cmd),
	})
}

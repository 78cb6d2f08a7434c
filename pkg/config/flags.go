package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --model
// on both "tether serve" and "tether chat").
type Flag struct {
	// Name is the long flag name (e.g. "model").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "llm.model").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagStorageDriver = "storage"
	FlagSQLite        = "sqlite"
	FlagPostgresDSN   = "postgres-dsn"
	FlagModel         = "model"
	FlagMaxTokens     = "max-tokens"
	FlagLLMBaseURL    = "llm-base-url"
	FlagMaxIterations = "max-iterations"
	FlagSystemPrompt  = "system"
	FlagDefaultUser   = "default-user"
	FlagAPIListen     = "listen"
	FlagEventStream   = "eventstream"
	FlagKafkaBrokers  = "kafka-brokers"
	FlagKafkaTopic    = "kafka-topic"
)

// Flags is the shared flag registry. Commands pick the entries they expose.
var Flags = FlagSet{
	FlagStorageDriver: {Name: "storage", ViperKey: "storage.driver", Description: "Storage driver (sqlite, postgres)"},
	FlagSQLite:        {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite database (default: .tether/tether.db)"},
	FlagPostgresDSN:   {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagModel:         {Name: "model", Shorthand: "m", ViperKey: "llm.model", Description: "Model name"},
	FlagMaxTokens:     {Name: "max-tokens", ViperKey: "llm.max_tokens", Description: "Maximum output tokens per LLM call"},
	FlagLLMBaseURL:    {Name: "llm-base-url", ViperKey: "llm.base_url", Description: "LLM API base URL"},
	FlagMaxIterations: {Name: "max-iterations", ViperKey: "agent.max_iterations", Description: "Maximum LLM calls per turn"},
	FlagSystemPrompt:  {Name: "system", ViperKey: "agent.system_prompt", Description: "System prompt for the agent"},
	FlagDefaultUser:   {Name: "default-user", ViperKey: "agent.default_user", Description: "User owning turns that name no user"},
	FlagAPIListen:     {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagEventStream:   {Name: "eventstream", ViperKey: "eventstream.provider", Description: "Turn event publisher (nop, kafka)"},
	FlagKafkaBrokers:  {Name: "kafka-brokers", ViperKey: "eventstream.brokers", Description: "Comma separated Kafka brokers"},
	FlagKafkaTopic:    {Name: "kafka-topic", ViperKey: "eventstream.topic", Description: "Kafka topic for turn events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

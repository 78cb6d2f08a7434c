package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/tether/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the TETHER_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (TETHER_API_LISTEN, TETHER_LLM_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: TETHER_API_LISTEN, TETHER_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("TETHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// LLM
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.api_key_env", d.LLM.APIKeyEnv)

	// Agent
	v.SetDefault("agent.max_iterations", d.Agent.MaxIterations)
	v.SetDefault("agent.default_user", d.Agent.DefaultUser)
	v.SetDefault("agent.system_prompt", d.Agent.SystemPrompt)

	// Memory
	v.SetDefault("memory.enabled", d.Memory.IsEnabled())

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}

// FromViper resolves the effective Config from the viper precedence chain.
func FromViper(v *viper.Viper) *Config {
	enabled := v.GetBool("memory.enabled")

	return &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Driver:      v.GetString("storage.driver"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		LLM: LLMConfig{
			Provider:  v.GetString("llm.provider"),
			BaseURL:   v.GetString("llm.base_url"),
			Model:     v.GetString("llm.model"),
			MaxTokens: v.GetUint("llm.max_tokens"),
			APIKeyEnv: v.GetString("llm.api_key_env"),
		},
		Agent: AgentConfig{
			MaxIterations: v.GetUint("agent.max_iterations"),
			DefaultUser:   v.GetString("agent.default_user"),
			SystemPrompt:  v.GetString("agent.system_prompt"),
		},
		Memory: MemoryConfig{
			Enabled: &enabled,
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Brokers:  v.GetString("eventstream.brokers"),
			Topic:    v.GetString("eventstream.topic"),
		},
	}
}

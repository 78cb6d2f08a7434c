package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent tether configuration stored as config.toml
// in the .tether/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	LLM         LLMConfig         `toml:"llm"`
	Agent       AgentConfig       `toml:"agent"`
	Memory      MemoryConfig      `toml:"memory"`
	API         APIConfig         `toml:"api"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects and locates the conversation and memory store.
type StorageConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// LLMConfig holds model provider settings. The API key itself is never
// stored: APIKeyEnv names the environment variable it is read from.
type LLMConfig struct {
	Provider  string `toml:"provider,omitempty"`
	BaseURL   string `toml:"base_url,omitempty"`
	Model     string `toml:"model,omitempty"`
	MaxTokens uint   `toml:"max_tokens,omitempty"`
	APIKeyEnv string `toml:"api_key_env,omitempty"`
}

// AgentConfig holds agent loop settings.
type AgentConfig struct {
	MaxIterations uint   `toml:"max_iterations,omitempty"`
	DefaultUser   string `toml:"default_user,omitempty"`
	SystemPrompt  string `toml:"system_prompt,omitempty"`
}

// MemoryConfig holds memory layer settings.
type MemoryConfig struct {
	// Enabled is nil when unset, which means enabled.
	Enabled *bool `toml:"enabled,omitempty"`
}

// IsEnabled reports whether the memory layer is on.
func (m MemoryConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventStreamConfig holds turn event publishing settings.
type EventStreamConfig struct {
	// Provider is "nop" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of host:port pairs.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(key string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver":       stringKey(func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"llm.provider":    stringKey(func(c *Config) *string { return &c.LLM.Provider }),
	"llm.base_url":    stringKey(func(c *Config) *string { return &c.LLM.BaseURL }),
	"llm.model":       stringKey(func(c *Config) *string { return &c.LLM.Model }),
	"llm.max_tokens":  uintKey("llm.max_tokens", func(c *Config) *uint { return &c.LLM.MaxTokens }),
	"llm.api_key_env": stringKey(func(c *Config) *string { return &c.LLM.APIKeyEnv }),

	"agent.max_iterations": uintKey("agent.max_iterations", func(c *Config) *uint { return &c.Agent.MaxIterations }),
	"agent.default_user":   stringKey(func(c *Config) *string { return &c.Agent.DefaultUser }),
	"agent.system_prompt":  stringKey(func(c *Config) *string { return &c.Agent.SystemPrompt }),

	"memory.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Memory.IsEnabled()) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for memory.enabled: %w", err)
			}
			c.Memory.Enabled = &b
			return nil
		},
	},

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"eventstream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers":  stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":    stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
}

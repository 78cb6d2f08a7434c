package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/tether/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	path, err := cfger.ddm.Path(configFile, override)
	if err != nil {
		return nil, err
	}

	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the list of all supported configuration key names
// in the order of the TOML section layout.
func ValidConfigKeys() []string {
	ordered := []string{
		"storage.driver",
		"storage.sqlite_path",
		"storage.postgres_dsn",
		"llm.provider",
		"llm.base_url",
		"llm.model",
		"llm.max_tokens",
		"llm.api_key_env",
		"agent.max_iterations",
		"agent.default_user",
		"agent.system_prompt",
		"memory.enabled",
		"api.listen",
		"eventstream.provider",
		"eventstream.brokers",
		"eventstream.topic",
	}

	// Sanity: only return keys that actually exist in the map.
	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	missed := make([]string, 0)
	for k := range configKeys {
		if !seen[k] {
			missed = append(missed, k)
		}
	}
	slices.Sort(missed)

	return append(result, missed...)
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target .tether/ directory.
// If the file does not exist, returns DefaultConfig() so callers always receive
// a fully-populated Config with sane defaults. Fields explicitly set in the file
// override the defaults.
// If overrideDir is non-empty, it is used instead of the default .tether/ location.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	// Merge in defaults: fill in any zero-value fields from the loaded config
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from DefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = defaults.Storage.Driver
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = defaults.LLM.Provider
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaults.LLM.Model
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = defaults.LLM.MaxTokens
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = defaults.LLM.APIKeyEnv
	}

	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = defaults.Agent.MaxIterations
	}
	if cfg.Agent.DefaultUser == "" {
		cfg.Agent.DefaultUser = defaults.Agent.DefaultUser
	}

	if cfg.Memory.Enabled == nil {
		cfg.Memory.Enabled = defaults.Memory.Enabled
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	if cfg.EventStream.Provider == "" {
		cfg.EventStream.Provider = defaults.EventStream.Provider
	}
	if cfg.EventStream.Topic == "" {
		cfg.EventStream.Topic = defaults.EventStream.Topic
	}
}

// SaveConfig persists the configuration to config.toml in the target .tether/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentConfigVersion.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}

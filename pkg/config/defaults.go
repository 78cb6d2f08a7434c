package config

const (
	defaultStorageDriver = "sqlite"

	defaultLLMProvider  = "anthropic"
	defaultLLMModel     = "claude-sonnet-4-20250514"
	defaultLLMMaxTokens = 1024
	defaultAPIKeyEnv    = "ANTHROPIC_API_KEY"

	defaultMaxIterations = 10
	defaultUser          = "default"

	defaultAPIListen = ":8082"

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "tether.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	enabled := true
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		LLM: LLMConfig{
			Provider:  defaultLLMProvider,
			Model:     defaultLLMModel,
			MaxTokens: defaultLLMMaxTokens,
			APIKeyEnv: defaultAPIKeyEnv,
		},
		Agent: AgentConfig{
			MaxIterations: defaultMaxIterations,
			DefaultUser:   defaultUser,
		},
		Memory: MemoryConfig{
			Enabled: &enabled,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}

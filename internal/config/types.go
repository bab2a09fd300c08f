package config

// Config is the root configuration for agentroute.
type Config struct {
	Provider      ProviderConfig           `yaml:"provider,omitempty"`
	Backends      map[string]BackendConfig `yaml:"backends,omitempty"`
	Routing       RoutingConfig            `yaml:"routing,omitempty"`
	Agent         AgentConfig              `yaml:"agent,omitempty"`
	Summarization SummarizationConfig      `yaml:"summarization,omitempty"`
	Checkpoint    CheckpointConfig         `yaml:"checkpoint,omitempty"`
	Logging       LoggingConfig            `yaml:"logging,omitempty"`
}

// ProviderConfig is the OpenAI-compatible endpoint shared by all backends
// unless a backend overrides it.
type ProviderConfig struct {
	BaseURL string `yaml:"baseUrl,omitempty"`
	APIKey  string `yaml:"apiKey,omitempty"`
}

// BackendConfig is one selectable completion backend: a model identifier plus
// its generation parameters.
type BackendConfig struct {
	Model          string   `yaml:"model"`
	Temperature    *float64 `yaml:"temperature,omitempty"`
	MaxTokens      int      `yaml:"maxTokens,omitempty"`
	TimeoutSeconds int      `yaml:"timeoutSeconds,omitempty"`
	BaseURL        string   `yaml:"baseUrl,omitempty"` // overrides provider.baseUrl
	APIKey         string   `yaml:"apiKey,omitempty"`  // overrides provider.apiKey
}

// RoutingConfig names the backends used by the complexity router.
type RoutingConfig struct {
	Enabled             bool   `yaml:"enabled"`
	Classifier          string `yaml:"classifier,omitempty"`
	Simple              string `yaml:"simple,omitempty"`
	Complex             string `yaml:"complex,omitempty"`
	ClassifierMaxTokens int    `yaml:"classifierMaxTokens,omitempty"`
}

// AgentConfig controls the conversation loop.
type AgentConfig struct {
	ID                string `yaml:"id,omitempty"`
	DefaultBackend    string `yaml:"defaultBackend,omitempty"`
	SystemPrompt      string `yaml:"systemPrompt,omitempty"`
	MaxToolIterations int    `yaml:"maxToolIterations,omitempty"`
	ParallelTools     bool   `yaml:"parallelTools,omitempty"`
	GuardTools        bool   `yaml:"guardTools"`
}

// SummarizationConfig configures history compaction before model calls.
type SummarizationConfig struct {
	Enabled     bool   `yaml:"enabled,omitempty"`
	Backend     string `yaml:"backend,omitempty"`
	TriggerKind string `yaml:"triggerKind,omitempty"` // "messages" | "tokens"
	Trigger     int    `yaml:"trigger,omitempty"`
	Keep        int    `yaml:"keep,omitempty"`
	Prefix      string `yaml:"prefix,omitempty"`
	Prompt      string `yaml:"prompt,omitempty"` // must contain {messages}
}

// CheckpointConfig selects the thread checkpoint store.
type CheckpointConfig struct {
	Store string `yaml:"store,omitempty"` // "memory" | "sqlite" | "none"
	Path  string `yaml:"path,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

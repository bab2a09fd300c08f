package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Backend names used by the default configuration.
const (
	BackendGLM      = "glm"
	BackendDeepSeek = "deepseek"
	BackendQwen     = "qwen3-32b"
)

const (
	defaultBaseURL         = "https://api.siliconflow.cn/v1"
	defaultTimeoutSeconds  = 60
	defaultClassifierLimit = 64
	defaultToolIterations  = 5
	defaultSummaryPrefix   = "对话摘要："
	defaultSummaryPrompt   = "请将以下对话历史压缩成简短的中文摘要，保留关键信息（事实、偏好、约束、决定、结论）：\n{messages}"
	defaultSystemPrompt    = "你是一个人工智能助手"
)

func floatPtr(f float64) *float64 { return &f }

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL: defaultBaseURL,
		},
		Backends: map[string]BackendConfig{
			BackendGLM: {
				Model:          "Pro/zai-org/GLM-4.7",
				Temperature:    floatPtr(0.9),
				MaxTokens:      10000,
				TimeoutSeconds: defaultTimeoutSeconds,
			},
			BackendDeepSeek: {
				Model:          "deepseek-ai/DeepSeek-V3.2-Exp",
				Temperature:    floatPtr(0.9),
				MaxTokens:      10000,
				TimeoutSeconds: defaultTimeoutSeconds,
			},
			BackendQwen: {
				Model:          "Qwen/Qwen3-32B",
				Temperature:    floatPtr(0.9),
				MaxTokens:      5000,
				TimeoutSeconds: defaultTimeoutSeconds,
			},
		},
		Routing: RoutingConfig{
			Enabled:             true,
			Classifier:          BackendQwen,
			Simple:              BackendDeepSeek,
			Complex:             BackendGLM,
			ClassifierMaxTokens: defaultClassifierLimit,
		},
		Agent: AgentConfig{
			ID:                "default",
			DefaultBackend:    BackendGLM,
			SystemPrompt:      defaultSystemPrompt,
			MaxToolIterations: defaultToolIterations,
			GuardTools:        true,
		},
		Summarization: SummarizationConfig{
			Backend:     BackendQwen,
			TriggerKind: "messages",
			Trigger:     4,
			Keep:        4,
			Prefix:      defaultSummaryPrefix,
			Prompt:      defaultSummaryPrompt,
		},
		Checkpoint: CheckpointConfig{
			Store: "sqlite",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

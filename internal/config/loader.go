package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields lets api keys be written as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Provider.APIKey = expandEnvVars(cfg.Provider.APIKey)
	for name, b := range cfg.Backends {
		b.APIKey = expandEnvVars(b.APIKey)
		cfg.Backends[name] = b
	}
}

// LoadDotEnv loads KEY=value pairs from the given .env files into the
// process environment. Missing files are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return &ConfigError{Message: "failed to load " + f + ": " + err.Error()}
		}
	}
	return nil
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			expandSensitiveFields(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields left empty by a partial config file.
func applyDefaults(cfg *Config) {
	def := Defaults()

	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = def.Provider.BaseURL
	}
	for name, b := range cfg.Backends {
		if d, ok := def.Backends[name]; ok {
			b = mergeBackend(b, d)
		}
		if b.TimeoutSeconds == 0 {
			b.TimeoutSeconds = defaultTimeoutSeconds
		}
		cfg.Backends[name] = b
	}
	if cfg.Routing.ClassifierMaxTokens == 0 {
		cfg.Routing.ClassifierMaxTokens = defaultClassifierLimit
	}
	if cfg.Agent.MaxToolIterations == 0 {
		cfg.Agent.MaxToolIterations = defaultToolIterations
	}
	if cfg.Agent.SystemPrompt == "" {
		cfg.Agent.SystemPrompt = def.Agent.SystemPrompt
	}
	if cfg.Summarization.TriggerKind == "" {
		cfg.Summarization.TriggerKind = "messages"
	}
	if cfg.Summarization.Prefix == "" {
		cfg.Summarization.Prefix = defaultSummaryPrefix
	}
	if cfg.Summarization.Prompt == "" {
		cfg.Summarization.Prompt = defaultSummaryPrompt
	}
	if cfg.Checkpoint.Store == "" {
		cfg.Checkpoint.Store = "sqlite"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}

// mergeBackend fills fields a partial backend entry leaves unset from the
// built-in backend of the same name.
func mergeBackend(b, def BackendConfig) BackendConfig {
	if b.Model == "" {
		b.Model = def.Model
	}
	if b.Temperature == nil {
		b.Temperature = def.Temperature
	}
	if b.MaxTokens == 0 {
		b.MaxTokens = def.MaxTokens
	}
	if b.TimeoutSeconds == 0 {
		b.TimeoutSeconds = def.TimeoutSeconds
	}
	return b
}

// modelEnvVars maps per-model environment variables (as used in SiliconFlow
// deployment .env files) onto backend names.
var modelEnvVars = map[string][]string{
	BackendDeepSeek: {"DS_MODEL"},
	BackendGLM:      {"GLM_MODEL"},
	BackendQwen:     {"Qwen3_32B_MODEL", "QWEN3_32B_MODEL"},
}

// applyEnvOverrides reads provider, model and AGENTROUTE_* variables and
// overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SILICONFLOW_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("SILICONFLOW_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	for backend, vars := range modelEnvVars {
		b, ok := cfg.Backends[backend]
		if !ok {
			continue
		}
		for _, name := range vars {
			if v := os.Getenv(name); v != "" {
				b.Model = v
				break
			}
		}
		cfg.Backends[backend] = b
	}
	if v := os.Getenv("AGENTROUTE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("AGENTROUTE_DB"); v != "" {
		cfg.Checkpoint.Path = v
	}
}

package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if len(cfg.Backends) == 0 {
		issues = append(issues, ValidationIssue{
			Path:    "backends",
			Message: "at least one backend is required",
		})
	}

	for _, name := range slices.Sorted(maps.Keys(cfg.Backends)) {
		b := cfg.Backends[name]
		if b.Model == "" {
			issues = append(issues, ValidationIssue{
				Path:    "backends." + name + ".model",
				Message: "model is required",
			})
		}
		if b.MaxTokens < 0 {
			issues = append(issues, ValidationIssue{
				Path:    "backends." + name + ".maxTokens",
				Message: fmt.Sprintf("must be >= 0, got %d", b.MaxTokens),
			})
		}
		if b.Temperature != nil && (*b.Temperature < 0 || *b.Temperature > 2) {
			issues = append(issues, ValidationIssue{
				Path:    "backends." + name + ".temperature",
				Message: fmt.Sprintf("must be 0-2, got %g", *b.Temperature),
			})
		}
		if b.TimeoutSeconds < 0 {
			issues = append(issues, ValidationIssue{
				Path:    "backends." + name + ".timeoutSeconds",
				Message: fmt.Sprintf("must be >= 0, got %d", b.TimeoutSeconds),
			})
		}
	}

	// Every backend reference must name a defined backend; the router treats
	// an unknown backend as fatal, so catch it here first.
	refs := []struct{ path, name string }{
		{"agent.defaultBackend", cfg.Agent.DefaultBackend},
	}
	if cfg.Routing.Enabled {
		refs = append(refs,
			struct{ path, name string }{"routing.classifier", cfg.Routing.Classifier},
			struct{ path, name string }{"routing.simple", cfg.Routing.Simple},
			struct{ path, name string }{"routing.complex", cfg.Routing.Complex},
		)
	}
	if cfg.Summarization.Enabled {
		refs = append(refs, struct{ path, name string }{"summarization.backend", cfg.Summarization.Backend})
	}
	for _, ref := range refs {
		if ref.name == "" {
			issues = append(issues, ValidationIssue{Path: ref.path, Message: "backend is required"})
			continue
		}
		if _, ok := cfg.Backends[ref.name]; !ok {
			issues = append(issues, ValidationIssue{
				Path:    ref.path,
				Message: fmt.Sprintf("unknown backend %q", ref.name),
			})
		}
	}

	if cfg.Routing.ClassifierMaxTokens < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "routing.classifierMaxTokens",
			Message: fmt.Sprintf("must be >= 0, got %d", cfg.Routing.ClassifierMaxTokens),
		})
	}

	if cfg.Agent.MaxToolIterations < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.maxToolIterations",
			Message: fmt.Sprintf("must be >= 0, got %d", cfg.Agent.MaxToolIterations),
		})
	}

	if cfg.Summarization.Enabled {
		s := cfg.Summarization
		validKinds := []string{"messages", "tokens"}
		if !slices.Contains(validKinds, s.TriggerKind) {
			issues = append(issues, ValidationIssue{
				Path:    "summarization.triggerKind",
				Message: fmt.Sprintf("must be one of %v, got %q", validKinds, s.TriggerKind),
			})
		}
		if s.Trigger <= 0 {
			issues = append(issues, ValidationIssue{
				Path:    "summarization.trigger",
				Message: "must be > 0",
			})
		}
		if s.Keep < 0 {
			issues = append(issues, ValidationIssue{
				Path:    "summarization.keep",
				Message: fmt.Sprintf("must be >= 0, got %d", s.Keep),
			})
		}
		if !strings.Contains(s.Prompt, "{messages}") {
			issues = append(issues, ValidationIssue{
				Path:    "summarization.prompt",
				Message: "must contain the {messages} placeholder",
			})
		}
	}

	validStores := []string{"memory", "sqlite", "none"}
	if cfg.Checkpoint.Store != "" && !slices.Contains(validStores, cfg.Checkpoint.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "checkpoint.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Checkpoint.Store),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}

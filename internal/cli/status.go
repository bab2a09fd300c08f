package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/agentroute/internal/config"
	"github.com/soyeahso/agentroute/internal/llm"
	"github.com/soyeahso/agentroute/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show agentroute status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			b := version.Current()
			fmt.Fprintf(out, "agentroute %s (commit %s)\n\n", b.Version, b.Commit)

			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Provider: %s (api key %s)\n", cfg.Provider.BaseURL, keyState(cfg.Provider.APIKey))

			registry := llm.NewRegistryFromConfig(cfg, log)
			if names := registry.List(); len(names) > 0 {
				fmt.Fprintf(out, "Backends: %s\n", strings.Join(names, ", "))
			} else {
				fmt.Fprintln(out, "Backends: (none configured)")
			}

			if cfg.Routing.Enabled {
				fmt.Fprintf(out, "Routing:  classifier=%s simple=%s complex=%s\n",
					cfg.Routing.Classifier, cfg.Routing.Simple, cfg.Routing.Complex)
			} else {
				fmt.Fprintf(out, "Routing:  disabled (default=%s)\n", cfg.Agent.DefaultBackend)
			}

			if cfg.Summarization.Enabled {
				fmt.Fprintf(out, "Summary:  backend=%s trigger=%s:%d keep=%d\n",
					cfg.Summarization.Backend, cfg.Summarization.TriggerKind,
					cfg.Summarization.Trigger, cfg.Summarization.Keep)
			}

			store := cfg.Checkpoint.Store
			if store == "sqlite" {
				path := cfg.Checkpoint.Path
				if path == "" {
					path = paths.Checkpoints
				}
				store += " " + path
			}
			fmt.Fprintf(out, "Threads:  %s\n", store)
			fmt.Fprintf(out, "Guard:    %v\n", cfg.Agent.GuardTools)

			printIssues(cmd, config.Validate(&cfg))
			return nil
		},
	}
}

func keyState(key string) string {
	if key == "" {
		return "missing"
	}
	return "set"
}

func printIssues(cmd *cobra.Command, issues []config.ValidationIssue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nValidation issues (%d):\n", len(issues))
	for _, issue := range issues {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s: %s\n", issue.Path, issue.Message)
	}
}

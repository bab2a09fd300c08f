package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/agentroute/internal/config"
	"github.com/soyeahso/agentroute/internal/llm"
	"github.com/spf13/cobra"
)

func newBackendsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backends",
		Short: "Inspect configured model backends",
	}

	cmd.AddCommand(newBackendsListCmd())
	cmd.AddCommand(newBackendsInfoCmd())
	return cmd
}

func newBackendsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured backends and the roles they serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := llm.NewRegistryFromConfig(cfg, log)
			names := registry.List()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no backends configured)")
				return nil
			}
			for _, name := range names {
				b, err := registry.Resolve(name)
				if err != nil {
					return err
				}
				roles := ""
				if r := backendRoles(cfg, name); len(r) > 0 {
					roles = " [" + strings.Join(r, ",") + "]"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %-12s model=%s%s\n", name, b.Model, roles)
			}
			return nil
		},
	}
}

func newBackendsInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <backend>",
		Short: "Show details about a backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := llm.NewRegistryFromConfig(cfg, log)
			b, err := registry.Resolve(args[0])
			if err != nil {
				return err
			}

			bc := cfg.Backends[b.Name]
			baseURL := bc.BaseURL
			if baseURL == "" {
				baseURL = cfg.Provider.BaseURL
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend: %s\n", b.Name)
			fmt.Fprintf(out, "  Model:     %s\n", b.Model)
			fmt.Fprintf(out, "  Client:    %s\n", b.Client.Name())
			fmt.Fprintf(out, "  BaseURL:   %s\n", baseURL)
			fmt.Fprintf(out, "  MaxTokens: %d\n", b.Params.MaxTokens)
			if b.Params.Temperature != nil {
				fmt.Fprintf(out, "  Temp:      %.2f\n", *b.Params.Temperature)
			}
			fmt.Fprintf(out, "  Timeout:   %s\n", b.Params.Timeout)
			if r := backendRoles(cfg, b.Name); len(r) > 0 {
				fmt.Fprintf(out, "  Roles:     %s\n", strings.Join(r, ", "))
			}
			return nil
		},
	}
}

// backendRoles lists what the configuration uses a backend for.
func backendRoles(c config.Config, name string) []string {
	var roles []string
	if c.Agent.DefaultBackend == name {
		roles = append(roles, "default")
	}
	if c.Routing.Enabled {
		if c.Routing.Classifier == name {
			roles = append(roles, "classifier")
		}
		if c.Routing.Simple == name {
			roles = append(roles, "simple")
		}
		if c.Routing.Complex == name {
			roles = append(roles, "complex")
		}
	}
	if c.Summarization.Enabled && c.Summarization.Backend == name {
		roles = append(roles, "summarizer")
	}
	return roles
}

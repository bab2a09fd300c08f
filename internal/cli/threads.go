package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/soyeahso/agentroute/internal/agent"
	"github.com/soyeahso/agentroute/internal/domain"
	"github.com/spf13/cobra"
)

func newThreadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Inspect stored conversation threads",
	}

	cmd.AddCommand(newThreadsListCmd())
	cmd.AddCommand(newThreadsShowCmd())
	cmd.AddCommand(newThreadsCheckpointsCmd())
	cmd.AddCommand(newThreadsDeleteCmd())
	return cmd
}

// withCheckpoints opens the configured checkpoint store for fn.
func withCheckpoints(fn func(ctx context.Context, cp agent.Checkpointer) error) error {
	a, err := newApp(cfg, paths, appOptions{NoRoute: true, NoTools: true}, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.checkpoints == nil {
		return fmt.Errorf("checkpoint store is disabled (checkpoint.store=%s)", cfg.Checkpoint.Store)
	}
	return fn(context.Background(), a.checkpoints)
}

func newThreadsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List threads, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckpoints(func(ctx context.Context, cp agent.Checkpointer) error {
				threads, err := cp.Threads(ctx)
				if err != nil {
					return err
				}
				printThreads(cmd.OutOrStdout(), threads)
				return nil
			})
		},
	}
}

func newThreadsShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <thread>",
		Short: "Print a thread's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckpoints(func(ctx context.Context, cp agent.Checkpointer) error {
				msgs, err := cp.Load(ctx, domain.ThreadID(args[0]))
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(msgs)
				}
				printMessages(cmd.OutOrStdout(), msgs)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print messages as JSON")
	return cmd
}

func newThreadsCheckpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoints <thread>",
		Short: "List a thread's checkpoints, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckpoints(func(ctx context.Context, cp agent.Checkpointer) error {
				cps, err := cp.Checkpoints(ctx, domain.ThreadID(args[0]))
				if err != nil {
					return err
				}
				for _, c := range cps {
					fmt.Fprintf(cmd.OutOrStdout(), "  %3d  %s  messages=%d  %s\n",
						c.Step, c.ID, c.MessageCount, c.CreatedAt.Local().Format(time.DateTime))
				}
				return nil
			})
		},
	}
}

func newThreadsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <thread>",
		Short: "Delete a thread and its checkpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckpoints(func(ctx context.Context, cp agent.Checkpointer) error {
				d, ok := cp.(agent.ThreadDeleter)
				if !ok {
					return fmt.Errorf("checkpoint store does not support deletion")
				}
				if err := d.Delete(ctx, domain.ThreadID(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted thread %s\n", args[0])
				return nil
			})
		},
	}
}

func printThreads(w io.Writer, threads []domain.ThreadInfo) {
	if len(threads) == 0 {
		fmt.Fprintln(w, "(no threads)")
		return
	}
	for _, t := range threads {
		fmt.Fprintf(w, "  %-20s messages=%-4d updated=%s\n",
			t.ID, t.MessageCount, t.UpdatedAt.Local().Format(time.DateTime))
	}
}

func printMessages(w io.Writer, msgs []domain.Message) {
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleAI:
			line := m.Content
			if len(m.ToolCalls) > 0 {
				calls := make([]string, len(m.ToolCalls))
				for i, c := range m.ToolCalls {
					calls[i] = c.Name + c.ArgsJSON()
				}
				line = strings.TrimSpace(line + " [calls: " + strings.Join(calls, ", ") + "]")
			}
			if m.Metadata != nil && m.Metadata.ModelName != "" {
				line += " (" + m.Metadata.ModelName + ")"
			}
			fmt.Fprintf(w, "%-6s %s\n", m.Role+":", line)
		case domain.RoleTool:
			fmt.Fprintf(w, "%-6s %s -> %s\n", m.Role+":", m.ToolCallID, m.Content)
		default:
			fmt.Fprintf(w, "%-6s %s\n", m.Role+":", m.Content)
		}
	}
}

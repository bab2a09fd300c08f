package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/soyeahso/agentroute/internal/agent"
	"github.com/soyeahso/agentroute/internal/domain"
	"github.com/soyeahso/agentroute/internal/hooks"
	"github.com/soyeahso/agentroute/internal/tools"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var (
		thread    string
		user      string
		noRoute   bool
		withTools bool
		showRoute bool
		stream    bool
		format    string
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the agent; starts an interactive session when no message is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg, paths, appOptions{NoRoute: noRoute, NoTools: !withTools, Format: format}, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if showRoute {
				defer showRoutes(a.hooks, cmd.ErrOrStderr())()
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runner := a.runner()
			rc := domain.RunContext{UserID: user}
			id := domain.ThreadID(thread)
			t := turnIO{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), stream: stream}

			if len(args) > 0 {
				return chatTurn(ctx, runner, id, strings.Join(args, " "), rc, t)
			}
			return chatLoop(ctx, runner, id, rc, cmd.InOrStdin(), t)
		},
	}

	cmd.Flags().StringVar(&thread, "thread", "1", "conversation thread id")
	cmd.Flags().StringVar(&user, "user", "1", "user id passed to tools")
	cmd.Flags().BoolVar(&noRoute, "no-route", false, "disable complexity routing and use agent.defaultBackend")
	cmd.Flags().BoolVar(&withTools, "tools", true, "offer the built-in tools to the model")
	cmd.Flags().BoolVar(&showRoute, "show-route", false, "print each routing decision to stderr")
	cmd.Flags().BoolVar(&stream, "stream", false, "print the reply as it is generated")
	cmd.Flags().StringVar(&format, "format", "", "answer as JSON: "+strings.Join(tools.FormatNames(), ", ")+" or a JSON Schema file")

	return cmd
}

// showRoutes prints every routing decision to w until the returned func is
// called.
func showRoutes(h *hooks.Manager, w io.Writer) (detach func()) {
	h.On(hooks.EventModelRouted, "cli", func(_ context.Context, p hooks.Payload) error {
		fmt.Fprintf(w, "[%v -> %v]\n", p.Data["label"], p.Data["backend"])
		return nil
	})
	return func() { h.Off(hooks.EventModelRouted, "cli") }
}

// turnIO is where a turn's output goes.
type turnIO struct {
	out    io.Writer
	errOut io.Writer
	stream bool
}

// chatTurn runs one turn and prints the reply followed by a usage line. A
// structured reply is printed as indented JSON.
func chatTurn(ctx context.Context, runner *agent.Runner, thread domain.ThreadID, text string, rc domain.RunContext, t turnIO) error {
	var (
		result *agent.RunResult
		err    error
	)
	if t.stream {
		result, err = runner.InvokeStream(ctx, thread, text, rc, func(delta string) {
			fmt.Fprint(t.out, delta)
		})
		fmt.Fprintln(t.out)
	} else {
		result, err = runner.Invoke(ctx, thread, text, rc)
	}
	if err != nil {
		return err
	}

	if !t.stream {
		if err := printReply(t.out, result); err != nil {
			return err
		}
	}
	if result.Model != "" {
		fmt.Fprintf(t.errOut, "[backend=%s model=%s tokens=%d+%d rounds=%d]\n",
			result.Backend, result.Model, result.Usage.InputTokens, result.Usage.OutputTokens, result.Rounds)
	}
	return nil
}

func printReply(w io.Writer, result *agent.RunResult) error {
	if result.Structured == nil {
		_, err := fmt.Fprintln(w, result.Response)
		return err
	}
	data, err := json.MarshalIndent(result.Structured, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// chatLoop reads one message per line until EOF, "exit" or "quit". A failed
// turn is reported and the session continues.
func chatLoop(ctx context.Context, runner *agent.Runner, thread domain.ThreadID, rc domain.RunContext, in io.Reader, t turnIO) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(t.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(t.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := chatTurn(ctx, runner, thread, line, rc, t); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(t.errOut, "error: %v\n", err)
		}
	}
}

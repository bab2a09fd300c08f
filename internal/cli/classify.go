package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Classify text as simple or complex and show the backend it would route to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg, paths, appOptions{NoTools: true, NoMemory: true}, log)
			if err != nil {
				return err
			}
			defer a.Close()

			label, target, err := a.classify(context.Background(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (classified by %s)\n", label, target, a.classifier.Backend())
			return nil
		},
	}
}

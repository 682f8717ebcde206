package studyctl

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newLLMCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm",
		Short: "Inspect vision provider usage",
	}

	var since time.Duration
	usage := &cobra.Command{
		Use:   "usage",
		Short: "Summarize provider requests by model and purpose",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if since <= 0 {
				return fmt.Errorf("--since must be positive")
			}
			return env.run(cmd, func(ctx context.Context, ws *workspace) error {
				rows, err := ws.store.ListLLMUsage(ctx, env.clock().Add(-since))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					_, err := fmt.Fprintln(out, "No LLM requests found.")
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PROVIDER\tMODEL\tPURPOSE\tREQUESTS\tFAILED\tIN\tOUT\tAVG MS")
				for _, row := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
						row.Provider,
						row.Model,
						row.Purpose,
						row.Requests,
						row.Failures,
						row.InputTokens,
						row.OutputTokens,
						row.AvgLatencyMs,
					)
				}
				return tw.Flush()
			})
		},
	}
	usage.Flags().DurationVar(&since, "since", 24*time.Hour, "look-back window")

	cmd.AddCommand(usage)
	return cmd
}

package studyctl

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	platformgrpc "github.com/louisbranch/study.space/internal/platform/grpc"
)

// timersComponent matches the health name the study server reports while
// its background clocks run.
const timersComponent = "study.timers"

func newHealthCommand() *cobra.Command {
	var (
		addr      string
		component string
		wait      time.Duration
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Wait until the study server reports SERVING",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := platformgrpc.Dial(addr)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, wait)
			defer cancel()

			var logf func(string, ...any)
			if verbose {
				logf = func(format string, args ...any) {
					fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
				}
			}
			if err := platformgrpc.WaitForHealth(ctx, conn, component, logf); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s SERVING\n", component)
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8091", "health endpoint address")
	cmd.Flags().StringVar(&component, "component", timersComponent, "health service name, empty for the whole server")
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log each health check")
	return cmd
}

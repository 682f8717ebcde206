package studyctl

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/louisbranch/study.space/internal/services/study/app"
)

func newTokenCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue bearer tokens for the HTTP and websocket API",
	}

	var (
		secret string
		admin  bool
		ttl    time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Sign a token for one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("secret") {
				secret = env.cfg.JWTSecret
			}
			auth, err := app.NewJWTAuthenticator(secret, env.cfg.JWTIssuer, env.clock)
			if err != nil {
				return err
			}
			token, err := auth.Sign(args[0], admin, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	issue.Flags().StringVar(&secret, "secret", "", "HMAC secret, defaults to STUDY_SPACE_JWT_SECRET")
	issue.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	cmd.AddCommand(issue)
	return cmd
}

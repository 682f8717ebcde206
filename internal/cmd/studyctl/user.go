package studyctl

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/louisbranch/study.space/internal/services/study/domain"
	"github.com/louisbranch/study.space/internal/services/study/wire"
)

type userView struct {
	ID                    string `json:"id"`
	Plan                  string `json:"plan"`
	SubscriptionExpiresAt string `json:"subscription_expires_at,omitempty"`
	TrialEndsAt           string `json:"trial_ends_at,omitempty"`
	DailyRemainingSeconds int64  `json:"daily_remaining_seconds"`
	LastResetDate         string `json:"last_reset_date,omitempty"`
}

func newUserView(u domain.User) userView {
	view := userView{
		ID:                    u.ID,
		Plan:                  string(u.Plan),
		DailyRemainingSeconds: u.Budget.DailyRemainingSeconds,
		LastResetDate:         u.Budget.LastResetDate,
	}
	if u.SubscriptionExpiresAt != nil {
		view.SubscriptionExpiresAt = u.SubscriptionExpiresAt.UTC().Format(time.RFC3339)
	}
	if u.TrialEndsAt != nil {
		view.TrialEndsAt = u.TrialEndsAt.UTC().Format(time.RFC3339)
	}
	return view
}

func newUserCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect and update subscription records",
	}

	show := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Print one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.run(cmd, func(ctx context.Context, ws *workspace) error {
				user, err := ws.study.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), newUserView(user))
			})
		},
	}

	var plan, expires, trialEnds string
	put := &cobra.Command{
		Use:   "put <user-id>",
		Short: "Create or update a user's plan, keeping unset fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expiresAt, err := parseOptionalTime(expires)
			if err != nil {
				return err
			}
			trialEndsAt, err := parseOptionalTime(trialEnds)
			if err != nil {
				return err
			}
			return env.run(cmd, func(ctx context.Context, ws *workspace) error {
				in := domain.UserInput{
					ID:                    args[0],
					Plan:                  plan,
					SubscriptionExpiresAt: expiresAt,
					TrialEndsAt:           trialEndsAt,
				}
				current, err := ws.study.GetUser(ctx, args[0])
				switch {
				case err == nil:
					flags := cmd.Flags()
					if !flags.Changed("plan") {
						in.Plan = string(current.Plan)
					}
					if !flags.Changed("expires") {
						in.SubscriptionExpiresAt = current.SubscriptionExpiresAt
					}
					if !flags.Changed("trial-ends") {
						in.TrialEndsAt = current.TrialEndsAt
					}
				case !errors.Is(err, domain.ErrNotFound):
					return err
				}
				user, err := ws.study.PutUser(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), newUserView(user))
			})
		},
	}
	put.Flags().StringVar(&plan, "plan", "", "subscription plan: none, trial, standard or pro")
	put.Flags().StringVar(&expires, "expires", "", "subscription expiry (RFC3339)")
	put.Flags().StringVar(&trialEnds, "trial-ends", "", "trial end (RFC3339)")

	cmd.AddCommand(show, put)
	return cmd
}

func newBudgetCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Inspect daily study budgets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <user-id>",
		Short: "Print today's limit, usage and remaining time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.run(cmd, func(ctx context.Context, ws *workspace) error {
				status, err := ws.study.Budget(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), wire.NewBudget(status))
			})
		},
	})
	return cmd
}

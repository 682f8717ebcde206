package studyctl

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/louisbranch/study.space/internal/services/study/domain"
	"github.com/louisbranch/study.space/internal/services/study/wire"
)

func newProfileCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect and update gamification profiles",
	}

	show := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Print one profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.run(cmd, func(ctx context.Context, ws *workspace) error {
				profile, err := ws.study.GetProfile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), wire.NewProfile(profile))
			})
		},
	}

	var (
		name         string
		locale       string
		workMinutes  int
		breakMinutes int
	)
	put := &cobra.Command{
		Use:   "put <user-id>",
		Short: "Update display name, locale and forced rest settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := domain.ProfileSettings{UserID: args[0]}
			flags := cmd.Flags()
			if flags.Changed("name") {
				in.DisplayName = &name
			}
			if flags.Changed("locale") {
				in.Locale = &locale
			}
			if flags.Changed("work-minutes") {
				in.WorkMinutesBeforeForcedBreak = &workMinutes
			}
			if flags.Changed("break-minutes") {
				in.ForcedBreakMinutes = &breakMinutes
			}
			return env.run(cmd, func(ctx context.Context, ws *workspace) error {
				profile, err := ws.study.UpdateProfile(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), wire.NewProfile(profile))
			})
		},
	}
	put.Flags().StringVar(&name, "name", "", "display name")
	put.Flags().StringVar(&locale, "locale", "", "feedback locale, e.g. en or pt-BR")
	put.Flags().IntVar(&workMinutes, "work-minutes", 0, "studying minutes before a forced break, 0 disables")
	put.Flags().IntVar(&breakMinutes, "break-minutes", 0, "forced break length in minutes")

	cmd.AddCommand(show, put)
	return cmd
}

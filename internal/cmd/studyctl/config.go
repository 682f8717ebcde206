package studyctl

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/louisbranch/study.space/internal/services/study/domain"
	"github.com/louisbranch/study.space/internal/services/study/wire"
)

func newConfigCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the application configuration",
	}
	var asYAML bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print plans, goals and the positive feedback interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.run(cmd, func(_ context.Context, ws *workspace) error {
				current := wire.NewConfig(ws.configs.Current())
				if asYAML {
					return printYAML(cmd.OutOrStdout(), current)
				}
				return printJSON(cmd.OutOrStdout(), current)
			})
		},
	}
	show.Flags().BoolVar(&asYAML, "yaml", false, "print YAML suitable for config apply")

	apply := &cobra.Command{
		Use:   "apply <file.yaml>",
		Short: "Replace the whole configuration from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			next, err := readConfigFile(args[0])
			if err != nil {
				return err
			}
			return env.run(cmd, func(ctx context.Context, ws *workspace) error {
				cfg, err := ws.configs.Update(ctx, next)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), wire.NewConfig(cfg))
			})
		},
	}

	cmd.AddCommand(show, apply)
	return cmd
}

func readConfigFile(path string) (domain.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.AppConfig{}, fmt.Errorf("read config file: %w", err)
	}
	var doc wire.Config
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.AppConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return doc.Domain()
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func newPlanCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Adjust plan limits",
	}

	var (
		name             string
		dailyHours       float64
		analysisInterval int
	)
	set := &cobra.Command{
		Use:   "set <trial|standard|pro>",
		Short: "Update one plan row, keeping unset fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseConfigPlan(args[0])
			if err != nil {
				return err
			}
			return env.run(cmd, func(ctx context.Context, ws *workspace) error {
				limits := ws.configs.Current().Plan(id)
				flags := cmd.Flags()
				if flags.Changed("name") {
					limits.Name = name
				}
				if flags.Changed("daily-hours") {
					limits.DailyHours = dailyHours
				}
				if flags.Changed("analysis-interval") {
					limits.AnalysisIntervalSeconds = analysisInterval
				}
				cfg, err := ws.configs.UpdatePlan(ctx, id, limits)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), wire.NewConfig(cfg).Plans[string(id)])
			})
		},
	}
	set.Flags().StringVar(&name, "name", "", "display name")
	set.Flags().Float64Var(&dailyHours, "daily-hours", 0, "daily study allotment in hours")
	set.Flags().IntVar(&analysisInterval, "analysis-interval", 0, "seconds between camera frames")

	cmd.AddCommand(set)
	return cmd
}

func newGoalsCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Adjust stage thresholds",
	}

	var caveMaster, monkeyKing, totalMonkeyKing int64
	set := &cobra.Command{
		Use:   "set",
		Short: "Update stage thresholds, keeping unset fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.run(cmd, func(ctx context.Context, ws *workspace) error {
				goals := ws.configs.Current().Goals
				flags := cmd.Flags()
				if flags.Changed("cave-master") {
					goals.CaveMaster = caveMaster
				}
				if flags.Changed("monkey-king") {
					goals.MonkeyKing = monkeyKing
				}
				if flags.Changed("total-monkey-king") {
					goals.TotalMonkeyKing = totalMonkeyKing
				}
				cfg, err := ws.configs.UpdateGoals(ctx, goals)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), wire.NewConfig(cfg).Goals)
			})
		},
	}
	set.Flags().Int64Var(&caveMaster, "cave-master", 0, "spiritual power threshold for cave master")
	set.Flags().Int64Var(&monkeyKing, "monkey-king", 0, "spiritual power threshold for monkey king")
	set.Flags().Int64Var(&totalMonkeyKing, "total-monkey-king", 0, "spiritual power threshold for total monkey king")

	cmd.AddCommand(set)
	return cmd
}

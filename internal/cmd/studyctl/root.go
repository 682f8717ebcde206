// Package studyctl implements the administrative command line for the study
// service. Commands work against the service database directly; a running
// server picks up plan and goal changes on its next start, while the admin
// HTTP API applies them live.
package studyctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	entrypoint "github.com/louisbranch/study.space/internal/platform/cmd"
	"github.com/louisbranch/study.space/internal/platform/config"
	"github.com/louisbranch/study.space/internal/platform/timeouts"
	"github.com/louisbranch/study.space/internal/services/study/appconfig"
	"github.com/louisbranch/study.space/internal/services/study/domain"
	"github.com/louisbranch/study.space/internal/services/study/storage/sqlite"
)

// EnvPrefix matches the server so both read the same database.
const EnvPrefix = "STUDY_SPACE_"

// Config holds the shared command settings.
type Config struct {
	DBPath    string `env:"DB_PATH"    envDefault:"data/study.db"`
	Timezone  string `env:"TIMEZONE"   envDefault:"UTC"`
	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"study.space"`
}

// Options carries process dependencies into the command tree.
type Options struct {
	Config Config
	Clock  func() time.Time
}

// Execute runs the command tree against os.Args.
func Execute() error {
	var cfg Config
	if err := entrypoint.ParseConfigWithPrefix(&cfg, EnvPrefix); err != nil {
		return err
	}
	return NewRootCommand(Options{Config: cfg}).Execute()
}

// NewRootCommand builds the studyctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	env := &environment{cfg: opts.Config, clock: opts.Clock}

	root := &cobra.Command{
		Use:           entrypoint.ServiceStudyCtl,
		Short:         "Administer study space users, plans and goals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&env.cfg.DBPath, "db", env.cfg.DBPath, "path to the sqlite database")
	root.PersistentFlags().StringVar(&env.cfg.Timezone, "timezone", env.cfg.Timezone, "IANA time zone for daily budgets")

	root.AddCommand(
		newUserCommand(env),
		newProfileCommand(env),
		newConfigCommand(env),
		newPlanCommand(env),
		newGoalsCommand(env),
		newBudgetCommand(env),
		newLLMCommand(env),
		newTokenCommand(env),
		newHealthCommand(),
	)
	return root
}

type environment struct {
	cfg   Config
	clock func() time.Time
}

// workspace is one open database plus the services built on it.
type workspace struct {
	store   *sqlite.Store
	configs *appconfig.Service
	study   *domain.Service
}

func (w *workspace) Close() error {
	return w.store.Close()
}

func (e *environment) open(ctx context.Context) (*workspace, error) {
	loc, err := config.LoadLocation(e.cfg.Timezone)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(e.cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := sqlite.Open(e.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	configs := appconfig.New(store, domain.DefaultAppConfig(), nil, e.clock)
	loadCtx, cancel := context.WithTimeout(ctx, timeouts.StoreOpen)
	defer cancel()
	if err := configs.Load(loadCtx); err != nil {
		_ = store.Close()
		return nil, err
	}
	study := domain.NewService(domain.Deps{
		Store:    store,
		Config:   configs,
		Location: loc,
		Clock:    e.clock,
	})
	return &workspace{store: store, configs: configs, study: study}, nil
}

// run opens the workspace for the duration of fn.
func (e *environment) run(cmd *cobra.Command, fn func(ctx context.Context, ws *workspace) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ws, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := ws.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close database: %w", closeErr)
		}
	}()
	return fn(ctx, ws)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseOptionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: want RFC3339", raw)
	}
	t = t.UTC()
	return &t, nil
}

// Package study parses study service configuration and composes the
// process: record store, config service, vision provider, domain service,
// timers, HTTP and websocket transport, and the gRPC health endpoint.
package study

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	entrypoint "github.com/louisbranch/study.space/internal/platform/cmd"
	"github.com/louisbranch/study.space/internal/platform/config"
	platformgrpc "github.com/louisbranch/study.space/internal/platform/grpc"
	"github.com/louisbranch/study.space/internal/platform/llm"
	"github.com/louisbranch/study.space/internal/platform/timeouts"
	"github.com/louisbranch/study.space/internal/services/study/app"
	"github.com/louisbranch/study.space/internal/services/study/appconfig"
	"github.com/louisbranch/study.space/internal/services/study/domain"
	"github.com/louisbranch/study.space/internal/services/study/realtime"
	"github.com/louisbranch/study.space/internal/services/study/render"
	"github.com/louisbranch/study.space/internal/services/study/storage/sqlite"
	"github.com/louisbranch/study.space/internal/services/study/timers"
	"github.com/louisbranch/study.space/internal/services/study/vision"
)

// EnvPrefix is prepended to every variable name in Config.
const EnvPrefix = "STUDY_SPACE_"

// TimersComponent is the health service name reported while the
// background clocks run.
const TimersComponent = "study.timers"

// Auth modes.
const (
	AuthModeJWT    = "jwt"
	AuthModeHeader = "header"
)

// Config holds study command configuration.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR"        envDefault:":8090"`
	HealthPort      int           `env:"HEALTH_PORT"      envDefault:"8091"`
	DBPath          string        `env:"DB_PATH"          envDefault:"data/study.db"`
	Timezone        string        `env:"TIMEZONE"         envDefault:"UTC"`
	AuthMode        string        `env:"AUTH_MODE"        envDefault:"jwt"`
	JWTSecret       string        `env:"JWT_SECRET"`
	JWTIssuer       string        `env:"JWT_ISSUER"       envDefault:"study.space"`
	AnalysisTimeout time.Duration `env:"ANALYSIS_TIMEOUT" envDefault:"30s"`
	StaleAfter      time.Duration `env:"STALE_AFTER"      envDefault:"30m"`
	MaxImageBytes   int64         `env:"MAX_IMAGE_BYTES"  envDefault:"4194304"`

	LLM llm.Config
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfigWithPrefix(&cfg, EnvPrefix); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "gRPC health port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "sqlite database path")
	fs.StringVar(&cfg.Timezone, "timezone", cfg.Timezone, "IANA time zone for daily budgets")
	fs.StringVar(&cfg.AuthMode, "auth-mode", cfg.AuthMode, "caller authentication: jwt or header")
	fs.StringVar(&cfg.LLM.Provider, "llm-provider", cfg.LLM.Provider, "vision provider: anthropic, openai, gemini, openrouter or mock")
	fs.DurationVar(&cfg.StaleAfter, "stale-after", cfg.StaleAfter, "inactivity before a session is finished")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the process cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("http address is required")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("health port %d is out of range", c.HealthPort)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db path is required")
	}
	switch c.AuthMode {
	case AuthModeJWT:
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("%sJWT_SECRET is required when auth mode is jwt", EnvPrefix)
		}
	case AuthModeHeader:
	default:
		return fmt.Errorf("unknown auth mode %q", c.AuthMode)
	}
	return c.LLM.Validate()
}

// Run builds the study app and serves until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceStudy, func(ctx context.Context) error {
		if err := run(ctx, cfg); err != nil {
			return fmt.Errorf("serve study: %w", err)
		}
		return nil
	})
}

func run(ctx context.Context, cfg Config) error {
	loc, err := config.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	hub := realtime.NewHub()
	configs := appconfig.New(store, domain.DefaultAppConfig(), hub, nil)
	loadCtx, cancel := context.WithTimeout(ctx, timeouts.StoreOpen)
	err = configs.Load(loadCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("load app config: %w", err)
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM, store)
	if err != nil {
		return fmt.Errorf("vision provider: %w", err)
	}
	log.Printf("vision provider %s model %s", cfg.LLM.Provider, provider.ModelID())

	tracker := timers.NewTracker()
	study := domain.NewService(domain.Deps{
		Store:           store,
		Config:          configs,
		Publisher:       hub,
		Analyzer:        vision.New(provider, vision.Config{}),
		Messages:        render.NewCatalog(),
		Streaks:         tracker,
		Location:        loc,
		AnalysisTimeout: cfg.AnalysisTimeout,
	})
	driver := timers.NewDriver(study, tracker, timers.Config{StaleAfter: cfg.StaleAfter}, nil)

	auth, err := newAuthenticator(cfg)
	if err != nil {
		return err
	}
	server := app.NewServer(cfg.HTTPAddr, app.NewHandler(app.Deps{
		Study:         study,
		Config:        configs,
		Hub:           hub,
		Auth:          auth,
		MaxImageBytes: cfg.MaxImageBytes,
	}))
	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
	}
	healthListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
	if err != nil {
		_ = httpListener.Close()
		return fmt.Errorf("listen health %d: %w", cfg.HealthPort, err)
	}
	health := platformgrpc.NewHealthServer(TimersComponent)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Serve(ctx, httpListener) })
	g.Go(func() error { return health.Serve(ctx, healthListener) })
	g.Go(func() error {
		health.SetServing(TimersComponent, true)
		defer health.SetServing(TimersComponent, false)
		return driver.Run(ctx)
	})
	return g.Wait()
}

func newAuthenticator(cfg Config) (app.Authenticator, error) {
	switch cfg.AuthMode {
	case AuthModeHeader:
		log.Printf("auth mode header: trusting caller identity headers")
		return app.HeaderAuthenticator{}, nil
	case AuthModeJWT:
		return app.NewJWTAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, nil)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}

package cmd

import (
	"context"
	"flag"
	"testing"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"CMD_TEST_MODE" envDefault:"server"`
}

const testPrefix = "STUDY_SPACE_"

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("STUDY_SPACE_CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("STUDY_SPACE_CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfgRef := testConfig{}
	if err := ParseConfigWithPrefix(&cfgRef, testPrefix); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfgRef.Address, "address", cfgRef.Address, "address")
	fs.StringVar(&cfgRef.Mode, "mode", cfgRef.Mode, "mode")

	if err := ParseArgs(fs, []string{"-address", "flag:9001"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfgRef.Address != "flag:9001" {
		t.Fatalf("expected flag value for address, got %q", cfgRef.Address)
	}
	if cfgRef.Mode != "env-mode" {
		t.Fatalf("expected env default mode, got %q", cfgRef.Mode)
	}
}

func TestParseConfigWithPrefixReadsEnv(t *testing.T) {
	t.Setenv("STUDY_SPACE_TEST_ADDRESS", "prefixed:9000")

	type prefixed struct {
		Address string `env:"TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	}
	cfg := prefixed{}
	if err := ParseConfigWithPrefix(&cfg, "STUDY_SPACE_"); err != nil {
		t.Fatalf("parse prefixed config: %v", err)
	}
	if cfg.Address != "prefixed:9000" {
		t.Fatalf("expected prefixed env address, got %q", cfg.Address)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	var cfg *testConfig
	if err := ParseConfigWithPrefix(cfg, testPrefix); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(nil, "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(nil, ServiceStudy, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryRunsLoopWhenTracingDisabled(t *testing.T) {
	t.Setenv("STUDY_SPACE_OTEL_ENABLED", "false")

	called := false
	err := RunWithTelemetry(context.Background(), ServiceStudy, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("run with telemetry: %v", err)
	}
	if !called {
		t.Fatal("expected run function to be called")
	}
}

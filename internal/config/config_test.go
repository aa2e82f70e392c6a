package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
)

func TestDefaultServerConfig_Valid(t *testing.T) {
	cfg := DefaultServerConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.UI {
		t.Error("dashboard should be enabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flakeci.yaml")
	content := `
addr: ":9090"
log_format: json
ui: false
database:
  driver: postgres
  dsn: postgres://ci@localhost/flakeci?sslmode=disable
scheduler:
  poll_interval: 15s
  default_check_interval: 600
evaluator:
  command: /run/current-system/sw/bin/nix-eval-jobs
  args: ["--workers", "4"]
  timeout: 20m
  max_concurrent: 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default info", cfg.LogLevel)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Driver = %q, want postgres", cfg.Database.Driver)
	}
	if !cfg.Scheduler.Enabled {
		t.Error("Scheduler.Enabled should keep its default")
	}
	if got := cfg.Scheduler.PollInterval.Std(); got != 15*time.Second {
		t.Errorf("PollInterval = %v, want 15s", got)
	}
	if got := cfg.Scheduler.DefaultCheckInterval.Std(); got != 10*time.Minute {
		t.Errorf("DefaultCheckInterval = %v, want 10m", got)
	}
	if got := cfg.Evaluator.Timeout.Std(); got != 20*time.Minute {
		t.Errorf("Timeout = %v, want 20m", got)
	}
	if len(cfg.Evaluator.Args) != 2 || cfg.Evaluator.MaxConcurrent != 2 {
		t.Errorf("Evaluator = %+v", cfg.Evaluator)
	}
	if cfg.UI {
		t.Error("ui: false in the file should disable the dashboard")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFile_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("evaluator:\n  timeout: soon\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"FLAKECI_ADDR":           ":7000",
		"FLAKECI_DB_DSN":         "/var/lib/flakeci/db.sqlite",
		"FLAKECI_EVAL_TIMEOUT":   "90s",
		"FLAKECI_MAX_CONCURRENT": "3",
		"FLAKECI_UI":             "false",
	}
	cfg := DefaultServerConfig()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Addr != ":7000" || cfg.Database.DSN != "/var/lib/flakeci/db.sqlite" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Evaluator.Timeout.Std() != 90*time.Second || cfg.Evaluator.MaxConcurrent != 3 {
		t.Errorf("Evaluator = %+v", cfg.Evaluator)
	}
	if cfg.UI {
		t.Error("FLAKECI_UI=false should disable the dashboard")
	}

	bad := DefaultServerConfig()
	err := bad.ApplyEnv(func(k string) string {
		if k == "FLAKECI_MAX_CONCURRENT" {
			return "many"
		}
		return ""
	})
	if err == nil {
		t.Error("expected error for non-numeric FLAKECI_MAX_CONCURRENT")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Addr = ""
	cfg.LogFormat = "xml"
	cfg.Database.Driver = "postgres"
	cfg.Evaluator.Command = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	merr, ok := err.(*multierror.Error)
	if !ok {
		t.Fatalf("error type = %T, want *multierror.Error", err)
	}
	if len(merr.Errors) != 4 {
		t.Errorf("got %d errors, want 4: %v", len(merr.Errors), err)
	}
	if !strings.Contains(err.Error(), "postgres requires a database dsn") {
		t.Errorf("missing dsn error in %v", err)
	}
}

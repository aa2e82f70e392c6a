package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"github.com/me/flakeci/internal/config"
	"github.com/me/flakeci/internal/coordinator"
	evalmocks "github.com/me/flakeci/internal/evaluator/mocks"
	"github.com/me/flakeci/internal/logging"
	"github.com/me/flakeci/internal/server"
	"github.com/me/flakeci/internal/store"
	"github.com/me/flakeci/pkg/model"
)

// startTestServer starts a server backed by an in-memory SQLite store and a
// mock evaluator, and returns its URL.
func startTestServer(t *testing.T) (string, store.Store, *evalmocks.MockRunner) {
	t.Helper()
	srvLogger := logging.Discard()
	st, err := store.NewSQLiteStore(":memory:", srvLogger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	runner := evalmocks.NewMockRunner(gomock.NewController(t))
	coord := coordinator.New(st, runner, srvLogger)
	srv := server.New(config.DefaultServerConfig(), st, coord, srvLogger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL, st, runner
}

func seedJobset(t *testing.T, st store.Store) *model.Jobset {
	t.Helper()
	ctx := context.Background()
	p := &model.Project{Name: "nixos", Description: "NixOS release"}
	if err := st.CreateProject(ctx, p); err != nil {
		t.Fatal(err)
	}
	js := &model.Jobset{ProjectID: p.ID, Name: "trunk", Flake: "github:nixos/nixpkgs", CheckInterval: time.Hour}
	if err := st.CreateJobset(ctx, js); err != nil {
		t.Fatal(err)
	}
	return js
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func TestCreateAndListProjects(t *testing.T) {
	url, _, _ := startTestServer(t)

	out, err := runCLI(t, "--server", url, "create-project", "nixos", "--description", "NixOS release")
	if err != nil {
		t.Fatalf("create-project: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Project created: 1 (nixos)") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = runCLI(t, "--server", url, "projects")
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	if !strings.Contains(out, "nixos") || !strings.Contains(out, "NixOS release") {
		t.Errorf("projects output missing project: %s", out)
	}
}

func TestProjects_Empty(t *testing.T) {
	url, _, _ := startTestServer(t)
	out, err := runCLI(t, "--server", url, "projects")
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	if !strings.Contains(out, "No projects found.") {
		t.Errorf("output = %s", out)
	}
}

func TestCreateJobsetAndShow(t *testing.T) {
	url, _, _ := startTestServer(t)
	if _, err := runCLI(t, "--server", url, "create-project", "nixos"); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "--server", url, "create-jobset", "1", "trunk",
		"--flake", "github:nixos/nixpkgs#hydraJobs", "--interval", "30m")
	if err != nil {
		t.Fatalf("create-jobset: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Jobset created: 1 (trunk)") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = runCLI(t, "--server", url, "jobsets", "1")
	if err != nil {
		t.Fatalf("jobsets: %v", err)
	}
	if !strings.Contains(out, "trunk") || !strings.Contains(out, "UNKNOWN") {
		t.Errorf("jobsets output = %s", out)
	}

	out, err = runCLI(t, "--server", url, "show", "1")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"Jobset: 1 (trunk)", "github:nixos/nixpkgs#hydraJobs", "30m0s", "Last checked:   -"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestTriggerCommand(t *testing.T) {
	url, st, runner := startTestServer(t)
	js := seedJobset(t, st)
	runner.EXPECT().Evaluate(gomock.Any(), js.Flake).Return(model.EvaluationResult{
		Outcome: model.EvaluationSuccess,
		Targets: []model.TargetOutcome{
			{AttrPath: "hello", DrvPath: "/nix/store/abc-hello.drv"},
			{AttrPath: "broken", Error: "undefined variable"},
		},
		Duration: 1200 * time.Millisecond,
	})

	out, err := runCLI(t, "--server", url, "trigger", "1")
	if err != nil {
		t.Fatalf("trigger: %v\n%s", err, out)
	}
	for _, want := range []string{"Jobset 1: SUCCEEDED", "2 targets (1 failed)", "+ hello", "! broken"} {
		if !strings.Contains(out, want) {
			t.Errorf("trigger output missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, "--server", url, "evaluations", "1")
	if err != nil {
		t.Fatalf("evaluations: %v", err)
	}
	if !strings.Contains(out, "success") {
		t.Errorf("evaluations output = %s", out)
	}
}

func TestTriggerCommand_EvaluationFailed(t *testing.T) {
	url, st, runner := startTestServer(t)
	seedJobset(t, st)
	runner.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(model.EvaluationResult{
		Outcome:  model.EvaluationFailure,
		Error:    "evaluation timed out after 10m0s",
		Duration: 10 * time.Minute,
	})

	out, err := runCLI(t, "--server", url, "trigger", "1")
	if err == nil {
		t.Fatal("expected error for failed evaluation")
	}
	if !strings.Contains(out, "Jobset 1: FAILED") || !strings.Contains(out, "timed out") {
		t.Errorf("output = %s", out)
	}
}

func TestTriggerCommand_AlreadyRunning(t *testing.T) {
	url, st, runner := startTestServer(t)
	js := seedJobset(t, st)
	js.State = model.JobsetStateEvaluating
	if err := st.UpdateJobset(context.Background(), js); err != nil {
		t.Fatal(err)
	}
	runner.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Times(0)

	out, err := runCLI(t, "--server", url, "trigger", "1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !strings.Contains(out, "already being evaluated") {
		t.Errorf("output = %s", out)
	}
}

func TestShow_NotFound(t *testing.T) {
	url, _, _ := startTestServer(t)
	_, err := runCLI(t, "--server", url, "show", "42")
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestInvalidID(t *testing.T) {
	_, err := runCLI(t, "--server", "http://127.0.0.1:0", "show", "abc")
	if err == nil || !strings.Contains(err.Error(), `invalid jobset id "abc"`) {
		t.Errorf("err = %v", err)
	}
}

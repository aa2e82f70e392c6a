package evaluator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/me/flakeci/internal/logging"
	"github.com/me/flakeci/pkg/model"
)

// fakeEvaluator writes an executable shell script standing in for nix-eval-jobs.
func fakeEvaluator(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-eval-jobs")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write fake evaluator: %v", err)
	}
	return path
}

func newRunner(t *testing.T, command string, timeout time.Duration) *NixEvalJobs {
	t.Helper()
	return NewNixEvalJobs(Config{Command: command, Timeout: timeout}, logging.Discard())
}

func TestNixEvalJobs_Command(t *testing.T) {
	n := NewNixEvalJobs(Config{Args: []string{"--workers", "2"}}, logging.Discard())

	got := n.Command("path:///home/ole/nixos#nixosConfigurations.host.config.system.build.toplevel")
	want := []string{"nix-eval-jobs", "--workers", "2", "--flake", "path:///home/ole/nixos#nixosConfigurations.host.config.system.build.toplevel"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("Command = %v, want %v", got, want)
	}

	got = n.Command("git+https://example.org/cfg")
	if got[len(got)-1] != "git+https://example.org/cfg#hydraJobs" {
		t.Errorf("default attribute not applied: %v", got)
	}
}

func TestNixEvalJobs_Success(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	script := fakeEvaluator(t, `echo "$@" > `+argsFile+`
echo '{"attr":"a","drvPath":"/nix/store/a.drv","outputs":{"out":"/nix/store/a"}}'
echo '{"attr":"b","drvPath":"/nix/store/b.drv"}'
echo '{"attr":"c","drvPath":"/nix/store/c.drv"}'`)

	res := newRunner(t, script, 10*time.Second).Evaluate(context.Background(), "github:owner/repo#checks")

	if !res.Succeeded() {
		t.Fatalf("outcome = %s (%s), want success", res.Outcome, res.Error)
	}
	if len(res.BuildTargets()) != 3 {
		t.Errorf("build targets = %d, want 3", len(res.BuildTargets()))
	}
	if res.Duration <= 0 {
		t.Error("duration not measured")
	}
	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	if strings.TrimSpace(string(args)) != "--flake github:owner/repo#checks" {
		t.Errorf("evaluator args = %q", args)
	}
}

func TestNixEvalJobs_PartialSuccess(t *testing.T) {
	script := fakeEvaluator(t, `echo '{"attr":"good","drvPath":"/nix/store/good.drv"}'
echo '{"attr":"bad","drvPa'`)

	res := newRunner(t, script, 10*time.Second).Evaluate(context.Background(), "path:/cfg")

	if !res.Succeeded() {
		t.Fatalf("outcome = %s (%s), want success", res.Outcome, res.Error)
	}
	if len(res.BuildTargets()) != 1 || len(res.FailedTargets()) != 1 {
		t.Errorf("build=%d failed=%d, want 1/1", len(res.BuildTargets()), len(res.FailedTargets()))
	}
}

func TestNixEvalJobs_NonZeroExit(t *testing.T) {
	script := fakeEvaluator(t, `echo "error: flake 'path:/cfg' does not provide attribute 'hydraJobs'" >&2
exit 1`)

	res := newRunner(t, script, 10*time.Second).Evaluate(context.Background(), "path:/cfg")

	if res.Succeeded() {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "exited with code 1") || !strings.Contains(res.Error, "does not provide attribute") {
		t.Errorf("Error = %q", res.Error)
	}
	if res.Duration <= 0 {
		t.Error("duration not measured on failure")
	}
}

func TestNixEvalJobs_MissingBinary(t *testing.T) {
	res := newRunner(t, filepath.Join(t.TempDir(), "does-not-exist"), time.Second).
		Evaluate(context.Background(), "path:/cfg")

	if res.Succeeded() {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "run evaluator") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestNixEvalJobs_NoOutput(t *testing.T) {
	script := fakeEvaluator(t, `echo "not json at all"`)

	res := newRunner(t, script, 10*time.Second).Evaluate(context.Background(), "path:/cfg")

	if res.Succeeded() {
		t.Fatal("expected failure when nothing parses")
	}
	if !strings.Contains(res.Error, "no parseable output") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestNixEvalJobs_Timeout(t *testing.T) {
	script := fakeEvaluator(t, `exec sleep 5`)

	start := time.Now()
	res := newRunner(t, script, 100*time.Millisecond).Evaluate(context.Background(), "path:/cfg")

	if res.Outcome != model.EvaluationFailure {
		t.Fatal("expected failure on timeout")
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Errorf("Error = %q", res.Error)
	}
	if time.Since(start) > 4*time.Second {
		t.Errorf("timeout not enforced, took %v", time.Since(start))
	}
	if res.Duration < 100*time.Millisecond {
		t.Errorf("Duration = %v, want >= timeout", res.Duration)
	}
}

func TestNixEvalJobs_EmptyReference(t *testing.T) {
	res := newRunner(t, "true", time.Second).Evaluate(context.Background(), "  ")
	if res.Succeeded() || res.Error != "empty flake reference" {
		t.Errorf("result = %+v", res)
	}
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{max: 5}
	b.Write([]byte("abc"))
	b.Write([]byte("defgh"))
	if got := b.String(); got != "defgh" {
		t.Errorf("tail = %q, want %q", got, "defgh")
	}
}

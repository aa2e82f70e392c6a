package evaluator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/me/flakeci/pkg/model"
)

// Config configures NixEvalJobs.
type Config struct {
	// Command is the evaluator binary (default "nix-eval-jobs").
	Command string
	// Args are passed before --flake.
	Args []string
	// Timeout bounds one evaluation (default 10m).
	Timeout time.Duration
	// DefaultAttribute is used for references without "#attr".
	DefaultAttribute string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Command:          "nix-eval-jobs",
		Timeout:          10 * time.Minute,
		DefaultAttribute: model.DefaultFlakeAttribute,
	}
}

// stderrTail is how much evaluator stderr is kept for error messages.
const stderrTail = 4 << 10

// NixEvalJobs runs nix-eval-jobs (or a compatible command) as a local process.
type NixEvalJobs struct {
	config Config
	logger *slog.Logger
}

// NewNixEvalJobs creates a runner; zero-valued fields in cfg take defaults.
func NewNixEvalJobs(cfg Config, logger *slog.Logger) *NixEvalJobs {
	def := DefaultConfig()
	if cfg.Command == "" {
		cfg.Command = def.Command
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.DefaultAttribute == "" {
		cfg.DefaultAttribute = def.DefaultAttribute
	}
	return &NixEvalJobs{
		config: cfg,
		logger: logger.With("component", "evaluator"),
	}
}

// Command returns the argv used to evaluate flakeRef.
func (n *NixEvalJobs) Command(flakeRef string) []string {
	uri, attr := model.SplitFlakeRef(flakeRef, n.config.DefaultAttribute)
	argv := make([]string, 0, len(n.config.Args)+3)
	argv = append(argv, n.config.Command)
	argv = append(argv, n.config.Args...)
	return append(argv, "--flake", uri+"#"+attr)
}

// Evaluate runs the evaluator against flakeRef and parses its output.
func (n *NixEvalJobs) Evaluate(ctx context.Context, flakeRef string) model.EvaluationResult {
	if uri, _ := model.SplitFlakeRef(flakeRef, ""); uri == "" {
		return failure(0, "empty flake reference")
	}

	ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
	defer cancel()

	argv := n.Command(flakeRef)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = 5 * time.Second

	var stdoutBuf bytes.Buffer
	stderrBuf := &tailBuffer{max: stderrTail}
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = stderrBuf

	n.logger.Debug("evaluating", "command", argv, "timeout", n.config.Timeout)

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	targets, parsed, parseErr := ParseOutput(&stdoutBuf)

	if ctx.Err() == context.DeadlineExceeded {
		return failure(elapsed, fmt.Sprintf("evaluation timed out after %s", n.config.Timeout), targets...)
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		return failure(elapsed, withStderr(fmt.Sprintf("evaluator exited with code %d", exitErr.ExitCode()), stderrBuf), targets...)
	default:
		// Binary not found, permission denied, ...
		return failure(elapsed, fmt.Sprintf("run evaluator: %v", runErr))
	}

	if parseErr != nil {
		return failure(elapsed, fmt.Sprintf("read evaluator output: %v", parseErr), targets...)
	}
	if parsed == 0 {
		return failure(elapsed, withStderr("evaluator produced no parseable output", stderrBuf), targets...)
	}

	result := model.EvaluationResult{
		Outcome:  model.EvaluationSuccess,
		Targets:  targets,
		Duration: elapsed,
	}
	n.logger.Debug("evaluation finished",
		"flake", flakeRef,
		"targets", len(targets),
		"failed_targets", len(result.FailedTargets()),
		"duration", elapsed,
	)
	return result
}

func failure(d time.Duration, msg string, targets ...model.TargetOutcome) model.EvaluationResult {
	return model.EvaluationResult{
		Outcome:  model.EvaluationFailure,
		Error:    msg,
		Targets:  targets,
		Duration: d,
	}
}

func withStderr(msg string, stderr *tailBuffer) string {
	tail := strings.TrimSpace(stderr.String())
	if tail == "" {
		return msg
	}
	return msg + ": " + tail
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }

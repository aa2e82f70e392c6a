// Package evaluator runs the external flake evaluator and turns its output
// into per-target outcomes.
package evaluator

import (
	"context"

	"github.com/me/flakeci/pkg/model"
)

//go:generate mockgen -package mocks -destination mocks/mocks_runner.go github.com/me/flakeci/internal/evaluator Runner

// Runner evaluates a flake reference. Implementations hold no shared state
// and may be called concurrently for different jobsets.
//
// Evaluate never returns a Go error: every failure, including a timeout, is
// reported through the result's Outcome and always carries a Duration.
type Runner interface {
	Evaluate(ctx context.Context, flakeRef string) model.EvaluationResult
}

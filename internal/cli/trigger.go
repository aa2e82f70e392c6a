package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/flakeci/pkg/model"
)

type triggerData struct {
	Jobset     *model.Jobset     `json:"jobset"`
	Evaluation *model.Evaluation `json:"evaluation"`
}

func printEvaluation(out io.Writer, ev *model.Evaluation) {
	var failed int
	for _, t := range ev.Targets {
		if !t.Succeeded() {
			failed++
		}
	}
	fmt.Fprintf(out, "Evaluation %d: %s in %s, %d targets (%d failed)\n",
		ev.ID, ev.Outcome, time.Duration(ev.DurationMS)*time.Millisecond, len(ev.Targets), failed)
	if ev.Error != "" {
		fmt.Fprintf(out, "  Error: %s\n", ev.Error)
	}
	for _, t := range ev.Targets {
		if t.Succeeded() {
			fmt.Fprintf(out, "  + %s  %s\n", t.AttrPath, t.DrvPath)
		} else {
			fmt.Fprintf(out, "  ! %s  %s\n", t.AttrPath, t.Error)
		}
	}
}

func newTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <jobset-id>",
		Short: "Evaluate a jobset now and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("jobset", args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			resp, err := client.Post(fmt.Sprintf("/api/v1/jobsets/%d/trigger", id), nil)
			var apiErr *model.APIError
			switch {
			case err == nil:
			case errors.As(err, &apiErr) && apiErr.Code == model.ErrConflict:
				fmt.Fprintf(out, "Jobset %d is already being evaluated.\n", id)
				return nil
			case errors.As(err, &apiErr) && apiErr.Code == model.ErrEvaluationFailed && resp != nil:
				// The failed evaluation is still recorded; show it before failing.
			default:
				return fmt.Errorf("trigger jobset: %w", err)
			}

			var data triggerData
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			if data.Jobset != nil {
				fmt.Fprintf(out, "Jobset %d: %s\n", data.Jobset.ID, data.Jobset.State)
			}
			if data.Evaluation != nil {
				printEvaluation(out, data.Evaluation)
			}
			if err != nil {
				return fmt.Errorf("trigger jobset: %w", err)
			}
			return nil
		},
	}
}

func newEvaluationsCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "evaluations <jobset-id>",
		Short: "List a jobset's evaluations, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("jobset", args[0])
			if err != nil {
				return err
			}
			resp, err := client.Get(fmt.Sprintf("/api/v1/jobsets/%d/evaluations?limit=%d&offset=%d", id, limit, offset))
			if err != nil {
				return fmt.Errorf("list evaluations: %w", err)
			}

			var evals []model.Evaluation
			if err := json.Unmarshal(resp.Data, &evals); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(evals) == 0 {
				fmt.Fprintln(out, "No evaluations found.")
				return nil
			}

			fmt.Fprintf(out, "%-6s  %-19s  %-8s  %-10s  %-7s  %s\n", "ID", "STARTED", "OUTCOME", "TOOK", "TARGETS", "ERROR")
			fmt.Fprintf(out, "%-6s  %-19s  %-8s  %-10s  %-7s  %s\n", "--", "-------", "-------", "----", "-------", "-----")
			for _, ev := range evals {
				fmt.Fprintf(out, "%-6d  %-19s  %-8s  %-10s  %-7d  %s\n",
					ev.ID, ev.StartedAt.Local().Format(time.DateTime), ev.Outcome,
					time.Duration(ev.DurationMS)*time.Millisecond, len(ev.Targets), ev.Error)
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(evals), resp.Pagination.Total)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of evaluations")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of evaluations to skip")
	return cmd
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/flakeci/pkg/model"
)

// parseID validates a numeric id argument before it is put in a URL.
func parseID(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, arg)
	}
	return id, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func formatTook(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return (time.Duration(*ms) * time.Millisecond).String()
}

func newJobsetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobsets <project-id>",
		Short: "List the jobsets of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return err
			}
			resp, err := client.Get(fmt.Sprintf("/api/v1/projects/%d/jobsets", id))
			if err != nil {
				return fmt.Errorf("list jobsets: %w", err)
			}

			var jobsets []model.Jobset
			if err := json.Unmarshal(resp.Data, &jobsets); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(jobsets) == 0 {
				fmt.Fprintln(out, "No jobsets found.")
				return nil
			}

			fmt.Fprintf(out, "%-6s  %-20s  %-11s  %-19s  %-10s  %s\n", "ID", "NAME", "STATE", "LAST CHECKED", "TOOK", "FLAKE")
			fmt.Fprintf(out, "%-6s  %-20s  %-11s  %-19s  %-10s  %s\n", "--", "----", "-----", "------------", "----", "-----")
			for _, js := range jobsets {
				fmt.Fprintf(out, "%-6d  %-20s  %-11s  %-19s  %-10s  %s\n",
					js.ID, js.Name, js.State, formatTime(js.LastChecked), formatTook(js.EvaluationTook), js.Flake)
			}
			return nil
		},
	}
}

func printJobset(out io.Writer, js *model.Jobset) {
	interval := "default"
	if js.CheckInterval > 0 {
		interval = js.CheckInterval.String()
	}
	fmt.Fprintf(out, "Jobset: %d (%s)\n", js.ID, js.Name)
	fmt.Fprintf(out, "  Project:        %d\n", js.ProjectID)
	fmt.Fprintf(out, "  Flake:          %s\n", js.Flake)
	fmt.Fprintf(out, "  State:          %s\n", js.State)
	fmt.Fprintf(out, "  Check interval: %s\n", interval)
	fmt.Fprintf(out, "  Last checked:   %s\n", formatTime(js.LastChecked))
	fmt.Fprintf(out, "  Last evaluated: %s\n", formatTime(js.LastEvaluated))
	fmt.Fprintf(out, "  Took:           %s\n", formatTook(js.EvaluationTook))
	if js.Description != "" {
		fmt.Fprintf(out, "  Description:    %s\n", js.Description)
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <jobset-id>",
		Short: "Show a jobset's state and timing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("jobset", args[0])
			if err != nil {
				return err
			}
			resp, err := client.Get(fmt.Sprintf("/api/v1/jobsets/%d", id))
			if err != nil {
				return fmt.Errorf("get jobset: %w", err)
			}

			var js model.Jobset
			if err := json.Unmarshal(resp.Data, &js); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			printJobset(cmd.OutOrStdout(), &js)
			return nil
		},
	}
}

func newCreateJobsetCmd() *cobra.Command {
	var (
		flake       string
		description string
		interval    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "create-jobset <project-id> <name>",
		Short: "Create a jobset in a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return err
			}
			body := map[string]any{
				"name":        args[1],
				"flake":       flake,
				"description": description,
			}
			if interval > 0 {
				body["check_interval"] = interval.String()
			}
			resp, err := client.Post(fmt.Sprintf("/api/v1/projects/%d/jobsets", projectID), body)
			if err != nil {
				return fmt.Errorf("create jobset: %w", err)
			}

			var js model.Jobset
			if err := json.Unmarshal(resp.Data, &js); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Jobset created: %d (%s)\n", js.ID, js.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&flake, "flake", "", "Flake reference, e.g. github:owner/repo#hydraJobs (required)")
	cmd.Flags().StringVar(&description, "description", "", "Jobset description")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Check interval (0 uses the server default)")
	cmd.MarkFlagRequired("flake")
	return cmd
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/flakeci/pkg/model"
)

func newProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/projects")
			if err != nil {
				return fmt.Errorf("list projects: %w", err)
			}

			var projects []model.Project
			if err := json.Unmarshal(resp.Data, &projects); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(projects) == 0 {
				fmt.Fprintln(out, "No projects found.")
				return nil
			}

			fmt.Fprintf(out, "%-6s  %-24s  %s\n", "ID", "NAME", "DESCRIPTION")
			fmt.Fprintf(out, "%-6s  %-24s  %s\n", "--", "----", "-----------")
			for _, p := range projects {
				fmt.Fprintf(out, "%-6d  %-24s  %s\n", p.ID, p.Name, p.Description)
			}
			return nil
		},
	}
}

func newCreateProjectCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create-project <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/projects", map[string]any{
				"name":        args[0],
				"description": description,
			})
			if err != nil {
				return fmt.Errorf("create project: %w", err)
			}

			var p model.Project
			if err := json.Unmarshal(resp.Data, &p); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project created: %d (%s)\n", p.ID, p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Project description")
	return cmd
}

package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/flakeci/internal/logging"
)

var (
	flagServer    string
	flagToken     string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking FLAKECI_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("FLAKECI_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the flakectl CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flakectl",
		Short: "flakectl: inspect and trigger flake jobset evaluations",
		Long:  "flakectl talks to a flakeci server to list projects and jobsets, trigger evaluations and read their history.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.New(logging.Options{
				Level:  logging.ParseLevel(flagLogLevel),
				Format: flagLogFormat,
				Output: cmd.ErrOrStderr(),
			})
			client = NewClient(flagServer, logger)
			client.Token = flagToken
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "flakeci server URL (or FLAKECI_SERVER env)")
	root.PersistentFlags().StringVar(&flagToken, "token", os.Getenv("FLAKECI_API_TOKEN"), "API token for write requests (or FLAKECI_API_TOKEN env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newProjectsCmd(),
		newCreateProjectCmd(),
		newJobsetsCmd(),
		newShowCmd(),
		newCreateJobsetCmd(),
		newTriggerCmd(),
		newEvaluationsCmd(),
	)

	return root
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"squire/internal/app"
	"squire/internal/config"
	"squire/internal/logging"
)

var (
	verbose bool

	cfg    config.Config
	logger *zap.Logger
)

// rootCmd loads configuration and the logger before any subcommand runs.
var rootCmd = &cobra.Command{
	Use:   "squire",
	Short: "Squire - PR, meeting and team review analysis over a topic broker",
	Long: `Squire runs a set of analysis agents that talk over broker topics.

A workflow starts with POST /api/analysis/start. The PR and Meeting agents
analyze in parallel, the Join agent waits for both, and the Manager agent
synthesizes the final report served at GET /api/analysis/report.

Run without arguments to serve the API with every agent in-process.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), app.Serve)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run every agent in this process",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), app.Serve)
	},
}

// agentCmd runs agents without the API, sharing the broker queue directory
// with the serving process.
var agentCmd = &cobra.Command{
	Use:   "agent <name>...",
	Short: "Run one or more agents as a separate process",
	Long: `Runs the named agents against the shared broker without the HTTP API.

Agents:
  pr       - analyzes the most recently merged pull request
  meeting  - analyzes meeting minutes from Google Docs
  team     - analyzes the latest team review
  join     - waits for PR and meeting results and forwards the pair
  manager  - synthesizes and stores the final report
  notify   - posts each finished report to a GroupMe bot`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), app.RunOptions{Agents: args})
	},
}

func run(ctx context.Context, opts app.RunOptions) error {
	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	return a.Run(ctx, opts)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, agentCmd, reviewCmd, reportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

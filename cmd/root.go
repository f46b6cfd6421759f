package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"land-crawler/config"
	"land-crawler/models"
	"land-crawler/utils"
)

type rootFlags struct {
	targets  []string
	runID    string
	logLevel string
}

var flags rootFlags

var rootCmd = &cobra.Command{
	Use:   "crawler [complex numbers...]",
	Short: "Collects complex overviews and listings from Naver Land",
	Long: `crawler loads each complex page in a headless browser, captures the overview
and article API responses the page makes, and exports them as JSON and CSV.

Complex numbers come from the arguments, --targets, or COMPLEX_NUMBERS.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := setup()
		targets := resolveTargets(cfg, args)
		if len(targets) == 0 {
			return fmt.Errorf("no complex numbers given")
		}
		return runOnce(cmd.Context(), cfg, logger, targets, cfg.RunID)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&flags.targets, "targets", nil, "comma-separated complex numbers")
	rootCmd.PersistentFlags().StringVar(&flags.runID, "run-id", "", "identifier recorded with the run status")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	rootCmd.AddCommand(scheduleCmd)
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func setup() (*config.Config, *utils.Logger) {
	cfg := config.Load()
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.runID != "" {
		cfg.RunID = flags.runID
	}
	return cfg, utils.NewLoggerWithLevel(os.Stderr, utils.ParseLevel(cfg.LogLevel))
}

// resolveTargets prefers positional arguments, then --targets, then the configured list.
func resolveTargets(cfg *config.Config, args []string) []models.Target {
	var raw []string
	switch {
	case len(args) > 0:
		for _, a := range args {
			raw = append(raw, config.SplitList(a)...)
		}
	case len(flags.targets) > 0:
		raw = flags.targets
	default:
		raw = cfg.Targets
	}

	out := make([]models.Target, 0, len(raw))
	for _, r := range raw {
		out = append(out, models.Target(r))
	}
	return out
}

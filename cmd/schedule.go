package cmd

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"land-crawler/utils"
)

var scheduleSpec string

var scheduleCmd = &cobra.Command{
	Use:   "schedule [complex numbers...]",
	Short: "Runs the crawl on the SCHEDULE cron spec until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := setup()
		if scheduleSpec != "" {
			cfg.Schedule = scheduleSpec
		}
		targets := resolveTargets(cfg, args)
		if len(targets) == 0 {
			return fmt.Errorf("no complex numbers given")
		}

		ctx := cmd.Context()
		c := cron.New(
			cron.WithLogger(cronLogger{logger: logger}),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: logger})),
		)
		_, err := c.AddFunc(cfg.Schedule, func() {
			// each scheduled run gets its own id
			if err := runOnce(ctx, cfg, logger, targets, ""); err != nil {
				logger.Error("Scheduled run failed: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
		}

		logger.Info("Scheduler started (%s) for %d complexes", cfg.Schedule, len(targets))
		c.Start()
		<-ctx.Done()
		logger.Info("Shutting down scheduler, waiting for a running crawl to finish")
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleSpec, "schedule", "", "cron spec (overrides SCHEDULE)")
}

// cronLogger adapts utils.Logger to cron.Logger.
type cronLogger struct {
	logger *utils.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("[cron] %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("[cron] %s: %v %v", msg, err, keysAndValues)
}

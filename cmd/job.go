package cmd

import (
	"context"
	"fmt"
	"time"

	"land-crawler/config"
	"land-crawler/models"
	"land-crawler/scraper/browser"
	"land-crawler/scraper/naver"
	"land-crawler/services"
	"land-crawler/storage"
	"land-crawler/utils"
)

// runOnce performs one full crawl: status sinks, orchestration, exports and summary.
func runOnce(ctx context.Context, cfg *config.Config, logger *utils.Logger, targets []models.Target, runID string) error {
	started := time.Now()
	if runID == "" {
		runID = started.Format("20060102-150405")
	}
	logger.Info("=== Land crawl %s starting: %d complexes ===", runID, len(targets))

	statusFile, err := storage.NewStatusFile(cfg.StatusFile)
	if err != nil {
		return err
	}
	sinks := []storage.StatusSink{statusFile}

	var pg *storage.PostgresStore
	if cfg.DatabaseURL != "" {
		pg, err = storage.NewPostgresStore(ctx, cfg.DatabaseURL, 3)
		if err != nil {
			logger.Warn("PostgreSQL unavailable, status goes to %s only: %v", cfg.StatusFile, err)
		} else {
			defer pg.Close()
			sinks = append(sinks, pg)
		}
	}

	reporter := services.NewStatusReporter(runID, logger, sinks...)
	orchestrator := naver.NewOrchestrator(cfg, logger, browser.NewChromeFactory(cfg, logger), reporter)
	results, runErr := orchestrator.Run(ctx, targets)
	if runErr != nil {
		logger.Error("Run %s aborted: %v", runID, runErr)
	}

	if len(results) > 0 {
		exports := exportWriters(cfg, logger, len(results), started)
		for _, w := range exports {
			if err := w.Write(results); err != nil {
				logger.Error("Export failed: %v", err)
			}
			if err := w.Close(); err != nil {
				logger.Warn("Closing export: %v", err)
			}
		}
		if pg != nil {
			if err := pg.Write(results); err != nil {
				logger.Error("PostgreSQL write failed: %v", err)
			} else {
				logger.Info("Results stored in PostgreSQL (tables: complexes, articles)")
			}
		}

		summary := services.NewSummaryService(logger)
		summary.Print(summary.Generate(results))
	}

	logger.Info("=== Land crawl %s finished in %v ===", runID, time.Since(started).Round(time.Second))
	if runErr != nil {
		return fmt.Errorf("run %s: %w", runID, runErr)
	}
	return nil
}

func exportWriters(cfg *config.Config, logger *utils.Logger, count int, at time.Time) []storage.ResultWriter {
	var writers []storage.ResultWriter

	jsonPath := storage.OutputPath(cfg.OutputDir, count, at, "json")
	if jw, err := storage.NewJSONWriter(jsonPath); err != nil {
		logger.Error("Failed to create JSON writer: %v", err)
	} else {
		logger.Info("Results → %s", jsonPath)
		writers = append(writers, jw)
	}

	csvPath := storage.OutputPath(cfg.OutputDir, count, at, "csv")
	if cw, err := storage.NewCSVWriter(csvPath); err != nil {
		logger.Error("Failed to create CSV writer: %v", err)
	} else {
		logger.Info("Overview → %s", csvPath)
		writers = append(writers, cw)
	}
	return writers
}

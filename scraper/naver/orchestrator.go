// Package naver collects complex overviews and article listings from new.land.naver.com
// by observing the API responses the site's own pages make.
package naver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"land-crawler/config"
	"land-crawler/models"
	"land-crawler/scraper/browser"
	"land-crawler/utils"
)

// ProgressReporter receives run progress. services.StatusReporter implements it.
type ProgressReporter interface {
	Start(total int)
	BeginTarget(t models.Target, message string)
	Progress(items int)
	TargetDone(t models.Target, items int, failed bool)
	Complete(message string)
	Fail(err error)
}

type nopReporter struct{}

func (nopReporter) Start(int)                           {}
func (nopReporter) BeginTarget(models.Target, string)   {}
func (nopReporter) Progress(int)                        {}
func (nopReporter) TargetDone(models.Target, int, bool) {}
func (nopReporter) Complete(string)                     {}
func (nopReporter) Fail(error)                          {}

// Orchestrator runs Targets one after another on a single browser surface.
type Orchestrator struct {
	cfg      *config.Config
	logger   *utils.Logger
	factory  browser.Factory
	reporter ProgressReporter
	retry    *utils.RetryConfig

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewOrchestrator(cfg *config.Config, logger *utils.Logger, factory browser.Factory, reporter ProgressReporter) *Orchestrator {
	if reporter == nil {
		reporter = nopReporter{}
	}
	o := &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		factory:  factory,
		reporter: reporter,
		sleep:    utils.SleepContext,
		now:      time.Now,
	}
	o.retry = &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   cfg.RetryBaseDelay,
		Logger:      logger,
		Abort:       isPermanent,
		Sleep:       o.pause,
	}
	return o
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) error {
	return o.sleep(ctx, d)
}

// Run processes targets in order and returns one record per processed Target.
// An error is returned only for run-fatal conditions; results gathered until then are still returned.
func (o *Orchestrator) Run(ctx context.Context, targets []models.Target) ([]models.TargetResult, error) {
	o.reporter.Start(len(targets))
	o.logger.Info("[orchestrator] starting run with %d targets", len(targets))

	surface, err := o.factory(ctx)
	if err != nil {
		err = fmt.Errorf("open browser: %w", err)
		o.reporter.Fail(err)
		return nil, err
	}

	results := make([]models.TargetResult, 0, len(targets))
	failed := 0
	for i, t := range targets {
		res, next, err := o.runTarget(ctx, surface, t)
		surface = next
		results = append(results, res)
		if res.Failed() {
			failed++
		}
		o.reporter.TargetDone(t, res.ArticleCount(), res.Failed())

		if err != nil {
			o.closeSurface(surface)
			o.reporter.Fail(err)
			return results, err
		}
		if i < len(targets)-1 {
			if err := o.sleep(ctx, o.cfg.RequestDelay*2); err != nil {
				o.closeSurface(surface)
				o.reporter.Fail(err)
				return results, err
			}
		}
	}

	if err := o.closeSurface(surface); err != nil {
		err = fmt.Errorf("close browser: %w", err)
		o.reporter.Fail(err)
		return results, err
	}

	msg := fmt.Sprintf("%d targets processed, %d failed", len(results), failed)
	o.logger.Info("[orchestrator] %s", msg)
	o.reporter.Complete(msg)
	return results, nil
}

func (o *Orchestrator) closeSurface(s browser.Surface) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

// runTarget retries a whole Target when the surface is lost, recreating it in between.
// The returned surface is the one to use next; the error is run-fatal.
func (o *Orchestrator) runTarget(ctx context.Context, surface browser.Surface, t models.Target) (models.TargetResult, browser.Surface, error) {
	maxAttempts := o.cfg.MaxTargetAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var res models.TargetResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res = models.TargetResult{Target: t, Attempts: attempt}
		err := o.processTarget(ctx, surface, t, &res)
		res.CrawledAt = o.now()
		if err == nil {
			o.logger.Info("[orchestrator] %s: done, %d items", t, res.ArticleCount())
			return res, surface, nil
		}

		res.Overview, res.Articles = nil, nil
		res.Error = err.Error()
		if ctx.Err() != nil {
			return res, surface, ctx.Err()
		}
		if !IsContextFatal(err) {
			o.logger.Error("[orchestrator] %s: %v", t, err)
			return res, surface, nil
		}

		o.logger.Warn("[orchestrator] %s: browser context lost (attempt %d/%d): %v", t, attempt, maxAttempts, err)
		surface, err = o.recreate(ctx, surface)
		if err != nil {
			return res, nil, err
		}
	}
	o.logger.Error("[orchestrator] %s: giving up after %d attempts: %s", t, maxAttempts, res.Error)
	return res, surface, nil
}

func (o *Orchestrator) recreate(ctx context.Context, old browser.Surface) (browser.Surface, error) {
	if old != nil {
		if err := old.Close(); err != nil {
			o.logger.Debug("[orchestrator] closing lost surface: %v", err)
		}
	}
	s, err := o.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("recreate browser: %w", err)
	}
	return s, nil
}

// processTarget walks Validating, FetchingOverview, Delaying and CollectingArticles.
// Phase data that is merely unavailable is left absent; other errors fail the Target.
func (o *Orchestrator) processTarget(ctx context.Context, surface browser.Surface, t models.Target, res *models.TargetResult) error {
	if err := ValidateTarget(t); err != nil {
		return err
	}

	o.reporter.BeginTarget(t, "fetching overview")
	fetcher := NewOverviewFetcher(surface, o.cfg, o.logger)
	overview, err := utils.Retry(ctx, o.retry, fmt.Sprintf("overview %s", t), func(ctx context.Context) (*models.OverviewRecord, error) {
		return fetcher.Fetch(ctx, t)
	}, func(r *models.OverviewRecord) bool { return r == nil })
	switch {
	case err == nil:
		res.Overview = overview
	case errors.Is(err, utils.ErrNoResult):
		o.logger.Warn("[orchestrator] %s: overview unavailable, continuing without it", t)
	case errors.Is(err, ErrMalformedOverview):
		o.logger.Warn("[orchestrator] %s: %v, continuing without it", t, err)
	default:
		return err
	}

	if err := o.sleep(ctx, o.cfg.RequestDelay); err != nil {
		return err
	}

	o.reporter.BeginTarget(t, "collecting articles")
	collector := NewArticleCollector(surface, o.cfg, o.logger)
	collector.sleep = o.sleep
	collector.now = o.now
	articles, err := utils.Retry(ctx, o.retry, fmt.Sprintf("articles %s", t), func(ctx context.Context) (*models.CollectionResult, error) {
		return collector.Collect(ctx, t, o.reporter.Progress)
	}, nil)
	switch {
	case err == nil:
		res.Articles = articles
	case errors.Is(err, ErrContainerNotFound):
		o.logger.Warn("[orchestrator] %s: article list not found, continuing without articles", t)
	default:
		return err
	}
	return nil
}

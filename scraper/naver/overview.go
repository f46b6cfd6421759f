package naver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"land-crawler/config"
	"land-crawler/models"
	"land-crawler/scraper/browser"
	"land-crawler/utils"
)

// FailureShape classifies where the page ended up when the overview never arrived.
type FailureShape string

const (
	ShapeErrorPage      FailureShape = "error-page"
	ShapeRedirectedAway FailureShape = "redirected-away"
	ShapeNoResponse     FailureShape = "no-response"
	ShapeUnknown        FailureShape = "unknown"
)

var errorPageMarkers = []string{"/404", "error", "notfound", "not-found"}

func classifyFailure(location string, t models.Target) FailureShape {
	if location == "" {
		return ShapeUnknown
	}
	lower := strings.ToLower(location)
	for _, m := range errorPageMarkers {
		if strings.Contains(lower, m) {
			return ShapeErrorPage
		}
	}
	path := location
	if u, err := url.Parse(location); err == nil {
		path = u.Path
	}
	if !hasPathPrefix(path, "/complexes/"+string(t)) {
		return ShapeRedirectedAway
	}
	return ShapeNoResponse
}

// OverviewFetcher loads the complex page and returns the overview the page requests.
type OverviewFetcher struct {
	surface           browser.Surface
	logger            *utils.Logger
	baseURL           string
	timeout           time.Duration
	screenshotTimeout time.Duration
	diagnosticsDir    string
	now               func() time.Time
}

func NewOverviewFetcher(surface browser.Surface, cfg *config.Config, logger *utils.Logger) *OverviewFetcher {
	dir := ""
	if cfg.OutputDir != "" {
		dir = filepath.Join(cfg.OutputDir, "diagnostics")
	}
	return &OverviewFetcher{
		surface:           surface,
		logger:            logger,
		baseURL:           cfg.BaseURL,
		timeout:           cfg.Timeout,
		screenshotTimeout: cfg.ScreenshotTimeout,
		diagnosticsDir:    dir,
		now:               time.Now,
	}
}

// Fetch returns (nil, nil) when no overview response arrives in time, after recording diagnostics.
// A body that cannot be decoded yields ErrMalformedOverview.
func (f *OverviewFetcher) Fetch(ctx context.Context, t models.Target) (*models.OverviewRecord, error) {
	got := make(chan *browser.Response, 1)
	sub := f.surface.Subscribe(MatchOverview(t), func(r *browser.Response) {
		select {
		case got <- r:
		default:
		}
	})
	defer f.surface.Unsubscribe(sub)

	waitCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	pageURL := ComplexPageURL(f.baseURL, t)
	f.logger.Debug("[overview] %s: loading %s", t, pageURL)
	if err := f.surface.Navigate(waitCtx, pageURL, browser.WaitLoad); err != nil && waitCtx.Err() == nil {
		return nil, fmt.Errorf("overview %s: %w", t, err)
	}

	var resp *browser.Response
	select {
	case resp = <-got:
	default:
		select {
		case resp = <-got:
		case <-waitCtx.Done():
		}
	}

	if resp == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f.diagnose(ctx, t)
		return nil, nil
	}

	if resp.Status >= 400 {
		return nil, fmt.Errorf("overview %s: status %d", t, resp.Status)
	}
	bodyCtx, bodyCancel := context.WithTimeout(ctx, f.timeout)
	defer bodyCancel()
	body, err := resp.Body(bodyCtx)
	if err != nil {
		return nil, fmt.Errorf("overview %s: %w", t, err)
	}
	var record models.OverviewRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("overview %s: %w: %v", t, ErrMalformedOverview, err)
	}
	f.logger.Info("[overview] %s: %q (%s households)", t, record.ComplexName, record.TotalHouseHoldCount)
	return &record, nil
}

// diagnose logs where the page is and saves a screenshot, bounded by the screenshot timeout.
func (f *OverviewFetcher) diagnose(ctx context.Context, t models.Target) {
	dctx, cancel := context.WithTimeout(ctx, f.screenshotTimeout)
	defer cancel()

	location, err := f.surface.Location(dctx)
	if err != nil {
		f.logger.Debug("[overview] %s: location unavailable: %v", t, err)
	}
	title, _ := f.surface.Title(dctx)
	shape := classifyFailure(location, t)
	f.logger.Warn("[overview] %s: no overview response within %v (%s) url=%q title=%q",
		t, f.timeout, shape, location, title)

	if f.diagnosticsDir == "" {
		return
	}
	png, err := f.surface.Screenshot(dctx)
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			f.logger.Debug("[overview] %s: screenshot failed: %v", t, err)
		}
		return
	}
	if err := os.MkdirAll(f.diagnosticsDir, 0o755); err != nil {
		f.logger.Warn("[overview] %s: cannot create %s: %v", t, f.diagnosticsDir, err)
		return
	}
	name := fmt.Sprintf("%s_%s.png", t, f.now().Format("20060102_150405"))
	path := filepath.Join(f.diagnosticsDir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		f.logger.Warn("[overview] %s: write screenshot: %v", t, err)
		return
	}
	f.logger.Info("[overview] %s: screenshot saved to %s", t, path)
}

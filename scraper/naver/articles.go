package naver

import (
	"context"
	"fmt"
	"time"

	"land-crawler/config"
	"land-crawler/models"
	"land-crawler/scraper/browser"
	"land-crawler/utils"
)

// articleTabSelectors open the listings tab when the page lands elsewhere.
var articleTabSelectors = []string{
	`a[href*="articleList"]`,
	`a[href*="article"]`,
	`[role="tab"][aria-controls*="article"]`,
}

const groupingScript = `(() => {
  const want = %t;
  const label = Array.from(document.querySelectorAll('label'))
    .find(l => (l.textContent || '').includes('동일매물'));
  const input = document.querySelector('#address_group2') ||
    (label && (label.control || label.querySelector('input[type=checkbox]')));
  if (!input) return false;
  if (input.checked !== want) (label || input).click();
  return input.checked === want;
})()`

// ArticleCollector scrolls the article list of one complex and returns what the page fetched.
type ArticleCollector struct {
	surface  browser.Surface
	cfg      *config.Config
	logger   *utils.Logger
	scroller *ScrollDriver

	tabSelectors []string
	clickTimeout time.Duration
	tabSettle    time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

func NewArticleCollector(surface browser.Surface, cfg *config.Config, logger *utils.Logger) *ArticleCollector {
	return &ArticleCollector{
		surface:      surface,
		cfg:          cfg,
		logger:       logger,
		scroller:     NewScrollDriver(surface, cfg.ScrollSelectors, cfg.ScrollStep),
		tabSelectors: articleTabSelectors,
		clickTimeout: 3 * time.Second,
		tabSettle:    3 * time.Second,
		sleep:        utils.SleepContext,
		now:          time.Now,
	}
}

// Collect captures every articles response for t while scrolling until the termination policy stops.
// progress, when set, receives the running item count every StatusEverySteps steps.
func (c *ArticleCollector) Collect(ctx context.Context, t models.Target, progress func(items int)) (*models.CollectionResult, error) {
	acc := NewAccumulator()
	acc.now = c.now
	capture := NewResponseCapture(c.surface, ArticleMatcher{Target: t}, acc, c.logger)
	capture.sleep = c.sleep
	capture.Start()
	defer capture.Stop()

	if err := c.surface.Navigate(ctx, ComplexPageURL(c.cfg.BaseURL, t), browser.WaitLoad); err != nil {
		return nil, fmt.Errorf("articles %s: %w", t, err)
	}
	if err := c.openArticleTab(ctx); err != nil {
		return nil, fmt.Errorf("articles %s: %w", t, err)
	}
	if err := c.reloadIfSilent(ctx, t, acc); err != nil {
		return nil, fmt.Errorf("articles %s: %w", t, err)
	}
	if c.cfg.GroupSameAddress {
		if err := c.applyGrouping(ctx, t, capture); err != nil {
			return nil, fmt.Errorf("articles %s: %w", t, err)
		}
	}

	policy := NewTerminationPolicy(c.cfg)
	containerSeen := false
	for {
		before := acc.Len()
		res, err := c.scroller.Step(ctx)
		if err != nil {
			if IsContextFatal(err) || ctx.Err() != nil {
				return nil, fmt.Errorf("articles %s: %w", t, err)
			}
			c.logger.Debug("[articles] %s: scroll step failed: %v", t, err)
		}
		containerSeen = containerSeen || res.Found

		last, seen := acc.LastArrival()
		if err := c.sleep(ctx, policy.SettleDelay(last, seen, c.now())); err != nil {
			return nil, err
		}

		added := acc.Len() - before
		stop, reason := policy.Observe(res.Progressed(), added)
		if progress != nil && c.cfg.StatusEverySteps > 0 && policy.Steps()%c.cfg.StatusEverySteps == 0 {
			progress(acc.Len())
		}
		if stop {
			c.logger.Info("[articles] %s: stopped after %d steps (%s, %d idle), %d items",
				t, policy.Steps(), reason, policy.ConsecutiveNoProgress(), acc.Len())
			break
		}
	}

	capture.Stop()
	result := acc.Result()
	if !containerSeen && len(result.Items) == 0 {
		return nil, fmt.Errorf("articles %s: %w", t, ErrContainerNotFound)
	}
	if progress != nil {
		progress(len(result.Items))
	}
	return result, nil
}

// openArticleTab clicks the first tab selector that resolves. Missing tabs are not an error.
func (c *ArticleCollector) openArticleTab(ctx context.Context) error {
	for _, sel := range c.tabSelectors {
		err := c.surface.Click(ctx, sel, c.clickTimeout)
		if err == nil {
			return nil
		}
		if IsContextFatal(err) || ctx.Err() != nil {
			return err
		}
	}
	c.logger.Debug("[articles] no article tab found, assuming the list is already shown")
	return nil
}

// reloadIfSilent reloads the page once when the list has not requested any articles yet.
func (c *ArticleCollector) reloadIfSilent(ctx context.Context, t models.Target, acc *Accumulator) error {
	if err := c.sleep(ctx, c.tabSettle); err != nil {
		return err
	}
	if acc.Responses() > 0 {
		return nil
	}
	c.logger.Info("[articles] %s: no articles response yet, reloading", t)
	if err := c.surface.Reload(ctx, browser.WaitNetworkIdle); err != nil {
		if IsContextFatal(err) || ctx.Err() != nil {
			return err
		}
		c.logger.Warn("[articles] %s: reload failed: %v", t, err)
		return nil
	}
	return c.sleep(ctx, c.tabSettle)
}

// applyGrouping turns on same-address grouping and drops listings captured before it took effect.
func (c *ArticleCollector) applyGrouping(ctx context.Context, t models.Target, capture *ResponseCapture) error {
	var applied bool
	err := c.surface.Evaluate(ctx, fmt.Sprintf(groupingScript, true), &applied)
	if err != nil {
		if IsContextFatal(err) || ctx.Err() != nil {
			return err
		}
		c.logger.Warn("[articles] %s: grouping toggle failed: %v", t, err)
		return nil
	}
	if !applied {
		c.logger.Warn("[articles] %s: grouping control not found, collecting ungrouped listings", t)
		return nil
	}
	capture.RequireGrouping(true)
	return nil
}

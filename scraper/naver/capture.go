package naver

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"land-crawler/models"
	"land-crawler/scraper/browser"
	"land-crawler/utils"
)

const (
	defaultParseAttempts = 3
	defaultParseDelay    = 500 * time.Millisecond
	defaultBodyTimeout   = 10 * time.Second
)

// articlePage is the envelope of one articles API response.
type articlePage struct {
	ArticleList []json.RawMessage `json:"articleList"`
	IsMoreData  bool              `json:"isMoreData"`

	// grouped is the sameAddressGroup value of the request, nil when it was not sent.
	grouped *bool
}

type admitted struct {
	item    models.Item
	grouped *bool
}

// Accumulator holds the deduplicated items of one collection pass.
// Response handlers write to it from their own goroutines; once sealed it ignores writes.
type Accumulator struct {
	mu          sync.Mutex
	ids         *utils.IDSet
	items       []admitted
	want        *bool
	lastArrival time.Time
	responses   int
	moreData    bool
	sealed      bool
	now         func() time.Time
}

// NewAccumulator returns an empty, unsealed Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{ids: utils.NewIDSet(), now: time.Now}
}

// Admit appends the unseen items of page in payload order.
// It returns how many were added and how many had no identity.
func (a *Accumulator) Admit(page articlePage) (added, anonymous int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed || !agrees(a.want, page.grouped) {
		return 0, 0
	}

	a.responses++
	a.lastArrival = a.now()
	a.moreData = page.IsMoreData
	for _, raw := range page.ArticleList {
		item, ok := models.NewItem(raw)
		if !ok {
			anonymous++
			continue
		}
		if a.ids.Add(item.ID) {
			a.items = append(a.items, admitted{item: item, grouped: page.grouped})
			added++
		}
	}
	return added, anonymous
}

// Retain drops items that came from responses whose grouping disagrees with grouped,
// and rejects such responses from then on. Responses without a grouping parameter are kept.
func (a *Accumulator) Retain(grouped bool) (dropped int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return 0
	}
	a.want = &grouped

	kept := a.items[:0]
	a.ids = utils.NewIDSet()
	for _, e := range a.items {
		if !agrees(a.want, e.grouped) {
			dropped++
			continue
		}
		a.ids.Add(e.item.ID)
		kept = append(kept, e)
	}
	a.items = kept
	return dropped
}

func agrees(want, got *bool) bool {
	return want == nil || got == nil || *want == *got
}

// Len returns the number of unique items admitted so far.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// LastArrival returns when the most recent matching response was admitted.
func (a *Accumulator) LastArrival() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastArrival, a.responses > 0
}

// Responses returns how many matching responses were admitted.
func (a *Accumulator) Responses() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.responses
}

// Seal makes every later write a no-op.
func (a *Accumulator) Seal() {
	a.mu.Lock()
	a.sealed = true
	a.mu.Unlock()
}

// Result snapshots the accumulated items.
func (a *Accumulator) Result() *models.CollectionResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	items := make([]models.Item, len(a.items))
	for i, e := range a.items {
		items[i] = e.item
	}
	return &models.CollectionResult{
		Items:             items,
		TotalCount:        len(items),
		MoreDataAvailable: a.moreData,
	}
}

// ResponseCapture feeds matching articles responses into an Accumulator
// for as long as it is started.
type ResponseCapture struct {
	surface browser.Surface
	matcher ArticleMatcher
	acc     *Accumulator
	logger  *utils.Logger

	parseAttempts int
	parseDelay    time.Duration
	bodyTimeout   time.Duration
	sleep         func(ctx context.Context, d time.Duration) error

	// ctx bounds body reads and is cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	grouped  *bool
	sub      browser.Subscription
	started  bool
	stopped  bool
	inflight sync.WaitGroup
}

func NewResponseCapture(surface browser.Surface, matcher ArticleMatcher, acc *Accumulator, logger *utils.Logger) *ResponseCapture {
	ctx, cancel := context.WithCancel(context.Background())
	return &ResponseCapture{
		ctx:           ctx,
		cancel:        cancel,
		surface:       surface,
		matcher:       matcher,
		acc:           acc,
		logger:        logger,
		parseAttempts: defaultParseAttempts,
		parseDelay:    defaultParseDelay,
		bodyTimeout:   defaultBodyTimeout,
		sleep:         utils.SleepContext,
	}
}

// Start registers the response observer. Calling it twice has no effect.
func (c *ResponseCapture) Start() {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	// the surface calls match under its own lock, so c.mu must not be held here
	sub := c.surface.Subscribe(c.match, c.handle)
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
}

// RequireGrouping narrows the matcher to responses whose grouping agrees with grouped
// and discards items already admitted from responses that disagree.
func (c *ResponseCapture) RequireGrouping(grouped bool) {
	c.mu.Lock()
	c.grouped = &grouped
	c.mu.Unlock()
	if n := c.acc.Retain(grouped); n > 0 {
		c.logger.Debug("[capture] %s: discarded %d items collected before grouping was applied", c.matcher.Target, n)
	}
}

func (c *ResponseCapture) match(rawURL string) bool {
	c.mu.Lock()
	m := c.matcher
	if c.grouped != nil {
		m.Grouped = c.grouped
	}
	c.mu.Unlock()
	return m.Match(rawURL)
}

// Stop removes the observer, abandons pending body reads, waits for in-flight handlers
// and seals the accumulator. It is safe to call more than once and on every exit path.
func (c *ResponseCapture) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	started, sub := c.started, c.sub
	c.mu.Unlock()

	if started {
		c.surface.Unsubscribe(sub)
	}
	c.cancel()
	c.inflight.Wait()
	c.acc.Seal()
}

func (c *ResponseCapture) handle(resp *browser.Response) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	if resp.Status >= 400 {
		c.logger.Warn("[capture] %s: ignoring status %d from %s", c.matcher.Target, resp.Status, resp.URL)
		return
	}

	// one deadline covers every attempt
	ctx, cancel := context.WithTimeout(c.ctx, c.bodyTimeout)
	defer cancel()

	var page articlePage
	var err error
	for attempt := 1; attempt <= c.parseAttempts; attempt++ {
		err = resp.JSON(ctx, &page)
		if err == nil || ctx.Err() != nil {
			break
		}
		if attempt < c.parseAttempts {
			if serr := c.sleep(ctx, c.parseDelay); serr != nil {
				break
			}
		}
	}
	if err != nil {
		c.logger.Warn("[capture] %s: dropping unreadable response %s: %v", c.matcher.Target, resp.URL, err)
		return
	}

	page.grouped = responseGrouping(resp.URL)
	added, anonymous := c.acc.Admit(page)
	if anonymous > 0 {
		c.logger.Warn("[capture] %s: skipped %d items without an identity", c.matcher.Target, anonymous)
	}
	c.logger.Debug("[capture] %s: +%d items (%d in response, total %d)",
		c.matcher.Target, added, len(page.ArticleList), c.acc.Len())
}

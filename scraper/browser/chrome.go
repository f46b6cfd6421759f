package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"land-crawler/config"
	"land-crawler/utils"
)

const networkIdleTimeout = 10 * time.Second

type subscription struct {
	match   func(url string) bool
	handler func(*Response)
}

type pendingResponse struct {
	resp *Response
	subs []Subscription
}

// ChromeSurface is a Surface backed by one chromedp browser tab.
type ChromeSurface struct {
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *utils.Logger
	idleTimeout time.Duration

	mu      sync.Mutex
	subs    map[Subscription]subscription
	nextSub Subscription
	pending map[network.RequestID]pendingResponse
	closed  bool
}

// NewChromeFactory returns a Factory that launches one headless browser per surface.
func NewChromeFactory(cfg *config.Config, logger *utils.Logger) Factory {
	return func(ctx context.Context) (Surface, error) {
		return OpenChrome(ctx, cfg, logger)
	}
}

// OpenChrome launches a browser, opens a tab and enables the CDP domains the crawler needs.
func OpenChrome(parent context.Context, cfg *config.Config, logger *utils.Logger) (*ChromeSurface, error) {
	chromeBin := cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Debug("[browser] Using browser binary: %q", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "ko-KR"),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	s := &ChromeSurface{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
		logger:      logger,
		idleTimeout: networkIdleTimeout,
		subs:        make(map[Subscription]subscription),
		pending:     make(map[network.RequestID]pendingResponse),
	}

	chromedp.ListenTarget(tabCtx, s.onEvent)

	if err := chromedp.Run(tabCtx,
		network.Enable(),
		page.SetLifecycleEventsEnabled(true),
	); err != nil {
		s.cancel()
		return nil, fmt.Errorf("browser: start: %w", err)
	}
	return s, nil
}

func (s *ChromeSurface) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Response == nil {
			return
		}
		s.mu.Lock()
		var matched []Subscription
		for id, sub := range s.subs {
			if sub.match(e.Response.URL) {
				matched = append(matched, id)
			}
		}
		if len(matched) > 0 {
			s.pending[e.RequestID] = pendingResponse{
				resp: &Response{
					URL:      e.Response.URL,
					Status:   e.Response.Status,
					MIMEType: e.Response.MimeType,
					BodyFunc: s.bodyFunc(e.RequestID),
				},
				subs: matched,
			}
		}
		s.mu.Unlock()

	case *network.EventLoadingFinished:
		s.mu.Lock()
		p, ok := s.pending[e.RequestID]
		delete(s.pending, e.RequestID)
		var handlers []func(*Response)
		if ok {
			for _, id := range p.subs {
				if sub, live := s.subs[id]; live {
					handlers = append(handlers, sub.handler)
				}
			}
		}
		s.mu.Unlock()
		// Body retrieval needs a CDP round-trip, which cannot happen on the event goroutine.
		for _, h := range handlers {
			go h(p.resp)
		}

	case *network.EventLoadingFailed:
		s.mu.Lock()
		delete(s.pending, e.RequestID)
		s.mu.Unlock()
	}
}

func (s *ChromeSurface) bodyFunc(id network.RequestID) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		c := chromedp.FromContext(s.ctx)
		if c == nil || c.Target == nil || s.ctx.Err() != nil {
			return nil, ErrSurfaceLost
		}
		var body []byte
		err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			b, err := network.GetResponseBody(id).Do(cdp.WithExecutor(ctx, c.Target))
			body = b
			return err
		}))
		return body, err
	}
}

// run executes actions on the tab, bounded by both the tab and the caller's context.
func (s *ChromeSurface) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.ctx.Err() != nil {
		return ErrSurfaceLost
	}
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && s.ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrSurfaceLost, err)
	}
	return err
}

func (s *ChromeSurface) Navigate(ctx context.Context, url string, wait WaitStrategy) error {
	if wait == WaitNone {
		target, _ := json.Marshal(url)
		return s.run(ctx, chromedp.Evaluate("window.location.assign("+string(target)+")", nil))
	}
	idle := s.watchNetworkIdle(wait)
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		idle.stop()
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	idle.wait(ctx)
	return nil
}

func (s *ChromeSurface) Reload(ctx context.Context, wait WaitStrategy) error {
	idle := s.watchNetworkIdle(wait)
	if err := s.run(ctx, chromedp.Reload()); err != nil {
		idle.stop()
		return fmt.Errorf("reload: %w", err)
	}
	if wait != WaitNone {
		idle.wait(ctx)
	}
	return nil
}

type idleWatch struct {
	done    chan struct{}
	cancel  context.CancelFunc
	timeout time.Duration
}

// watchNetworkIdle starts listening for the networkIdle lifecycle event before navigation begins.
func (s *ChromeSurface) watchNetworkIdle(wait WaitStrategy) *idleWatch {
	w := &idleWatch{done: make(chan struct{}), timeout: s.idleTimeout}
	if wait != WaitNetworkIdle {
		close(w.done)
		w.cancel = func() {}
		return w
	}
	lctx, cancel := context.WithCancel(s.ctx)
	w.cancel = cancel
	var once sync.Once
	chromedp.ListenTarget(lctx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			once.Do(func() { close(w.done) })
		}
	})
	return w
}

func (w *idleWatch) wait(ctx context.Context) {
	defer w.cancel()
	t := time.NewTimer(w.timeout)
	defer t.Stop()
	select {
	case <-w.done:
	case <-t.C:
	case <-ctx.Done():
	}
}

func (w *idleWatch) stop() { w.cancel() }

func (s *ChromeSurface) Subscribe(match func(url string) bool, handler func(*Response)) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	s.subs[s.nextSub] = subscription{match: match, handler: handler}
	return s.nextSub
}

func (s *ChromeSurface) Unsubscribe(sub Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub)
}

func (s *ChromeSurface) Evaluate(ctx context.Context, script string, out any) error {
	return s.run(ctx, chromedp.Evaluate(script, out))
}

func (s *ChromeSurface) Click(ctx context.Context, selector string, timeout time.Duration) error {
	clickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.run(clickCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

func (s *ChromeSurface) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *ChromeSurface) Location(ctx context.Context) (string, error) {
	var u string
	err := s.run(ctx, chromedp.Location(&u))
	return u, err
}

func (s *ChromeSurface) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, chromedp.Title(&title))
	return title, err
}

// Close tears down the tab and the browser process. It is safe to call more than once.
func (s *ChromeSurface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.subs = make(map[Subscription]subscription)
	s.mu.Unlock()

	err := chromedp.Cancel(s.ctx)
	s.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("browser: close: %w", err)
	}
	return nil
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

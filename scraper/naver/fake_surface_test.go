package naver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"land-crawler/config"
	"land-crawler/models"
	"land-crawler/scraper/browser"
	"land-crawler/utils"
)

type fakeSub struct {
	match   func(string) bool
	handler func(*browser.Response)
}

// fakeSurface is an in-memory browser.Surface whose page behaviour is scripted by hooks.
type fakeSurface struct {
	mu       sync.Mutex
	subs     map[browser.Subscription]fakeSub
	nextSub  browser.Subscription
	location string
	closed   bool
	current  models.Target
	step     int

	navigations []string
	navigate    func(f *fakeSurface, url string) error
	scroll      func(f *fakeSurface) ScrollResult
	grouping    bool
	clickErr    error
	closeErr    error
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{subs: make(map[browser.Subscription]fakeSub)}
}

func (f *fakeSurface) emit(rawURL, body string) {
	f.emitStatus(rawURL, 200, body)
}

func (f *fakeSurface) emitStatus(rawURL string, status int64, body string) {
	f.mu.Lock()
	var handlers []func(*browser.Response)
	for _, s := range f.subs {
		if s.match(rawURL) {
			handlers = append(handlers, s.handler)
		}
	}
	f.mu.Unlock()

	resp := &browser.Response{
		URL:      rawURL,
		Status:   status,
		MIMEType: "application/json",
		BodyFunc: func(context.Context) ([]byte, error) { return []byte(body), nil },
	}
	for _, h := range handlers {
		h(resp)
	}
}

func (f *fakeSurface) activeSubscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeSurface) Navigate(ctx context.Context, url string, _ browser.WaitStrategy) error {
	f.mu.Lock()
	f.navigations = append(f.navigations, url)
	f.location = url
	f.current = models.Target(path.Base(url))
	f.step = 0
	hook := f.navigate
	f.mu.Unlock()
	if hook != nil {
		return hook(f, url)
	}
	return nil
}

func (f *fakeSurface) Reload(ctx context.Context, wait browser.WaitStrategy) error {
	return f.Navigate(ctx, f.location, wait)
}

func (f *fakeSurface) Subscribe(match func(string) bool, handler func(*browser.Response)) browser.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSub++
	f.subs[f.nextSub] = fakeSub{match: match, handler: handler}
	return f.nextSub
}

func (f *fakeSurface) Unsubscribe(sub browser.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, sub)
}

func (f *fakeSurface) Evaluate(ctx context.Context, script string, out any) error {
	var v any
	switch {
	case strings.Contains(script, "scrollTop"):
		res := ScrollResult{}
		if f.scroll != nil {
			res = f.scroll(f)
		}
		v = res
	case strings.Contains(script, "동일매물"):
		v = f.grouping
	}
	if out == nil || v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (f *fakeSurface) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return f.clickErr
}

func (f *fakeSurface) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("\x89PNG"), nil
}

func (f *fakeSurface) Location(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.location, nil
}

func (f *fakeSurface) Title(ctx context.Context) (string, error) {
	return "네이버 부동산", nil
}

func (f *fakeSurface) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

// site scripts a set of complexes: overviews are sent on page load and
// article pages are sent one per successful scroll step.
type site struct {
	overview map[models.Target]string
	navErr   map[models.Target]error
	pages    map[models.Target][]string
}

func (s *site) surface() *fakeSurface {
	f := newFakeSurface()
	f.navigate = func(f *fakeSurface, rawURL string) error {
		t := models.Target(path.Base(rawURL))
		if err := s.navErr[t]; err != nil {
			return err
		}
		if body, ok := s.overview[t]; ok {
			f.emit(overviewURL(t), body)
		}
		return nil
	}
	f.scroll = func(f *fakeSurface) ScrollResult {
		f.mu.Lock()
		f.step++
		t, step := f.current, f.step
		f.mu.Unlock()

		pages := s.pages[t]
		if step <= len(pages) {
			f.emit(articlesURL(t, step), pages[step-1])
			return ScrollResult{Found: true, Moved: true, Selector: "#articleListArea"}
		}
		return ScrollResult{Found: true, Moved: false, Selector: "#articleListArea"}
	}
	return f
}

func overviewURL(t models.Target) string {
	return "https://land.test/api/complexes/overview/" + string(t) + "?complexNo=" + string(t)
}

func articlesURL(t models.Target, page int) string {
	return fmt.Sprintf("https://land.test/api/articles/complex/%s?realEstateType=APT&tradeType=&page=%d", t, page)
}

func articlesBody(more bool, ids ...string) string {
	list := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		list = append(list, map[string]string{"articleNo": id, "articleName": "apt " + id})
	}
	b, _ := json.Marshal(map[string]any{"isMoreData": more, "articleList": list})
	return string(b)
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		BaseURL:             "https://land.test",
		Timeout:             50 * time.Millisecond,
		RequestDelay:        2 * time.Second,
		MaxRetries:          3,
		RetryBaseDelay:      7 * time.Second,
		MaxTargetAttempts:   2,
		ScrollStep:          800,
		ScrollSelectors:     config.DefaultScrollSelectors,
		NoProgressThreshold: 3,
		MaxScrollSteps:      100,
		StatusEverySteps:    5,
		ScreenshotTimeout:   50 * time.Millisecond,
		OutputDir:           dir,
	}
}

func quietLogger() *utils.Logger {
	return utils.NewLoggerWithLevel(io.Discard, slog.LevelDebug)
}

func noSleep(context.Context, time.Duration) error { return nil }

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return nil
}

func (r *sleepRecorder) count(d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.delays {
		if got == d {
			n++
		}
	}
	return n
}

var errBoom = errors.New("net::ERR_CONNECTION_RESET")

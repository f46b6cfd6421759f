package naver

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"land-crawler/scraper/browser"
)

func pageOf(more bool, raws ...string) articlePage {
	p := articlePage{IsMoreData: more}
	for _, r := range raws {
		p.ArticleList = append(p.ArticleList, json.RawMessage(r))
	}
	return p
}

func itemIDs(acc *Accumulator) []string {
	var ids []string
	for _, it := range acc.Result().Items {
		ids = append(ids, it.ID)
	}
	return ids
}

func TestAccumulatorDeduplicatesInArrivalOrder(t *testing.T) {
	acc := NewAccumulator()
	acc.Admit(pageOf(true, `{"articleNo":"A1"}`, `{"articleNo":"A2"}`))
	added, _ := acc.Admit(pageOf(false, `{"articleNo":"A2","dealOrWarrantPrc":"9억"}`, `{"articleNo":"A3"}`))

	if added != 1 {
		t.Errorf("added: got %d, want 1", added)
	}
	if diff := cmp.Diff([]string{"A1", "A2", "A3"}, itemIDs(acc)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	res := acc.Result()
	if res.TotalCount != 3 || res.MoreDataAvailable {
		t.Errorf("result: got total=%d more=%v, want 3 and false", res.TotalCount, res.MoreDataAvailable)
	}
	// first occurrence wins
	if _, ok := res.Items[1].Field("dealOrWarrantPrc"); ok {
		t.Error("duplicate item overwrote the first occurrence")
	}
}

func TestAccumulatorIdentityFallbacks(t *testing.T) {
	acc := NewAccumulator()
	added, anonymous := acc.Admit(pageOf(true,
		`{"id":7}`, `{"number":"N-1"}`, `{"articleNo":"7"}`, `{"articleName":"no id"}`))

	if added != 2 || anonymous != 1 {
		t.Errorf("got added=%d anonymous=%d, want 2 and 1", added, anonymous)
	}
	if diff := cmp.Diff([]string{"7", "N-1"}, itemIDs(acc)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestAccumulatorIgnoresWritesAfterSeal(t *testing.T) {
	acc := NewAccumulator()
	acc.Admit(pageOf(true, `{"articleNo":"A1"}`))
	acc.Seal()
	acc.Admit(pageOf(false, `{"articleNo":"A2"}`))

	if acc.Len() != 1 || acc.Responses() != 1 {
		t.Errorf("sealed accumulator changed: len=%d responses=%d", acc.Len(), acc.Responses())
	}
}

func TestAccumulatorConcurrentAdmit(t *testing.T) {
	acc := NewAccumulator()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc.Admit(pageOf(true, `{"articleNo":"A1"}`, `{"articleNo":"A2"}`))
		}()
	}
	wg.Wait()
	if acc.Len() != 2 {
		t.Errorf("len: got %d, want 2", acc.Len())
	}
}

func TestResponseCaptureFiltersAndStops(t *testing.T) {
	f := newFakeSurface()
	acc := NewAccumulator()
	c := NewResponseCapture(f, ArticleMatcher{Target: "22065"}, acc, quietLogger())
	c.Start()
	c.Start()

	if got := f.activeSubscriptions(); got != 1 {
		t.Fatalf("subscriptions after Start: got %d, want 1", got)
	}

	f.emit(articlesURL("22065", 1), articlesBody(true, "A1", "A2"))
	f.emit(articlesURL("99999", 1), articlesBody(true, "B1"))
	f.emitStatus(articlesURL("22065", 2), 500, articlesBody(true, "A9"))

	c.Stop()
	c.Stop()
	if got := f.activeSubscriptions(); got != 0 {
		t.Errorf("subscriptions after Stop: got %d, want 0", got)
	}

	f.emit(articlesURL("22065", 3), articlesBody(false, "A3"))
	if diff := cmp.Diff([]string{"A1", "A2"}, itemIDs(acc)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestResponseCaptureRetriesBodyRead(t *testing.T) {
	f := newFakeSurface()
	acc := NewAccumulator()
	c := NewResponseCapture(f, ArticleMatcher{Target: "22065"}, acc, quietLogger())
	rec := &sleepRecorder{}
	c.sleep = rec.sleep
	c.Start()
	defer c.Stop()

	calls := 0
	c.handle(&browser.Response{
		URL:    articlesURL("22065", 1),
		Status: 200,
		BodyFunc: func(context.Context) ([]byte, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("No resource with given identifier found")
			}
			return []byte(articlesBody(true, "A1")), nil
		},
	})

	if calls != 3 {
		t.Errorf("body reads: got %d, want 3", calls)
	}
	if got := rec.count(500 * time.Millisecond); got != 2 {
		t.Errorf("parse delays: got %d, want 2", got)
	}
	if acc.Len() != 1 {
		t.Errorf("items: got %d, want 1", acc.Len())
	}
}

func TestResponseCaptureDropsUnreadableResponse(t *testing.T) {
	f := newFakeSurface()
	acc := NewAccumulator()
	c := NewResponseCapture(f, ArticleMatcher{Target: "22065"}, acc, quietLogger())
	c.sleep = noSleep
	c.Start()
	defer c.Stop()

	f.emit(articlesURL("22065", 1), `<html>blocked</html>`)
	if acc.Responses() != 0 {
		t.Errorf("responses: got %d, want 0", acc.Responses())
	}
}

func TestResponseCaptureRequireGrouping(t *testing.T) {
	f := newFakeSurface()
	acc := NewAccumulator()
	c := NewResponseCapture(f, ArticleMatcher{Target: "22065"}, acc, quietLogger())
	c.Start()
	defer c.Stop()

	f.emit(articlesURL("22065", 1)+"&sameAddressGroup=false", articlesBody(true, "A1"))
	c.RequireGrouping(true)
	f.emit(articlesURL("22065", 1)+"&sameAddressGroup=false", articlesBody(true, "A2"))
	f.emit(articlesURL("22065", 1)+"&sameAddressGroup=true", articlesBody(true, "A3"))

	f.emit(articlesURL("22065", 2), articlesBody(false, "A4"))

	// A1 came from an ungrouped response before grouping was required
	if diff := cmp.Diff([]string{"A3", "A4"}, itemIDs(acc)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestAccumulatorRetainReadmitsGroupedCopies(t *testing.T) {
	grouped, ungrouped := true, false
	acc := NewAccumulator()
	p := pageOf(true, `{"articleNo":"A1"}`, `{"articleNo":"A2"}`)
	p.grouped = &ungrouped
	acc.Admit(p)

	if n := acc.Retain(true); n != 2 {
		t.Errorf("dropped: got %d, want 2", n)
	}
	late := pageOf(true, `{"articleNo":"A9"}`)
	late.grouped = &ungrouped
	if added, _ := acc.Admit(late); added != 0 {
		t.Errorf("ungrouped page admitted %d items after Retain", added)
	}
	g := pageOf(false, `{"articleNo":"A2"}`)
	g.grouped = &grouped
	acc.Admit(g)

	if diff := cmp.Diff([]string{"A2"}, itemIDs(acc)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestResponseCaptureStopAbandonsBodyRead(t *testing.T) {
	f := newFakeSurface()
	acc := NewAccumulator()
	c := NewResponseCapture(f, ArticleMatcher{Target: "22065"}, acc, quietLogger())
	c.Start()

	reading := make(chan struct{})
	go c.handle(&browser.Response{
		URL:    articlesURL("22065", 1),
		Status: 200,
		BodyFunc: func(ctx context.Context) ([]byte, error) {
			close(reading)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	<-reading

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a pending body read")
	}
	if acc.Len() != 0 {
		t.Errorf("items: got %d, want 0", acc.Len())
	}
}

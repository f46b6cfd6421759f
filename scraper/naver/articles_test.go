package naver

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"land-crawler/models"
)

func newTestCollector(f *fakeSurface, dir string) *ArticleCollector {
	c := NewArticleCollector(f, testConfig(dir), quietLogger())
	c.sleep = noSleep
	return c
}

func TestCollectDeduplicatesAcrossScrolls(t *testing.T) {
	s := &site{pages: map[models.Target][]string{
		"22065": {articlesBody(true, "A1", "A2"), articlesBody(false, "A2", "A3")},
	}}
	f := s.surface()
	c := newTestCollector(f, "")

	res, err := c.Collect(context.Background(), "22065", nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var ids []string
	for _, it := range res.Items {
		ids = append(ids, it.ID)
	}
	if diff := cmp.Diff([]string{"A1", "A2", "A3"}, ids); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if res.TotalCount != 3 || res.MoreDataAvailable {
		t.Errorf("got total=%d more=%v, want 3 and false", res.TotalCount, res.MoreDataAvailable)
	}
	// two productive steps, then exactly three idle ones
	if f.step != 5 {
		t.Errorf("scroll steps: got %d, want 5", f.step)
	}
	if n := f.activeSubscriptions(); n != 0 {
		t.Errorf("listeners left registered: %d", n)
	}
}

func TestCollectBoundedByMaxSteps(t *testing.T) {
	f := newFakeSurface()
	f.scroll = func(f *fakeSurface) ScrollResult {
		f.step++
		return ScrollResult{Found: true, Moved: true}
	}
	cfg := testConfig("")
	cfg.MaxScrollSteps = 12
	c := NewArticleCollector(f, cfg, quietLogger())
	c.sleep = noSleep

	if _, err := c.Collect(context.Background(), "22065", nil); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if f.step != 12 {
		t.Errorf("scroll steps: got %d, want 12", f.step)
	}
}

func TestCollectContainerNotFound(t *testing.T) {
	f := newFakeSurface()
	f.scroll = func(*fakeSurface) ScrollResult { return ScrollResult{} }
	c := newTestCollector(f, "")

	_, err := c.Collect(context.Background(), "22065", nil)
	if !errors.Is(err, ErrContainerNotFound) {
		t.Errorf("got %v, want ErrContainerNotFound", err)
	}
	if n := f.activeSubscriptions(); n != 0 {
		t.Errorf("listeners left registered: %d", n)
	}
}

func TestCollectReportsProgress(t *testing.T) {
	var pages []string
	for _, id := range []string{"A1", "A2", "A3", "A4", "A5", "A6"} {
		pages = append(pages, articlesBody(true, id))
	}
	s := &site{pages: map[models.Target][]string{"22065": pages}}
	c := newTestCollector(s.surface(), "")

	var reports []int
	if _, err := c.Collect(context.Background(), "22065", func(n int) { reports = append(reports, n) }); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	// step 5 hits the cadence, step 9 stops the loop, then the final count
	if diff := cmp.Diff([]int{5, 6}, reports); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectGroupingNarrowsCapture(t *testing.T) {
	f := newFakeSurface()
	f.grouping = true
	f.scroll = func(f *fakeSurface) ScrollResult {
		f.step++
		switch f.step {
		case 1:
			f.emit(articlesURL("22065", 1)+"&sameAddressGroup=false", articlesBody(true, "U1"))
			return ScrollResult{Found: true, Moved: true}
		case 2:
			f.emit(articlesURL("22065", 2)+"&sameAddressGroup=true", articlesBody(false, "G1"))
			return ScrollResult{Found: true, Moved: true}
		}
		return ScrollResult{Found: true}
	}
	cfg := testConfig("")
	cfg.GroupSameAddress = true
	c := NewArticleCollector(f, cfg, quietLogger())
	c.sleep = noSleep

	res, err := c.Collect(context.Background(), "22065", nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != "G1" {
		t.Errorf("got %+v, want only G1", res.Items)
	}
}

func TestCollectGroupingDropsListingsFromPageLoad(t *testing.T) {
	f := newFakeSurface()
	f.grouping = true
	f.navigate = func(f *fakeSurface, _ string) error {
		f.emit(articlesURL("22065", 1)+"&sameAddressGroup=false", articlesBody(true, "U1", "U2"))
		return nil
	}
	f.scroll = func(f *fakeSurface) ScrollResult {
		f.step++
		if f.step == 1 {
			f.emit(articlesURL("22065", 1)+"&sameAddressGroup=true", articlesBody(false, "G1", "U2"))
			return ScrollResult{Found: true, Moved: true}
		}
		return ScrollResult{Found: true}
	}
	cfg := testConfig("")
	cfg.GroupSameAddress = true
	c := NewArticleCollector(f, cfg, quietLogger())
	c.sleep = noSleep

	res, err := c.Collect(context.Background(), "22065", nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var ids []string
	for _, it := range res.Items {
		ids = append(ids, it.ID)
	}
	if diff := cmp.Diff([]string{"G1", "U2"}, ids); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if len(f.navigations) != 1 {
		t.Errorf("navigations: got %d, want 1 (no reload once the list responded)", len(f.navigations))
	}
}

func TestCollectReloadsWhenListStaysSilent(t *testing.T) {
	f := newFakeSurface()
	loads := 0
	f.navigate = func(f *fakeSurface, _ string) error {
		loads++
		if loads == 2 {
			f.emit(articlesURL("22065", 1), articlesBody(false, "A1"))
		}
		return nil
	}
	f.scroll = func(*fakeSurface) ScrollResult { return ScrollResult{Found: true} }
	c := newTestCollector(f, "")

	res, err := c.Collect(context.Background(), "22065", nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if loads != 2 {
		t.Errorf("page loads: got %d, want 2", loads)
	}
	if len(res.Items) != 1 || res.Items[0].ID != "A1" {
		t.Errorf("got %+v, want A1 from the reloaded page", res.Items)
	}
}

func TestCollectSurfaceLost(t *testing.T) {
	s := &site{navErr: map[models.Target]error{"22065": errors.New("Target closed")}}
	c := newTestCollector(s.surface(), "")

	_, err := c.Collect(context.Background(), "22065", nil)
	if !IsContextFatal(err) {
		t.Errorf("got %v, want a context-fatal error", err)
	}
}

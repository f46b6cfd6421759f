package naver

import (
	"context"
	"encoding/json"
	"fmt"

	"land-crawler/scraper/browser"
)

// ScrollResult reports what one scroll step did in the page.
type ScrollResult struct {
	Found        bool    `json:"found"`
	Moved        bool    `json:"moved"`
	Selector     string  `json:"selector"`
	ScrollTop    float64 `json:"scrollTop"`
	ScrollHeight float64 `json:"scrollHeight"`
	ClientHeight float64 `json:"clientHeight"`
}

// Progressed is true only when a container was found and its offset advanced.
func (r ScrollResult) Progressed() bool {
	return r.Found && r.Moved
}

// scrollScript picks the first selector resolving to a scrollable element,
// falling back to the first one that resolves at all.
const scrollScript = `(() => {
  const selectors = %s;
  const step = %d;
  let target = null, chosen = "";
  for (const sel of selectors) {
    let el = null;
    try { el = document.querySelector(sel); } catch (e) { continue; }
    if (!el) continue;
    if (!target) { target = el; chosen = sel; }
    if (el.scrollHeight > el.clientHeight) { target = el; chosen = sel; break; }
  }
  if (!target) {
    return {found: false, moved: false, selector: "", scrollTop: 0, scrollHeight: 0, clientHeight: 0};
  }
  const before = target.scrollTop;
  target.scrollTop = before + step;
  const after = target.scrollTop;
  return {
    found: true,
    moved: after > before,
    selector: chosen,
    scrollTop: after,
    scrollHeight: target.scrollHeight,
    clientHeight: target.clientHeight
  };
})()`

// ScrollDriver advances the article list container by a fixed step.
type ScrollDriver struct {
	surface browser.Surface
	script  string
}

func NewScrollDriver(surface browser.Surface, selectors []string, step int) *ScrollDriver {
	encoded, err := json.Marshal(selectors)
	if err != nil {
		encoded = []byte("[]")
	}
	return &ScrollDriver{
		surface: surface,
		script:  fmt.Sprintf(scrollScript, encoded, step),
	}
}

// Step scrolls once. A missing container is reported in the result, not as an error;
// errors come only from the surface itself.
func (d *ScrollDriver) Step(ctx context.Context) (ScrollResult, error) {
	var res ScrollResult
	if err := d.surface.Evaluate(ctx, d.script, &res); err != nil {
		return ScrollResult{}, fmt.Errorf("scroll: %w", err)
	}
	return res, nil
}

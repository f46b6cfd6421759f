// Package browser defines the automation surface the crawler drives and a
// chromedp-backed implementation of it.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrSurfaceLost is returned once the underlying page or browser is gone.
var ErrSurfaceLost = errors.New("browser surface lost")

// WaitStrategy controls how long navigation blocks.
type WaitStrategy int

const (
	// WaitNone returns as soon as navigation has been requested.
	WaitNone WaitStrategy = iota
	// WaitLoad waits for the page load event.
	WaitLoad
	// WaitNetworkIdle waits for the load event and then for network idle.
	WaitNetworkIdle
)

func (w WaitStrategy) String() string {
	switch w {
	case WaitNone:
		return "none"
	case WaitLoad:
		return "load"
	case WaitNetworkIdle:
		return "networkidle"
	default:
		return fmt.Sprintf("WaitStrategy(%d)", int(w))
	}
}

// Response is one observed network response.
type Response struct {
	URL      string
	Status   int64
	MIMEType string

	// BodyFunc fetches the response body. It may fail if the page has moved on.
	BodyFunc func(ctx context.Context) ([]byte, error)
}

// Body returns the raw response body.
func (r *Response) Body(ctx context.Context) ([]byte, error) {
	if r.BodyFunc == nil {
		return nil, errors.New("response body unavailable")
	}
	return r.BodyFunc(ctx)
}

// JSON decodes the response body into v.
func (r *Response) JSON(ctx context.Context, v any) error {
	body, err := r.Body(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", r.URL, err)
	}
	return nil
}

// Subscription identifies a registered response observer.
type Subscription int

// Surface is the capability set the crawler needs from a browser page.
// Response handlers may run on goroutines other than the caller's.
type Surface interface {
	Navigate(ctx context.Context, url string, wait WaitStrategy) error
	Reload(ctx context.Context, wait WaitStrategy) error
	Subscribe(match func(url string) bool, handler func(*Response)) Subscription
	Unsubscribe(sub Subscription)
	Evaluate(ctx context.Context, script string, out any) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Screenshot(ctx context.Context) ([]byte, error)
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Close() error
}

// Factory opens a fresh Surface. The crawler calls it again after a surface is lost.
type Factory func(ctx context.Context) (Surface, error)

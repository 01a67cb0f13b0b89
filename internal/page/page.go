// Package page describes the browser capability the harvesting code drives.
// Implementations live in internal/browser (chromedp) and page/pagetest (fake).
package page

import (
	"context"
	"errors"
	"time"
)

// ErrFrameUnavailable is returned when a frame never appears within the bounded wait
var ErrFrameUnavailable = errors.New("frame unavailable")

// Element is an opaque handle to a node in the current frame.
// Handles returned by Find stay valid until the next Find call.
type Element struct {
	ID int64
}

// Query selects elements by CSS selector and optionally by their text content.
// With Exact unset the text only has to be contained in the element's trimmed text.
type Query struct {
	CSS   string
	Text  string
	Exact bool
}

// CSS is a shorthand for a selector-only query
func CSS(selector string) Query {
	return Query{CSS: selector}
}

// Page is the capability interface every browser-driven component consumes
type Page interface {
	Open(ctx context.Context, url string) error
	// SwitchToFrame resets to the top document, waits for the iframe matching
	// selector and makes its document the target of later calls.
	SwitchToFrame(ctx context.Context, selector string) error
	SwitchToDefault(ctx context.Context) error

	Find(ctx context.Context, q Query) ([]Element, error)
	FindIn(ctx context.Context, parent Element, q Query) ([]Element, error)

	Click(ctx context.Context, el Element) error
	ScrollIntoView(ctx context.Context, el Element) error
	ScrollBy(ctx context.Context, dy int) error
	// ScrollTo scrolls to fraction of the document height (0 top, 1 bottom)
	ScrollTo(ctx context.Context, fraction float64) error
	ViewportHeight(ctx context.Context) (int, error)
	DocumentHeight(ctx context.Context) (int, error)

	Text(ctx context.Context, el Element) (string, error)
	Attribute(ctx context.Context, el Element, name string) (string, error)
	Visible(ctx context.Context, el Element) (bool, error)

	// HTML returns the outer HTML of the current frame's document
	HTML(ctx context.Context) (string, error)

	Close() error
}

// WaitFor polls until q matches at least one element or timeout elapses
func WaitFor(ctx context.Context, p Page, q Query, timeout, interval time.Duration) ([]Element, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		els, err := p.Find(ctx, q)
		if err == nil && len(els) > 0 {
			return els, nil
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return nil, err
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

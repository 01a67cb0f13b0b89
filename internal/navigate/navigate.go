// Package navigate moves a page session from the search screen into a place's detail frame.
package navigate

import (
	"context"
	stderrors "errors"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/placereviewworker/helpers"
	"sjsage522/placereviewworker/internal/page"
	"sjsage522/placereviewworker/pkg/errors"
)

const (
	SearchFrame = "iframe#searchIframe"
	EntryFrame  = "iframe#entryIframe"
)

// Selectors for the search result list
type Selectors struct {
	Results        string
	ResultFallback string
	ResultName     string
	Tab            string
	TabFallback    string
}

var DefaultSelectors = Selectors{
	Results:        "a[role='button'].place_bluelink, a[role='button']:has(span.TYaxT)",
	ResultFallback: "a:has(span.TYaxT)",
	ResultName:     "span.TYaxT",
	Tab:            "a[role='tab']",
	TabFallback:    "button",
}

// Navigator opens search results and detail tabs on one page session
type Navigator struct {
	Page         page.Page
	Pacer        page.Pacer
	SearchURL    string
	FrameTimeout time.Duration
	Selectors    Selectors

	// Poll is the interval of the bounded wait for search results
	Poll time.Duration
}

func New(p page.Page, pacer page.Pacer, searchURL string, frameTimeout time.Duration) *Navigator {
	return &Navigator{
		Page:         p,
		Pacer:        pacer,
		SearchURL:    searchURL,
		FrameTimeout: frameTimeout,
		Selectors:    DefaultSelectors,
		Poll:         250 * time.Millisecond,
	}
}

// switchFrame maps a missing frame to a frame timeout and anything else to a session error
func (n *Navigator) switchFrame(ctx context.Context, entity, selector string) error {
	err := n.Page.SwitchToFrame(ctx, selector)
	if err == nil {
		return nil
	}
	if stderrors.Is(err, page.ErrFrameUnavailable) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewFrameTimeout(entity, selector, n.FrameTimeout)
	}
	return errors.NewSession(entity, "switch to "+selector, err)
}

// OpenSearch loads the search page for query and enters the result frame
func (n *Navigator) OpenSearch(ctx context.Context, query string) error {
	if err := n.Page.SwitchToDefault(ctx); err != nil {
		return errors.NewSession(query, "reset frame", err)
	}
	if err := n.Page.Open(ctx, n.SearchURL+url.PathEscape(query)); err != nil {
		return errors.NewSession(query, "open search", err)
	}
	n.Pacer.Pause(ctx, page.Range{Min: 1.0, Max: 1.5})

	if err := n.switchFrame(ctx, query, SearchFrame); err != nil {
		return err
	}
	n.Pacer.Pause(ctx, page.Range{Min: 0.5, Max: 0.9})
	return nil
}

// OpenEntryBySearch searches for name, clicks the best matching result and
// leaves the session inside the detail frame.
func (n *Navigator) OpenEntryBySearch(ctx context.Context, name string) error {
	if err := n.OpenSearch(ctx, name); err != nil {
		return err
	}

	_ = n.Page.ScrollTo(ctx, 1)
	n.Pacer.Pause(ctx, page.Range{Min: 0.6, Max: 1.0})

	target, err := n.pickResult(ctx, name)
	if err != nil {
		return err
	}

	if err := n.Page.ScrollIntoView(ctx, target); err != nil {
		return errors.NewSession(name, "scroll to result", err)
	}
	n.Pacer.Pause(ctx, page.Range{Min: 0.3, Max: 0.6})
	if err := n.Page.Click(ctx, target); err != nil {
		return errors.NewSession(name, "click result", err)
	}
	n.Pacer.Pause(ctx, page.Range{Min: 0.8, Max: 1.2})

	return n.EnsureEntryFrame(ctx, name)
}

// waitResults waits up to FrameTimeout for any result anchor to render
func (n *Navigator) waitResults(ctx context.Context, name string) error {
	q := page.CSS(n.Selectors.Results + ", " + n.Selectors.ResultFallback)
	_, err := page.WaitFor(ctx, n.Page, q, n.FrameTimeout, n.Poll)
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return errors.NewNavigation(name, "no search result", nil)
	default:
		return errors.NewSession(name, "find results", err)
	}
}

func (n *Navigator) pickResult(ctx context.Context, name string) (page.Element, error) {
	if err := n.waitResults(ctx, name); err != nil {
		return page.Element{}, err
	}
	cands, err := n.Page.Find(ctx, page.CSS(n.Selectors.Results))
	if err != nil {
		return page.Element{}, errors.NewSession(name, "find results", err)
	}
	if len(cands) == 0 {
		cands, err = n.Page.Find(ctx, page.CSS(n.Selectors.ResultFallback))
		if err != nil {
			return page.Element{}, errors.NewSession(name, "find results", err)
		}
	}
	if len(cands) == 0 {
		return page.Element{}, errors.NewNavigation(name, "no search result", nil)
	}

	want := compact(name)
	for _, c := range cands {
		label := n.resultName(ctx, c)
		if label == "" {
			continue
		}
		if strings.Contains(label, want) || strings.Contains(want, label) {
			return c, nil
		}
	}
	return cands[0], nil
}

func (n *Navigator) resultName(ctx context.Context, el page.Element) string {
	if spans, err := n.Page.FindIn(ctx, el, page.CSS(n.Selectors.ResultName)); err == nil && len(spans) > 0 {
		if t, err := n.Page.Text(ctx, spans[0]); err == nil && t != "" {
			return compact(t)
		}
	}
	t, _ := n.Page.Text(ctx, el)
	return compact(t)
}

// EnsureEntryFrame re-enters the detail frame from the top document
func (n *Navigator) EnsureEntryFrame(ctx context.Context, entity string) error {
	if err := n.Page.SwitchToDefault(ctx); err != nil {
		return errors.NewSession(entity, "reset frame", err)
	}
	return n.switchFrame(ctx, entity, EntryFrame)
}

// OpenTab clicks the detail tab whose label contains label. Missing tabs are
// not an error, and a tab that is already selected is left alone.
func (n *Navigator) OpenTab(ctx context.Context, label string) bool {
	for _, css := range []string{n.Selectors.Tab, n.Selectors.TabFallback} {
		els, err := n.Page.Find(ctx, page.Query{CSS: css, Text: label})
		if err != nil || len(els) == 0 {
			continue
		}
		if selected, err := n.Page.Attribute(ctx, els[0], "aria-selected"); err == nil && selected == "true" {
			return true
		}
		if err := n.Page.Click(ctx, els[0]); err != nil {
			continue
		}
		n.Pacer.Pause(ctx, page.Range{Min: 0.5, Max: 0.8})
		return true
	}
	return false
}

// SortByLatest switches the review list to most recent first, best-effort
func (n *Navigator) SortByLatest(ctx context.Context) bool {
	buttons, err := n.Page.Find(ctx, page.Query{CSS: "button", Text: "정렬"})
	if err != nil || len(buttons) == 0 {
		return false
	}
	if err := n.Page.Click(ctx, buttons[0]); err != nil {
		return false
	}
	n.Pacer.Pause(ctx, page.Range{Min: 0.4, Max: 0.7})

	latest, err := n.Page.Find(ctx, page.Query{CSS: "li, a", Text: "최신순"})
	if err != nil || len(latest) == 0 {
		return false
	}
	if err := n.Page.Click(ctx, latest[0]); err != nil {
		return false
	}
	n.Pacer.Pause(ctx, page.Range{Min: 0.6, Max: 1.0})
	return true
}

// PlaceTitle reads the place name from og:title, falling back to <title>
func PlaceTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	title, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	if strings.TrimSpace(title) == "" {
		title = doc.Find("title").First().Text()
	}
	name, _ := helpers.GetSplitPart(title, " :", 0)
	return strings.TrimSpace(name)
}

func compact(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

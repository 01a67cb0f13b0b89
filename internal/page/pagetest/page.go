// Package pagetest provides an in-memory page.Page backed by goquery documents.
package pagetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/placereviewworker/internal/page"
)

// Frame is one document the fake can switch into. Render is called on every
// Find, so tests change what the page shows by mutating the state Render reads.
type Frame struct {
	Render func() string

	// OnClick runs when an element of this frame is clicked
	OnClick func(sel *goquery.Selection)
	// OnScroll runs after every scroll with the new offset
	OnScroll func(y int)

	ScrollY  int
	Viewport int
	Height   int
}

// StaticFrame returns a frame that always renders html
func StaticFrame(html string) *Frame {
	return &Frame{Render: func() string { return html }, Viewport: 1000, Height: 5000}
}

// Page is a fake page.Page. Frames maps iframe selectors to their documents and
// Top is the document outside any frame.
type Page struct {
	mu sync.Mutex

	Top    *Frame
	Frames map[string]*Frame

	// Fail, when set, is consulted before every operation
	Fail func(op string) error

	Opened  []string
	Actions []string
	Closed  bool

	current  *Frame
	doc      *goquery.Document
	nextID   int64
	elements map[int64]*goquery.Selection
}

var _ page.Page = (*Page)(nil)

// New creates a fake with an empty top document
func New() *Page {
	return &Page{
		Top:      StaticFrame("<html><body></body></html>"),
		Frames:   map[string]*Frame{},
		elements: map[int64]*goquery.Selection{},
	}
}

func (p *Page) fail(op string) error {
	if p.Fail != nil {
		return p.Fail(op)
	}
	return nil
}

func (p *Page) frame() *Frame {
	if p.current == nil {
		return p.Top
	}
	return p.current
}

func (p *Page) record(format string, args ...interface{}) {
	p.Actions = append(p.Actions, fmt.Sprintf(format, args...))
}

// CountActions counts recorded actions starting with prefix
func (p *Page) CountActions(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, a := range p.Actions {
		if strings.HasPrefix(a, prefix) {
			n++
		}
	}
	return n
}

func (p *Page) Open(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Open"); err != nil {
		return err
	}
	p.Opened = append(p.Opened, url)
	p.current = nil
	return nil
}

func (p *Page) SwitchToFrame(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("SwitchToFrame"); err != nil {
		return err
	}
	f, ok := p.Frames[selector]
	if !ok {
		return fmt.Errorf("%w: %s", page.ErrFrameUnavailable, selector)
	}
	p.current = f
	return nil
}

func (p *Page) SwitchToDefault(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
	return nil
}

func (p *Page) render() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.frame().Render()))
	if err != nil {
		return nil, err
	}
	p.doc = doc
	return doc, nil
}

func (p *Page) register(sel *goquery.Selection) []page.Element {
	var out []page.Element
	sel.Each(func(_ int, s *goquery.Selection) {
		p.nextID++
		p.elements[p.nextID] = s
		out = append(out, page.Element{ID: p.nextID})
	})
	return out
}

func match(sel *goquery.Selection, q page.Query) *goquery.Selection {
	found := sel.Find(q.CSS)
	if q.Text == "" {
		return found
	}
	return found.FilterFunction(func(_ int, s *goquery.Selection) bool {
		t := strings.TrimSpace(s.Text())
		if q.Exact {
			return t == q.Text
		}
		return strings.Contains(t, q.Text)
	})
}

func (p *Page) Find(ctx context.Context, q page.Query) ([]page.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Find"); err != nil {
		return nil, err
	}
	doc, err := p.render()
	if err != nil {
		return nil, err
	}
	p.elements = map[int64]*goquery.Selection{}
	return p.register(match(doc.Selection, q)), nil
}

func (p *Page) FindIn(ctx context.Context, parent page.Element, q page.Query) ([]page.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("FindIn"); err != nil {
		return nil, err
	}
	sel, err := p.lookup(parent)
	if err != nil {
		return nil, err
	}
	return p.register(match(sel, q)), nil
}

func (p *Page) lookup(el page.Element) (*goquery.Selection, error) {
	sel, ok := p.elements[el.ID]
	if !ok {
		return nil, fmt.Errorf("stale element %d", el.ID)
	}
	return sel, nil
}

func (p *Page) Click(ctx context.Context, el page.Element) error {
	p.mu.Lock()
	if err := p.fail("Click"); err != nil {
		p.mu.Unlock()
		return err
	}
	sel, err := p.lookup(el)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	f := p.frame()
	p.record("click:%s", strings.TrimSpace(sel.Text()))
	p.mu.Unlock()

	// hooks may call back into the fake
	if f.OnClick != nil {
		f.OnClick(sel)
	}
	return nil
}

func (p *Page) ScrollIntoView(ctx context.Context, el page.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("ScrollIntoView"); err != nil {
		return err
	}
	_, err := p.lookup(el)
	return err
}

func (p *Page) scroll(y int) {
	f := p.frame()
	max := f.Height - f.Viewport
	if max < 0 {
		max = 0
	}
	if y > max {
		y = max
	}
	if y < 0 {
		y = 0
	}
	f.ScrollY = y
	if f.OnScroll != nil {
		f.OnScroll(y)
	}
}

func (p *Page) ScrollBy(ctx context.Context, dy int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("ScrollBy"); err != nil {
		return err
	}
	p.record("scrollBy:%d", dy)
	p.scroll(p.frame().ScrollY + dy)
	return nil
}

func (p *Page) ScrollTo(ctx context.Context, fraction float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("ScrollTo"); err != nil {
		return err
	}
	p.record("scrollTo:%g", fraction)
	p.scroll(int(float64(p.frame().Height) * fraction))
	return nil
}

func (p *Page) ViewportHeight(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("ViewportHeight"); err != nil {
		return 0, err
	}
	return p.frame().Viewport, nil
}

func (p *Page) DocumentHeight(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("DocumentHeight"); err != nil {
		return 0, err
	}
	return p.frame().Height, nil
}

func (p *Page) Text(ctx context.Context, el page.Element) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, err := p.lookup(el)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(sel.Text()), nil
}

func (p *Page) Attribute(ctx context.Context, el page.Element, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, err := p.lookup(el)
	if err != nil {
		return "", err
	}
	switch name {
	case "outerHTML":
		return goquery.OuterHtml(sel)
	case "textContent":
		return sel.Text(), nil
	}
	v, _ := sel.Attr(name)
	return v, nil
}

func (p *Page) Visible(ctx context.Context, el page.Element) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, err := p.lookup(el)
	if err != nil {
		return false, err
	}
	for s := sel; s.Length() > 0; s = s.Parent() {
		if _, hidden := s.Attr("hidden"); hidden {
			return false, nil
		}
		style, _ := s.Attr("style")
		if strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none") {
			return false, nil
		}
	}
	return true, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("HTML"); err != nil {
		return "", err
	}
	return p.frame().Render(), nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

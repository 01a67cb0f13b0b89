package harvest

import (
	"context"
	"strings"

	"sjsage522/placereviewworker/internal/page"
)

// ExpandLabel is the affordance that unfolds a truncated review
const ExpandLabel = "펼쳐서 더보기"

// Discloser clicks every visible expand affordance until none remain
type Discloser struct {
	Page  page.Page
	Pacer page.Pacer

	Label      string
	MaxPasses  int
	MaxClicks  int
	FocusPause page.Range
	ClickPause page.Range
	PassPause  page.Range
}

// NewDiscloser creates a discloser with the usual pass and click budget
func NewDiscloser(p page.Page, pacer page.Pacer) *Discloser {
	return &Discloser{
		Page:       p,
		Pacer:      pacer,
		Label:      ExpandLabel,
		MaxPasses:  8,
		MaxClicks:  999,
		FocusPause: page.Range{Min: 0.1, Max: 0.2},
		ClickPause: page.Range{Min: 0.12, Max: 0.25},
		PassPause:  page.Range{Min: 0.2, Max: 0.4},
	}
}

// ExpandAll returns the number of clicks made. A failing click is skipped;
// only a failed lookup is returned as an error.
func (d *Discloser) ExpandAll(ctx context.Context) (int, error) {
	clicked := 0
	q := page.Query{CSS: "a, button", Text: d.Label, Exact: true}

	for pass := 0; pass < d.MaxPasses; pass++ {
		els, err := d.Page.Find(ctx, q)
		if err != nil {
			return clicked, err
		}

		var visible []page.Element
		for _, el := range els {
			if ok, err := d.Page.Visible(ctx, el); err == nil && ok {
				visible = append(visible, el)
			}
		}
		if len(visible) == 0 {
			return clicked, nil
		}

		for _, el := range visible {
			if clicked >= d.MaxClicks {
				return clicked, nil
			}
			if ctx.Err() != nil {
				return clicked, ctx.Err()
			}
			if t, err := d.Page.Text(ctx, el); err != nil || !strings.Contains(t, d.Label) {
				continue
			}
			if err := d.Page.ScrollIntoView(ctx, el); err != nil {
				continue
			}
			d.Pacer.Pause(ctx, d.FocusPause)
			if err := d.Page.Click(ctx, el); err != nil {
				continue
			}
			clicked++
			d.Pacer.Pause(ctx, d.ClickPause)
		}
		d.Pacer.Pause(ctx, d.PassPause)
	}
	return clicked, nil
}

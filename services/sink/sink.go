// Package sink persists harvested reviews.
package sink

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"sjsage522/placereviewworker/internal/harvest"
)

// Header is the column order shared by the tabular sinks
var Header = []string{"place_name", "visit_date", "visit_count", "review_text"}

func row(r harvest.Record) []string {
	count := ""
	if r.VisitCount != nil {
		count = strconv.Itoa(*r.VisitCount)
	}
	return []string{r.PlaceName, r.VisitDate, count, r.ReviewText}
}

// Multi saves to every sink concurrently and returns the first error
type Multi []harvest.Sink

func (m Multi) Save(ctx context.Context, place string, records []harvest.Record) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range m {
		g.Go(func() error {
			return s.Save(ctx, place, records)
		})
	}
	return g.Wait()
}

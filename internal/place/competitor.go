package place

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/placereviewworker/internal/navigate"
	"sjsage522/placereviewworker/internal/page"
	"sjsage522/placereviewworker/logger"
	"sjsage522/placereviewworker/pkg/errors"
	"sjsage522/placereviewworker/services/sink"
)

var CompetitorHeader = []string{"rank", "name"}

// CompetitorFinder lists the distinct places a search query returns
type CompetitorFinder struct {
	Page  page.Page
	Pacer page.Pacer
	Limit int
	// StableChecks is how many unchanged document heights end the result scroll
	StableChecks int
	MaxScrolls   int
}

func NewCompetitorFinder(p page.Page, pacer page.Pacer, limit int) *CompetitorFinder {
	return &CompetitorFinder{Page: p, Pacer: pacer, Limit: limit, StableChecks: 3, MaxScrolls: 200}
}

// Find loads every search result and returns the first Limit distinct names in order
func (c *CompetitorFinder) Find(ctx context.Context, nav *navigate.Navigator, query string) ([]string, error) {
	if err := nav.OpenSearch(ctx, query); err != nil {
		return nil, err
	}

	stable, prev := 0, 0
	for i := 0; stable < c.StableChecks && i < c.MaxScrolls; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err := c.Page.ScrollTo(ctx, 1); err != nil {
			return nil, errors.NewSession(query, "scroll results", err)
		}
		c.Pacer.Pause(ctx, page.Range{Min: 0.8, Max: 1.0})

		h, err := c.Page.DocumentHeight(ctx)
		if err != nil {
			return nil, errors.NewSession(query, "measure results", err)
		}
		if h == prev {
			stable++
		} else {
			stable = 0
		}
		prev = h
	}

	doc, err := snapshot(ctx, c.Page, query)
	if err != nil {
		return nil, err
	}
	return ResultNames(doc, c.Limit), nil
}

// ResultNames returns the distinct result names of a search frame, keeping the
// first limit in document order. Sponsored repeats collapse into one entry.
func ResultNames(doc *goquery.Document, limit int) []string {
	els := doc.Find("span.TYaxT")
	if els.Length() == 0 {
		els = doc.Find(`a[href*="/entry/place/"] > span`)
	}

	seen := map[string]struct{}{}
	var names []string
	els.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n := strings.TrimSpace(s.Text())
		if n == "" {
			return true
		}
		if _, dup := seen[n]; !dup {
			seen[n] = struct{}{}
			names = append(names, n)
		}
		return limit <= 0 || len(names) < limit
	})
	return names
}

// Competitors discovers the places returned for query and writes competitors_top<N>_names.csv
func (r *Runner) Competitors(ctx context.Context, query string, limit int) ([]string, string, error) {
	var names []string
	err := r.withSession(ctx, query, func(p page.Page, nav *navigate.Navigator) error {
		found, err := NewCompetitorFinder(p, r.Pacer, limit).Find(ctx, nav, query)
		names = found
		return err
	})
	if err != nil {
		return nil, "", err
	}

	log := logger.ForComponent("competitors")
	for i, n := range names {
		log.Debug().Int("rank", i+1).Str("name", n).Msg("competitor")
	}

	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return names, "", errors.NewStorage(query, "create output dir", err)
	}
	path := filepath.Join(r.OutputDir, fmt.Sprintf("competitors_top%d_names.csv", limit))
	err = sink.WriteCSV(path, CompetitorHeader, len(names), func(i int) []string {
		return []string{strconv.Itoa(i + 1), names[i]}
	})
	if err != nil {
		return names, "", errors.NewStorage(query, "write competitors", err)
	}
	log.Info().Str("query", query).Int("found", len(names)).Str("path", path).Msg("competitors saved")
	return names, path, nil
}

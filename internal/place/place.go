// Package place extracts the secondary place data: home info, menus, review
// keywords and the competitor list of a search query.
package place

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/placereviewworker/helpers"
	"sjsage522/placereviewworker/internal/navigate"
	"sjsage522/placereviewworker/internal/page"
	"sjsage522/placereviewworker/logger"
	"sjsage522/placereviewworker/pkg/errors"
)

const stampLayout = "20060102_150405"

var (
	numberRun   = regexp.MustCompile(`\d[\d,]*`)
	blankRun    = regexp.MustCompile(`[ \t]+`)
	fileSlugBad = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	fileSlugSep = regexp.MustCompile(`[-\s]+`)
)

// SessionFactory opens a fresh page session
type SessionFactory func(ctx context.Context) (page.Page, error)

// Runner opens one session per place and hands the detail frame to an extractor
type Runner struct {
	NewSession   SessionFactory
	Pacer        page.Pacer
	SearchURL    string
	FrameTimeout time.Duration
	OutputDir    string
	Diagnostics  helpers.LoggerInterface

	now func() time.Time
}

func NewRunner(factory SessionFactory, pacer page.Pacer, searchURL string, frameTimeout time.Duration, outputDir string) *Runner {
	return &Runner{
		NewSession:   factory,
		Pacer:        pacer,
		SearchURL:    searchURL,
		FrameTimeout: frameTimeout,
		OutputDir:    outputDir,
		now:          time.Now,
	}
}

func (r *Runner) stamp() string {
	if r.now == nil {
		return time.Now().Format(stampLayout)
	}
	return r.now().Format(stampLayout)
}

// withSession runs fn on a fresh session. The session is closed on every path.
func (r *Runner) withSession(ctx context.Context, entity string, fn func(p page.Page, nav *navigate.Navigator) error) error {
	p, err := r.NewSession(ctx)
	if err != nil {
		return errors.NewSession(entity, "start browser", err)
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			logger.ForEntity(entity).Warn().Err(cerr).Msg("session close failed")
		}
	}()
	return fn(p, navigate.New(p, r.Pacer, r.SearchURL, r.FrameTimeout))
}

// eachPlace opens every name's detail frame in turn. Failures are logged and
// the batch continues.
func (r *Runner) eachPlace(ctx context.Context, names []string, fn func(p page.Page, nav *navigate.Navigator, name string) error) (failed int) {
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		err := r.withSession(ctx, name, func(p page.Page, nav *navigate.Navigator) error {
			if err := nav.OpenEntryBySearch(ctx, name); err != nil {
				return err
			}
			return fn(p, nav, name)
		})
		if err != nil {
			failed++
			logger.ForEntity(name).Error().Err(err).Msg("extraction failed")
			if r.Diagnostics != nil {
				r.Diagnostics.LogError(name, err)
			}
		}
		r.Pacer.Pause(ctx, page.Range{Min: 0.8, Max: 1.2})
	}
	return failed
}

// snapshot parses the current frame's document
func snapshot(ctx context.Context, p page.Page, entity string) (*goquery.Document, error) {
	html, err := p.HTML(ctx)
	if err != nil {
		return nil, errors.NewSession(entity, "read document", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.NewParsing(entity, "parse document", err)
	}
	return doc, nil
}

// placeName prefers og:title and falls back to the header span
func placeName(doc *goquery.Document) string {
	html, _ := doc.Html()
	if name := navigate.PlaceTitle(html); name != "" {
		return name
	}
	for _, css := range []string{"span.Fc1rA", "h1 span", "h2 span"} {
		if t := strings.TrimSpace(doc.Find(css).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// IntFrom parses the first digit run of s, commas allowed
func IntFrom(s string) *int {
	m := numberRun.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return nil
	}
	return &n
}

func collapse(s string) string {
	return strings.TrimSpace(blankRun.ReplaceAllString(s, " "))
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

// fileSlug keeps letters, digits, '_' and '-' and joins words with '_'
func fileSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(fileSlugBad.ReplaceAllString(name, "")))
	s = fileSlugSep.ReplaceAllString(s, "_")
	if s == "" {
		return "place"
	}
	return s
}

// clickMore clicks a visible control labelled "더보기" up to max times, stopping
// when none is left.
func clickMore(ctx context.Context, p page.Page, pacer page.Pacer, scope string, max int) int {
	css := "a, button"
	if scope != "" {
		css = scope + " a, " + scope + " button"
	}
	clicks := 0
	for clicks < max && ctx.Err() == nil {
		els, err := p.Find(ctx, page.Query{CSS: css, Text: "더보기"})
		if err != nil || len(els) == 0 {
			break
		}
		target, ok := firstVisible(ctx, p, els)
		if !ok {
			break
		}
		_ = p.ScrollIntoView(ctx, target)
		if err := p.Click(ctx, target); err != nil {
			break
		}
		clicks++
		pacer.Pause(ctx, page.Range{Min: 0.4, Max: 0.6})
	}
	return clicks
}

func firstVisible(ctx context.Context, p page.Page, els []page.Element) (page.Element, bool) {
	for _, el := range els {
		if ok, err := p.Visible(ctx, el); err == nil && ok {
			return el, true
		}
	}
	return page.Element{}, false
}

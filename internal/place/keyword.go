package place

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/placereviewworker/internal/navigate"
	"sjsage522/placereviewworker/internal/page"
	"sjsage522/placereviewworker/logger"
	"sjsage522/placereviewworker/pkg/errors"
	"sjsage522/placereviewworker/services/sink"
)

var KeywordHeader = []string{"place_name", "label", "count"}

// Keyword is one "what visitors liked" label with its vote count
type Keyword struct {
	Place string `json:"place_name"`
	Label string `json:"label"`
	Count *int   `json:"count"`
}

// ParseKeywords reads the keyword list of the reviews tab
func ParseKeywords(doc *goquery.Document, place string) []Keyword {
	items := doc.Find("li:has(span.t3JSf):has(span.CUoLy)")
	if items.Length() == 0 {
		items = doc.Find("li").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find("span").FilterFunction(func(_ int, sp *goquery.Selection) bool {
				return strings.Contains(sp.Text(), "키워드를 선택한 인원")
			}).Length() > 0
		})
	}

	var out []Keyword
	items.Each(func(_ int, li *goquery.Selection) {
		label := keywordLabel(li)
		if label == "" {
			return
		}
		count := IntFrom(li.Find("span.CUoLy").First().Text())
		if count == nil {
			count = IntFrom(li.Text())
		}
		out = append(out, Keyword{Place: place, Label: label, Count: count})
	})
	return out
}

func keywordLabel(li *goquery.Selection) string {
	if t := strings.TrimSpace(li.Find("span.t3JSf").First().Text()); t != "" {
		return strings.ReplaceAll(t, `"`, "")
	}

	var spans []string
	li.Find("span").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			spans = append(spans, t)
		}
	})
	if len(spans) == 0 {
		return ""
	}
	label := spans[0]
	for _, s := range spans {
		if !strings.Contains(s, "키워드") {
			label = s
			break
		}
	}
	return strings.ReplaceAll(label, `"`, "")
}

// KeywordExtractor opens the reviews tab and reads its keyword votes
type KeywordExtractor struct {
	Page      page.Page
	Pacer     page.Pacer
	MaxClicks int
}

func NewKeywordExtractor(p page.Page, pacer page.Pacer) *KeywordExtractor {
	return &KeywordExtractor{Page: p, Pacer: pacer, MaxClicks: 5}
}

func (k *KeywordExtractor) Extract(ctx context.Context, nav *navigate.Navigator, entity string) ([]Keyword, error) {
	if err := nav.EnsureEntryFrame(ctx, entity); err != nil {
		return nil, err
	}
	if !nav.OpenTab(ctx, "리뷰") {
		logger.ForEntity(entity).Debug().Msg("reviews tab not found")
	}
	clickMore(ctx, k.Page, k.Pacer, "", k.MaxClicks)

	doc, err := snapshot(ctx, k.Page, entity)
	if err != nil {
		return nil, err
	}
	place := placeName(doc)
	if place == "" {
		place = entity
	}
	return ParseKeywords(doc, place), nil
}

// Keywords collects every place's keyword votes into competitors_keywords_<ts>.csv
func (r *Runner) Keywords(ctx context.Context, names []string) ([]Keyword, string, error) {
	var all []Keyword
	r.eachPlace(ctx, names, func(p page.Page, nav *navigate.Navigator, name string) error {
		kws, err := NewKeywordExtractor(p, r.Pacer).Extract(ctx, nav, name)
		if err != nil {
			return err
		}
		all = append(all, kws...)
		logger.ForEntity(name).Info().Int("keywords", len(kws)).Msg("keywords collected")
		return nil
	})
	if len(all) == 0 {
		return nil, "", nil
	}

	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return all, "", errors.NewStorage("keywords", "create output dir", err)
	}
	path := filepath.Join(r.OutputDir, fmt.Sprintf("competitors_keywords_%s.csv", r.stamp()))
	err := sink.WriteCSV(path, KeywordHeader, len(all), func(i int) []string {
		return []string{all[i].Place, all[i].Label, formatInt(all[i].Count)}
	})
	if err != nil {
		return all, "", errors.NewStorage("keywords", "write keywords", err)
	}
	return all, path, nil
}

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

var InfoHeader = []string{"name", "total_reviews", "visitor_reviews", "blog_reviews", "address"}

// Info is the home tab summary of a place
type Info struct {
	Name           string `json:"name"`
	TotalReviews   *int   `json:"total_reviews"`
	VisitorReviews *int   `json:"visitor_reviews"`
	BlogReviews    *int   `json:"blog_reviews"`
	Address        string `json:"address"`
}

// ParseInfo reads name, review counts and address from a detail frame document
func ParseInfo(doc *goquery.Document) Info {
	info := Info{
		Name:           placeName(doc),
		VisitorReviews: reviewCount(doc, "/review/visitor", "방문자 리뷰"),
		BlogReviews:    reviewCount(doc, "/review/ugc", "블로그 리뷰"),
		Address:        collapse(address(doc)),
	}

	switch {
	case info.VisitorReviews != nil && info.BlogReviews != nil:
		total := *info.VisitorReviews + *info.BlogReviews
		info.TotalReviews = &total
	case info.VisitorReviews != nil:
		info.TotalReviews = info.VisitorReviews
	default:
		info.TotalReviews = info.BlogReviews
	}
	return info
}

func reviewCount(doc *goquery.Document, href, label string) *int {
	link := doc.Find(fmt.Sprintf(`a[role="button"][href*="%s"]`, href)).First()
	if link.Length() > 0 {
		return IntFrom(link.Text())
	}
	match := doc.Find("a, span, button").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), label)
	}).First()
	if match.Length() == 0 {
		return nil
	}
	return IntFrom(match.Text())
}

func address(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("span.LDgIH").First().Text()); t != "" {
		return t
	}

	labels := doc.Find("span").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == "주소"
	})
	if t := strings.TrimSpace(labels.First().Next().Text()); t != "" {
		return t
	}

	// last non-empty span of the block holding the label
	var last string
	labels.First().Closest("div").Find("span").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			last = t
		}
	})
	if last == "주소" {
		return ""
	}
	return last
}

// Info collects the home summary of every place into one competitors_home_basic_<ts>.csv
func (r *Runner) Info(ctx context.Context, names []string) ([]Info, string, error) {
	var infos []Info
	r.eachPlace(ctx, names, func(p page.Page, nav *navigate.Navigator, name string) error {
		doc, err := snapshot(ctx, p, name)
		if err != nil {
			return err
		}
		info := ParseInfo(doc)
		if info.Name == "" {
			info.Name = name
		}
		infos = append(infos, info)
		logger.ForEntity(name).Info().
			Str("address", info.Address).
			Str("total_reviews", formatInt(info.TotalReviews)).
			Msg("home info collected")
		return nil
	})
	if len(infos) == 0 {
		return nil, "", nil
	}

	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return infos, "", errors.NewStorage("info", "create output dir", err)
	}
	path := filepath.Join(r.OutputDir, fmt.Sprintf("competitors_home_basic_%s.csv", r.stamp()))
	err := sink.WriteCSV(path, InfoHeader, len(infos), func(i int) []string {
		in := infos[i]
		return []string{in.Name, formatInt(in.TotalReviews), formatInt(in.VisitorReviews), formatInt(in.BlogReviews), in.Address}
	})
	if err != nil {
		return infos, "", errors.NewStorage("info", "write home info", err)
	}
	return infos, path, nil
}

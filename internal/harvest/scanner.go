package harvest

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/placereviewworker/internal/page"
)

// Scanner turns the review blocks currently rendered in the frame into records
type Scanner struct {
	Page      page.Page
	Locator   BlockLocator
	Selectors BlockSelectors
	PlaceName string
}

func NewScanner(p page.Page, placeName string) *Scanner {
	return &Scanner{
		Page:      p,
		Locator:   DefaultLocator(),
		Selectors: DefaultBlockSelectors,
		PlaceName: placeName,
	}
}

// Scan returns the blocks whose fingerprints were not in seen, in page order,
// adding them to seen. Blocks without a date or a count are skipped.
func (s *Scanner) Scan(ctx context.Context, seen *SeenSet) ([]Record, error) {
	html, err := s.Page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return s.ScanDocument(doc, seen), nil
}

// ScanDocument is Scan over an already parsed snapshot
func (s *Scanner) ScanDocument(doc *goquery.Document, seen *SeenSet) []Record {
	var records []Record
	s.Locator.Locate(doc).Each(func(_ int, block *goquery.Selection) {
		c, ok := s.Selectors.ParseBlock(block)
		if !ok {
			return
		}
		id, date, _, text := MakeFingerprint(c.VisitDate, c.VisitCount, c.ReviewText)
		if !seen.Add(id) {
			return
		}
		records = append(records, Record{
			PlaceName:  s.PlaceName,
			VisitDate:  date,
			VisitCount: c.VisitCount,
			ReviewText: text,
		})
	})
	return records
}

// ScanForRecovery is the recovery sweep's pass; it reports how many unseen
// reviews turned up along with the records themselves.
func (s *Scanner) ScanForRecovery(ctx context.Context, seen *SeenSet) (int, []Record, error) {
	records, err := s.Scan(ctx, seen)
	return len(records), records, err
}

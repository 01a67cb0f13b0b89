package harvest

import (
	"regexp"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	koreanDate = regexp.MustCompile(`(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일`)
	visitNth   = regexp.MustCompile(`(\d{1,3})\s*번째\s*방문`)
)

// BlockSelectors locate the parts of one review block
type BlockSelectors struct {
	VisitInfo string
	DateBlind string
	TextBox   string
	ShowMore  string
}

var DefaultBlockSelectors = BlockSelectors{
	VisitInfo: "div.pui__QKE5Pr",
	DateBlind: ".pui__blind",
	TextBox:   "div.pui__vn15t2",
	ShowMore:  `a[data-pui-click-code="rvshowmore"]`,
}

// ParseKoreanDate converts "YYYY년 M월 D일" found in s to ISO format
func ParseKoreanDate(s string) (string, bool) {
	m := koreanDate.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	t, err := time.Parse("2006-1-2", m[1]+"-"+m[2]+"-"+m[3])
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// ParseVisitCount reads the "N번째 방문" counter from s
func ParseVisitCount(s string) (*int, bool) {
	m := visitNth.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, false
	}
	return &n, true
}

// ParseBlock extracts a candidate from one review block. It reports false
// when the block has neither a visit date nor a visit count.
func (bs BlockSelectors) ParseBlock(block *goquery.Selection) (c Candidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c, ok = Candidate{}, false
		}
	}()

	visit := block.Find(bs.VisitInfo).First()
	if visit.Length() == 0 && block.Is(bs.VisitInfo) {
		visit = block
	}
	if visit.Length() == 0 {
		return Candidate{}, false
	}

	visit.Find(bs.DateBlind).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if d, found := ParseKoreanDate(s.Text()); found {
			c.VisitDate = d
			return false
		}
		return true
	})
	c.VisitCount, _ = ParseVisitCount(visit.Text())

	if c.VisitDate == "" && c.VisitCount == nil {
		return Candidate{}, false
	}
	c.ReviewText = bs.reviewText(block)
	return c, true
}

// reviewText prefers the "show more" anchor and falls back to the text box,
// then to the block's text without its visit info.
func (bs BlockSelectors) reviewText(block *goquery.Selection) string {
	if t := NormalizeText(block.Find(bs.TextBox).First().Find(bs.ShowMore).First().Text()); t != "" {
		return t
	}
	if t := NormalizeText(block.Find(bs.ShowMore).First().Text()); t != "" {
		return t
	}
	if t := NormalizeText(block.Find(bs.TextBox).First().Text()); t != "" {
		return t
	}
	if block.Is(bs.VisitInfo) {
		return ""
	}
	rest := block.Clone()
	rest.Find(bs.VisitInfo).Remove()
	return NormalizeText(rest.Text())
}

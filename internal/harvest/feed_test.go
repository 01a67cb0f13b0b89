package harvest

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/placereviewworker/internal/page/pagetest"
)

type fakeReview struct {
	date   string
	visit  string
	text   string
	folded bool
}

func reviewHTML(i int, r fakeReview) string {
	text := r.text
	fold := ""
	if r.folded {
		runes := []rune(text)
		if len(runes) > 4 {
			text = string(runes[:4]) + "..."
		}
		fold = fmt.Sprintf(`<a role="button" data-review="%d">펼쳐서 더보기</a>`, i)
	}
	return fmt.Sprintf(`<li class="place_apply_pui">
  <div class="pui__vn15t2"><a data-pui-click-code="rvshowmore">%s</a></div>
  %s
  <div class="pui__QKE5Pr">
    <span class="pui__blind">방문일</span><span class="pui__blind">%s</span>
    <span>%s</span>
  </div>
</li>`, text, fold, r.date, r.visit)
}

// feed is a lazily rendered review list: every scroll reveals batch more
// reviews and reaching the very bottom reveals the late ones.
type feed struct {
	reviews []fakeReview
	late    []fakeReview
	shown   int
	batch   int
	frame   *pagetest.Frame
	title   string

	// lateEvery reveals one late review per bottom jump instead of all at once
	lateEvery bool
	lateShown int
}

func newFeed(n, initial, batch int) *feed {
	f := &feed{shown: initial, batch: batch, title: "목구멍 방학점"}
	for i := 0; i < n; i++ {
		f.reviews = append(f.reviews, fakeReview{
			date:  fmt.Sprintf("2024년 %d월 %d일 월요일", i%12+1, i%28+1),
			visit: fmt.Sprintf("%d번째 방문", i%3+1),
			text:  fmt.Sprintf("리뷰 본문 %d 정말 맛있어요", i),
		})
	}
	f.frame = &pagetest.Frame{Render: f.render, Viewport: 1000, Height: 1 << 30}
	f.frame.OnScroll = f.onScroll
	f.frame.OnClick = f.onClick
	return f
}

func (f *feed) onScroll(y int) {
	f.shown += f.batch
	if y == f.frame.Height-f.frame.Viewport {
		if f.lateEvery {
			f.lateShown++
		} else {
			f.lateShown = len(f.late)
		}
	}
}

func (f *feed) onClick(sel *goquery.Selection) {
	var i int
	if v, ok := sel.Attr("data-review"); ok {
		if _, err := fmt.Sscan(v, &i); err == nil && i < len(f.reviews) {
			f.reviews[i].folded = false
		}
	}
}

func (f *feed) visible() []fakeReview {
	n := f.shown
	if n > len(f.reviews) {
		n = len(f.reviews)
	}
	out := append([]fakeReview{}, f.reviews[:n]...)
	l := f.lateShown
	if l > len(f.late) {
		l = len(f.late)
	}
	return append(out, f.late[:l]...)
}

func (f *feed) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><head><meta property="og:title" content="%s : 네이버 지도"></head><body><ul>`, f.title)
	for i, r := range f.visible() {
		b.WriteString(reviewHTML(i, r))
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

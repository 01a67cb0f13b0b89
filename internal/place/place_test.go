package place

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/placereviewworker/internal/navigate"
	"sjsage522/placereviewworker/internal/page"
	"sjsage522/placereviewworker/internal/page/pagetest"
)

const testSearchURL = "https://map.naver.com/p/search/"

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func entrySession(name string, entry *pagetest.Frame) *pagetest.Page {
	p := pagetest.New()
	p.Frames[navigate.SearchFrame] = pagetest.StaticFrame(fmt.Sprintf(
		`<ul><li><a role="button" class="place_bluelink"><span class="TYaxT">%s</span></a></li></ul>`, name))
	if entry != nil {
		p.Frames[navigate.EntryFrame] = entry
	}
	return p
}

func queue(sessions ...*pagetest.Page) SessionFactory {
	var mu sync.Mutex
	return func(ctx context.Context) (page.Page, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(sessions) == 0 {
			return nil, errors.New("no browser")
		}
		p := sessions[0]
		sessions = sessions[1:]
		return p, nil
	}
}

func testRunner(t *testing.T, factory SessionFactory) *Runner {
	r := NewRunner(factory, page.NoPacer{}, testSearchURL, time.Second, t.TempDir())
	r.now = func() time.Time { return time.Date(2025, 9, 1, 13, 5, 0, 0, time.UTC) }
	return r
}

func readCSV(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "\ufeff"))
	return strings.TrimPrefix(string(data), "\ufeff")
}

func TestIntFrom(t *testing.T) {
	assert.Equal(t, 1234, *IntFrom("방문자 리뷰 1,234"))
	assert.Equal(t, 7, *IntFrom("7개"))
	assert.Nil(t, IntFrom("리뷰 없음"))
	assert.Nil(t, IntFrom(""))
}

func TestFileSlug(t *testing.T) {
	assert.Equal(t, "목구멍_방학점", fileSlug("목구멍 방학점"))
	assert.Equal(t, "_awesome_shop", fileSlug("---Awesome---Shop"))
	assert.Equal(t, "bbq_치킨", fileSlug("BBQ (치킨)"))
	assert.Equal(t, "place", fileSlug("!!!"))
}

const homeHTML = `<html><head><meta property="og:title" content="돈미화로 방학동점 : 네이버 지도"></head><body>
<a role="tab">홈</a>
<a role="button" href="/place/1/review/visitor">방문자 리뷰 1,234</a>
<a role="button" href="/place/1/review/ugc">블로그 리뷰 56</a>
<span class="LDgIH">서울 도봉구   방학로	12</span>
</body></html>`

func TestParseInfo(t *testing.T) {
	info := ParseInfo(doc(t, homeHTML))

	assert.Equal(t, "돈미화로 방학동점", info.Name)
	assert.Equal(t, 1234, *info.VisitorReviews)
	assert.Equal(t, 56, *info.BlogReviews)
	assert.Equal(t, 1290, *info.TotalReviews)
	assert.Equal(t, "서울 도봉구 방학로 12", info.Address)
}

func TestParseInfoFallbacks(t *testing.T) {
	info := ParseInfo(doc(t, `<div><span class="Fc1rA">목구멍</span>
<span>방문자 리뷰 <em>88</em></span>
<div><span>주소</span><span>서울 도봉구 방학동 1</span></div></div>`))

	assert.Equal(t, "목구멍", info.Name)
	assert.Equal(t, 88, *info.VisitorReviews)
	assert.Nil(t, info.BlogReviews)
	assert.Equal(t, 88, *info.TotalReviews)
	assert.Equal(t, "서울 도봉구 방학동 1", info.Address)

	empty := ParseInfo(doc(t, `<div>정보 없음</div>`))
	assert.Nil(t, empty.TotalReviews)
	assert.Empty(t, empty.Address)
}

func TestRunnerInfoWritesCSV(t *testing.T) {
	ok := entrySession("돈미화로 방학동점", pagetest.StaticFrame(homeHTML))
	missing := entrySession("없는 가게", nil)
	r := testRunner(t, queue(ok, missing))

	infos, path, err := r.Info(context.Background(), []string{"돈미화로 방학동점", "없는 가게"})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.True(t, ok.Closed)
	assert.True(t, missing.Closed)
	assert.Equal(t, filepath.Join(r.OutputDir, "competitors_home_basic_20250901_130500.csv"), path)

	assert.Equal(t,
		"name,total_reviews,visitor_reviews,blog_reviews,address\n"+
			"돈미화로 방학동점,1290,1234,56,서울 도봉구 방학로 12\n",
		readCSV(t, path))
}

type menuState struct {
	shown, max int
}

func (m *menuState) frame() *pagetest.Frame {
	f := pagetest.StaticFrame("")
	f.Render = func() string {
		var b strings.Builder
		b.WriteString(`<html><body><a role="tab">홈</a><a role="tab">메뉴</a><section><h2>메뉴</h2><ul>`)
		for i := 0; i < m.shown; i++ {
			blind := ""
			if i == 0 {
				blind = `<span class="place_blind">대표</span>`
			}
			fmt.Fprintf(&b, `<li class="E2jtL">%s<span class="lPzHi">메뉴 %d</span><em>1%d,000원</em></li>`, blind, i, i)
		}
		b.WriteString(`</ul><button>더보기</button></section></body></html>`)
		return b.String()
	}
	f.OnClick = func(sel *goquery.Selection) {
		if strings.TrimSpace(sel.Text()) == "더보기" && m.shown < m.max {
			m.shown += 3
		}
	}
	return f
}

func TestMenuExtractorExpandsWhileItemsGrow(t *testing.T) {
	state := &menuState{shown: 3, max: 9}
	p := entrySession("목구멍", state.frame())
	nav := navigate.New(p, page.NoPacer{}, testSearchURL, time.Second)

	items, err := NewMenuExtractor(p, page.NoPacer{}).Extract(context.Background(), nav, "목구멍")
	require.NoError(t, err)

	assert.Len(t, items, 9)
	assert.Equal(t, 3, p.CountActions("click:더보기"), "stops on the click that adds nothing")
	assert.Equal(t, 1, p.CountActions("click:메뉴"))
	assert.Equal(t, 3, p.CountActions("scrollBy:700"))

	assert.Equal(t, "메뉴 0", items[0].Name)
	assert.Equal(t, "10,000원", items[0].PriceText)
	assert.Equal(t, 10000, *items[0].Price)
	assert.True(t, items[0].Signature)
	assert.False(t, items[1].Signature)
}

func TestMenuExtractorRespectsMaxRounds(t *testing.T) {
	state := &menuState{shown: 3, max: 100}
	p := entrySession("목구멍", state.frame())
	nav := navigate.New(p, page.NoPacer{}, testSearchURL, time.Second)

	items, err := NewMenuExtractor(p, page.NoPacer{}).Extract(context.Background(), nav, "목구멍")
	require.NoError(t, err)
	assert.Equal(t, 6, p.CountActions("click:더보기"))
	assert.Len(t, items, 21)
}

func TestParseMenuDropsEmptyItems(t *testing.T) {
	items := ParseMenu(doc(t, `<section><h2>메뉴</h2><ul>
<li><div class="yQlqY"><span></span><span>된장찌개</span></div></li>
<li><span>가격 변동</span></li>
<li><em></em>공기밥 1,000원</li>
</ul></section>`))

	require.Len(t, items, 2)
	assert.Equal(t, "된장찌개", items[0].Name)
	assert.Nil(t, items[0].Price)
	assert.Equal(t, "", items[1].Name)
	assert.Equal(t, 1000, *items[1].Price)
}

func TestRunnerMenusFileName(t *testing.T) {
	state := &menuState{shown: 2, max: 2}
	r := testRunner(t, queue(entrySession("목구멍 방학점", state.frame())))

	failed := r.Menus(context.Background(), []string{"목구멍 방학점"})
	assert.Equal(t, 0, failed)

	out := readCSV(t, filepath.Join(r.OutputDir, "목구멍_방학점_menus_20250901_130500.csv"))
	assert.Equal(t, "menu_name,price_text,price,signature\n메뉴 0,\"10,000원\",10000,true\n메뉴 1,\"11,000원\",11000,false\n", out)
}

const keywordHTML = `<html><head><title>싸전갈비 : 네이버 지도</title></head><body>
<a role="tab">리뷰</a>
<ul>
<li><span class="t3JSf">"음식이 맛있어요"</span><span class="CUoLy"><span class="place_blind">이 키워드를 선택한 인원</span>152</span></li>
<li><span class="t3JSf">"양이 많아요"</span><span class="CUoLy"><span class="place_blind">이 키워드를 선택한 인원</span>1,024</span></li>
</ul>%s</body></html>`

func TestParseKeywords(t *testing.T) {
	kws := ParseKeywords(doc(t, fmt.Sprintf(keywordHTML, "")), "싸전갈비")

	require.Len(t, kws, 2)
	assert.Equal(t, "음식이 맛있어요", kws[0].Label)
	assert.Equal(t, 152, *kws[0].Count)
	assert.Equal(t, 1024, *kws[1].Count)
	assert.Equal(t, "싸전갈비", kws[1].Place)
}

func TestParseKeywordsFallback(t *testing.T) {
	kws := ParseKeywords(doc(t, `<ul>
<li><span>키워드를 선택한 인원 31</span><span>고기가 부드러워요</span></li>
<li><span>주차하기 편해요</span></li>
</ul>`), "갈비둥지")

	require.Len(t, kws, 1)
	assert.Equal(t, "고기가 부드러워요", kws[0].Label)
	assert.Equal(t, 31, *kws[0].Count)
}

func TestKeywordExtractorExpandsList(t *testing.T) {
	clicks := 0
	f := pagetest.StaticFrame("")
	f.Render = func() string {
		more := ""
		if clicks < 2 {
			more = `<a role="button">더보기</a>`
		}
		return fmt.Sprintf(keywordHTML, more)
	}
	f.OnClick = func(sel *goquery.Selection) {
		if strings.TrimSpace(sel.Text()) == "더보기" {
			clicks++
		}
	}
	r := testRunner(t, queue(entrySession("싸전갈비", f)))

	kws, path, err := r.Keywords(context.Background(), []string{"싸전갈비"})
	require.NoError(t, err)
	assert.Equal(t, 2, clicks)
	require.Len(t, kws, 2)
	assert.Equal(t, "싸전갈비", kws[0].Place)
	assert.Equal(t, "place_name,label,count\n싸전갈비,음식이 맛있어요,152\n싸전갈비,양이 많아요,1024\n", readCSV(t, path))
}

func TestResultNames(t *testing.T) {
	d := doc(t, `<ul>
<li><span class="TYaxT">와우솥뚜껑</span></li>
<li><span class="TYaxT">목구멍 방학점</span></li>
<li><span class="TYaxT">와우솥뚜껑</span></li>
<li><span class="TYaxT"> </span></li>
<li><span class="TYaxT">싸전갈비</span></li>
<li><span class="TYaxT">갈비둥지</span></li>
</ul>`)

	assert.Equal(t, []string{"와우솥뚜껑", "목구멍 방학점", "싸전갈비"}, ResultNames(d, 3))
	assert.Len(t, ResultNames(d, 0), 4)

	fallback := doc(t, `<a href="/p/entry/place/1"><span>고기굽는베베</span></a><a href="/p/entry/place/2"><span>고기굽는베베</span></a>`)
	assert.Equal(t, []string{"고기굽는베베"}, ResultNames(fallback, 8))
}

func TestRunnerCompetitorsScrollsUntilStable(t *testing.T) {
	p := pagetest.New()
	results := pagetest.StaticFrame(`<ul><li><span class="TYaxT">와우솥뚜껑</span></li><li><span class="TYaxT">싸전갈비</span></li><li><span class="TYaxT">와우솥뚜껑</span></li></ul>`)
	grows := 0
	results.OnScroll = func(y int) {
		if grows < 2 {
			results.Height += 1000
			grows++
		}
	}
	p.Frames[navigate.SearchFrame] = results
	r := testRunner(t, queue(p))

	names, path, err := r.Competitors(context.Background(), "방학역 삼겹살", 8)
	require.NoError(t, err)

	assert.Equal(t, []string{"와우솥뚜껑", "싸전갈비"}, names)
	assert.Equal(t, 5, p.CountActions("scrollTo:1"))
	assert.Equal(t, filepath.Join(r.OutputDir, "competitors_top8_names.csv"), path)
	assert.Equal(t, "rank,name\n1,와우솥뚜껑\n2,싸전갈비\n", readCSV(t, path))
	assert.True(t, p.Closed)
}

func TestRunnerCompetitorsNoFrame(t *testing.T) {
	r := testRunner(t, queue(pagetest.New()))

	_, _, err := r.Competitors(context.Background(), "방학역 삼겹살", 8)
	assert.Error(t, err)
}

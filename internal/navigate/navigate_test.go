package navigate

import (
	"context"
	stderrors "errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/placereviewworker/internal/page"
	"sjsage522/placereviewworker/internal/page/pagetest"
	"sjsage522/placereviewworker/pkg/errors"
)

const searchURL = "https://map.naver.com/p/search/"

const twoResults = `<ul>
<li><a role="button" class="place_bluelink"><span class="TYaxT">목구멍 본점</span></a></li>
<li><a role="button" class="place_bluelink"><span class="TYaxT">목구멍 방학점</span></a></li>
</ul>`

func newNavigator(p page.Page) *Navigator {
	return New(p, page.NoPacer{}, searchURL, time.Second)
}

func errorType(t *testing.T, err error) errors.ErrorType {
	t.Helper()
	var he *errors.HarvestError
	require.True(t, stderrors.As(err, &he), "expected HarvestError, got %v", err)
	return he.Type
}

func TestOpenEntryBySearchPicksBestMatch(t *testing.T) {
	p := pagetest.New()
	p.Frames[SearchFrame] = pagetest.StaticFrame(twoResults)
	p.Frames[EntryFrame] = pagetest.StaticFrame("<html><body>entry</body></html>")

	err := newNavigator(p).OpenEntryBySearch(context.Background(), "목구멍방학점")
	require.NoError(t, err)

	assert.Equal(t, []string{searchURL + url.PathEscape("목구멍방학점")}, p.Opened)
	assert.Equal(t, 1, p.CountActions("click:목구멍 방학점"))
	assert.Zero(t, p.CountActions("click:목구멍 본점"))
	assert.Equal(t, 1, p.CountActions("scrollTo:1"))
}

func TestOpenEntryBySearchFallsBackToFirstResult(t *testing.T) {
	p := pagetest.New()
	p.Frames[SearchFrame] = pagetest.StaticFrame(twoResults)
	p.Frames[EntryFrame] = pagetest.StaticFrame("<html></html>")

	require.NoError(t, newNavigator(p).OpenEntryBySearch(context.Background(), "싸전갈비"))
	assert.Equal(t, 1, p.CountActions("click:목구멍 본점"))
}

func TestOpenEntryBySearchUsesFallbackSelector(t *testing.T) {
	p := pagetest.New()
	p.Frames[SearchFrame] = pagetest.StaticFrame(`<div><a href="#"><span class="TYaxT">싸전갈비</span></a></div>`)
	p.Frames[EntryFrame] = pagetest.StaticFrame("<html></html>")

	require.NoError(t, newNavigator(p).OpenEntryBySearch(context.Background(), "싸전갈비"))
	assert.Equal(t, 1, p.CountActions("click:싸전갈비"))
}

func TestOpenEntryBySearchNoResults(t *testing.T) {
	p := pagetest.New()
	p.Frames[SearchFrame] = pagetest.StaticFrame("<div>검색 결과가 없습니다</div>")

	n := newNavigator(p)
	n.FrameTimeout = 100 * time.Millisecond
	n.Poll = 10 * time.Millisecond

	err := n.OpenEntryBySearch(context.Background(), "없는가게")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNavigation, errorType(t, err))
}

func TestOpenEntryBySearchWaitsForLateResults(t *testing.T) {
	renders := 0
	p := pagetest.New()
	p.Frames[SearchFrame] = &pagetest.Frame{
		Render: func() string {
			renders++
			if renders < 3 {
				return "<div>로딩 중</div>"
			}
			return twoResults
		},
		Viewport: 1000,
		Height:   5000,
	}
	p.Frames[EntryFrame] = pagetest.StaticFrame("<html></html>")
	n := newNavigator(p)
	n.Poll = 10 * time.Millisecond

	require.NoError(t, n.OpenEntryBySearch(context.Background(), "목구멍 방학점"))
	assert.Equal(t, 1, p.CountActions("click:목구멍 방학점"))
	assert.GreaterOrEqual(t, renders, 3)
}

func TestOpenEntryBySearchMissingEntryFrame(t *testing.T) {
	p := pagetest.New()
	p.Frames[SearchFrame] = pagetest.StaticFrame(twoResults)

	err := newNavigator(p).OpenEntryBySearch(context.Background(), "목구멍 방학점")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeFrameTimeout, errorType(t, err))
}

func TestOpenSearchOpenFailure(t *testing.T) {
	p := pagetest.New()
	p.Fail = func(op string) error {
		if op == "Open" {
			return stderrors.New("browser gone")
		}
		return nil
	}

	err := newNavigator(p).OpenSearch(context.Background(), "목구멍")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeSession, errorType(t, err))
}

func TestOpenTab(t *testing.T) {
	p := pagetest.New()
	p.Frames[EntryFrame] = pagetest.StaticFrame(`<div>
<a role="tab">홈</a><a role="tab">메뉴</a><button>리뷰</button>
</div>`)
	n := newNavigator(p)
	require.NoError(t, n.EnsureEntryFrame(context.Background(), "목구멍"))

	assert.True(t, n.OpenTab(context.Background(), "메뉴"))
	assert.Equal(t, 1, p.CountActions("click:메뉴"))

	assert.True(t, n.OpenTab(context.Background(), "리뷰"))
	assert.Equal(t, 1, p.CountActions("click:리뷰"))

	assert.False(t, n.OpenTab(context.Background(), "사진"))
}

func TestOpenTabLeavesSelectedTabAlone(t *testing.T) {
	p := pagetest.New()
	p.Top = pagetest.StaticFrame(`<div><a role="tab" aria-selected="true">리뷰</a></div>`)

	assert.True(t, newNavigator(p).OpenTab(context.Background(), "리뷰"))
	assert.Zero(t, p.CountActions("click:"))
}

func TestSortByLatest(t *testing.T) {
	p := pagetest.New()
	p.Top = pagetest.StaticFrame(`<div><button>추천순 정렬</button><ul><li>추천순</li><li>최신순</li></ul></div>`)
	assert.True(t, newNavigator(p).SortByLatest(context.Background()))
	assert.Equal(t, 1, p.CountActions("click:최신순"))

	bare := pagetest.New()
	assert.False(t, newNavigator(bare).SortByLatest(context.Background()))
}

func TestPlaceTitle(t *testing.T) {
	assert.Equal(t, "돈미화로 방학동점",
		PlaceTitle(`<html><head><meta property="og:title" content="돈미화로 방학동점 : 네이버"><title>x</title></head></html>`))
	assert.Equal(t, "목구멍 방학점",
		PlaceTitle(`<html><head><title>목구멍 방학점 : 네이버 지도</title></head></html>`))
	assert.Equal(t, "싸전갈비", PlaceTitle(`<html><head><title>싸전갈비</title></head></html>`))
	assert.Equal(t, "", PlaceTitle(""))
}

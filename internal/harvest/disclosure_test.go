package harvest

import (
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/placereviewworker/internal/page"
	"sjsage522/placereviewworker/internal/page/pagetest"
)

func TestExpandAllRevealsFoldedReviews(t *testing.T) {
	f := newFeed(4, 4, 0)
	f.reviews[1].folded = true
	f.reviews[3].folded = true
	p := pagetest.New()
	p.Top = f.frame

	d := NewDiscloser(p, page.NoPacer{})
	clicks, err := d.ExpandAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, clicks)
	assert.False(t, f.reviews[1].folded)
	assert.False(t, f.reviews[3].folded)

	// nothing left to expand
	clicks, err = d.ExpandAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, clicks)
}

func TestExpandAllIgnoresHiddenAndPartialLabels(t *testing.T) {
	p := pagetest.New()
	p.Top = pagetest.StaticFrame(`<div>
		<a hidden>펼쳐서 더보기</a>
		<div style="display: none"><button>펼쳐서 더보기</button></div>
		<a>더보기</a>
		<a>리뷰 펼쳐서 더보기 안내</a>
	</div>`)

	clicks, err := NewDiscloser(p, page.NoPacer{}).ExpandAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, clicks)
	assert.Equal(t, 0, p.CountActions("click"))
}

func TestExpandAllRespectsBudgets(t *testing.T) {
	// a fold that never goes away
	frame := pagetest.StaticFrame(`<a>펼쳐서 더보기</a><button>펼쳐서 더보기</button>`)
	clicked := 0
	frame.OnClick = func(*goquery.Selection) { clicked++ }
	p := pagetest.New()
	p.Top = frame

	d := NewDiscloser(p, page.NoPacer{})
	clicks, err := d.ExpandAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16, clicks, "two per pass for eight passes")

	d.MaxClicks = 3
	clicks, err = d.ExpandAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, clicks)
	assert.Equal(t, 19, clicked)
}

package harvest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/placereviewworker/helpers"
	"sjsage522/placereviewworker/internal/navigate"
	"sjsage522/placereviewworker/internal/page"
	"sjsage522/placereviewworker/internal/page/pagetest"
	"sjsage522/placereviewworker/services/cache"
)

type memorySink struct {
	mu    sync.Mutex
	saved map[string][]Record
	err   error
}

func (s *memorySink) Save(ctx context.Context, place string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.saved == nil {
		s.saved = map[string][]Record{}
	}
	s.saved[place] = append(s.saved[place], records...)
	return nil
}

const searchResults = `<ul>
  <li><a role="button" class="place_bluelink"><span class="TYaxT">다른 고깃집</span><span>돼지고기구이</span></a></li>
  <li><a role="button" class="place_bluelink"><span class="TYaxT">%s</span><span>돼지고기구이</span></a></li>
</ul>`

func placeSession(name string, f *feed, withEntry bool) *pagetest.Page {
	p := pagetest.New()
	p.Frames[navigate.SearchFrame] = pagetest.StaticFrame(strings.Replace(searchResults, "%s", name, 1))
	if withEntry {
		render := f.render
		f.frame.Render = func() string {
			return strings.Replace(render(), "<body>", `<body><a role="tab">홈</a><a role="tab">리뷰</a><button>정렬</button><ol><li>추천순</li><li>최신순</li></ol>`, 1)
		}
		p.Frames[navigate.EntryFrame] = f.frame
	}
	return p
}

func sessionQueue(sessions ...*pagetest.Page) SessionFactory {
	var mu sync.Mutex
	return func(ctx context.Context) (page.Page, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(sessions) == 0 {
			return nil, errors.New("chrome failed to start")
		}
		p := sessions[0]
		sessions = sessions[1:]
		return p, nil
	}
}

func newTestHarvester(factory SessionFactory, sink Sink, diag string) *Harvester {
	return &Harvester{
		NewSession:   factory,
		Sink:         sink,
		Pacer:        page.NoPacer{},
		Options:      DefaultOptions(),
		SearchURL:    "https://map.naver.com/p/search/",
		FrameTimeout: 10 * time.Second,
		Diagnostics:  helpers.NewLogger(diag),
	}
}

func TestHarvesterRunsEachPlaceInOrder(t *testing.T) {
	first := newFeed(12, 4, 4)
	first.reviews[0].folded = true
	third := newFeed(3, 3, 0)
	third.title = "싸전갈비"

	s1 := placeSession("목구멍 방학점", first, true)
	s2 := placeSession("없는 가게", newFeed(0, 0, 0), false)
	s3 := placeSession("싸전갈비", third, true)

	sink := &memorySink{}
	diag := filepath.Join(t.TempDir(), "harvest_errors.log")
	h := newTestHarvester(sessionQueue(s1, s2, s3), sink, diag)

	sum := h.Run(context.Background(), []string{"목구멍 방학점", "없는 가게", "싸전갈비"})

	assert.Equal(t, Summary{Harvested: 2, Failed: 1, Collected: 15}, sum)
	assert.Len(t, sink.saved["목구멍 방학점"], 12)
	assert.Len(t, sink.saved["싸전갈비"], 3)
	assert.Equal(t, "싸전갈비", sink.saved["싸전갈비"][0].PlaceName)
	assert.Equal(t, first.reviews[0].text, sink.saved["목구멍 방학점"][0].ReviewText)

	for _, s := range []*pagetest.Page{s1, s2, s3} {
		assert.True(t, s.Closed, "session closed on every path")
	}
	assert.Equal(t, []string{"https://map.naver.com/p/search/%EB%AA%A9%EA%B5%AC%EB%A9%8D%20%EB%B0%A9%ED%95%99%EC%A0%90"}, s1.Opened)
	assert.Equal(t, 1, s1.CountActions("click:리뷰"))
	assert.Equal(t, 1, s1.CountActions("click:최신순"))
	assert.Equal(t, 1, s1.CountActions("click:목구멍 방학점"), "best name match instead of the first result")

	data, err := os.ReadFile(diag)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[없는 가게] [frame_timeout]")
}

func TestHarvesterSessionFailureDoesNotStopBatch(t *testing.T) {
	f := newFeed(2, 2, 0)
	sink := &memorySink{}
	diag := filepath.Join(t.TempDir(), "harvest_errors.log")
	h := newTestHarvester(sessionQueue(placeSession("목구멍 방학점", f, true)), sink, diag)

	sum := h.Run(context.Background(), []string{"목구멍 방학점", "싸전갈비"})

	assert.Equal(t, 1, sum.Harvested)
	assert.Equal(t, 1, sum.Failed)
	data, _ := os.ReadFile(diag)
	assert.Contains(t, string(data), "chrome failed to start")
}

func TestHarvesterNoSearchResult(t *testing.T) {
	p := pagetest.New()
	p.Frames[navigate.SearchFrame] = pagetest.StaticFrame(`<div>검색결과가 없습니다</div>`)
	h := newTestHarvester(sessionQueue(p), &memorySink{}, filepath.Join(t.TempDir(), "e.log"))
	h.FrameTimeout = 100 * time.Millisecond

	_, _, err := h.HarvestOne(context.Background(), "없는 가게")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[navigation]")
	assert.True(t, p.Closed)
}

func TestHarvesterStorageFailure(t *testing.T) {
	f := newFeed(2, 2, 0)
	sink := &memorySink{err: errors.New("disk full")}
	h := newTestHarvester(sessionQueue(placeSession("목구멍 방학점", f, true)), sink, filepath.Join(t.TempDir(), "e.log"))

	n, _, err := h.HarvestOne(context.Background(), "목구멍 방학점")
	require.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, err.Error(), "[storage]")
}

func TestHarvesterGuardSkipsRecentPlaces(t *testing.T) {
	guard := cache.NewHarvestGuard(cache.NewMemoryService(), time.Hour)
	sink := &memorySink{}
	h := newTestHarvester(sessionQueue(placeSession("목구멍 방학점", newFeed(2, 2, 0), true)), sink, filepath.Join(t.TempDir(), "e.log"))
	h.Guard = guard

	sum := h.Run(context.Background(), []string{"목구멍 방학점"})
	assert.Equal(t, 1, sum.Harvested)

	// no sessions left: a second harvest would fail if it were not skipped
	sum = h.Run(context.Background(), []string{"목구멍 방학점"})
	assert.Equal(t, Summary{Skipped: 1}, sum)
	assert.Len(t, sink.saved["목구멍 방학점"], 2)
}

// unwritableCache reads and deletes like memcache but refuses every write
type unwritableCache struct{ *cache.MemoryService }

func (unwritableCache) Set(string, []byte, time.Duration) error {
	return errors.New("memcache: no servers configured or available")
}

func TestHarvesterGuardMarkFailureKeepsHarvest(t *testing.T) {
	sink := &memorySink{}
	h := newTestHarvester(sessionQueue(placeSession("목구멍 방학점", newFeed(2, 2, 0), true)), sink, filepath.Join(t.TempDir(), "e.log"))
	h.Guard = cache.NewHarvestGuard(unwritableCache{cache.NewMemoryService()}, time.Hour)

	sum := h.Run(context.Background(), []string{"목구멍 방학점"})
	assert.Equal(t, Summary{Harvested: 1, Collected: 2}, sum)
	assert.Len(t, sink.saved["목구멍 방학점"], 2)
}

func TestHarvesterForceIgnoresGuard(t *testing.T) {
	guard := cache.NewHarvestGuard(cache.NewMemoryService(), time.Hour)
	require.NoError(t, guard.Mark("목구멍 방학점", 2))

	sink := &memorySink{}
	h := newTestHarvester(sessionQueue(placeSession("목구멍 방학점", newFeed(2, 2, 0), true)), sink, filepath.Join(t.TempDir(), "e.log"))
	h.Guard = guard
	h.Force = true

	sum := h.Run(context.Background(), []string{"목구멍 방학점"})
	assert.Equal(t, 1, sum.Harvested)
	assert.Zero(t, sum.Skipped)
	assert.Len(t, sink.saved["목구멍 방학점"], 2)

	recent, err := guard.Recent("목구멍 방학점")
	require.NoError(t, err)
	assert.True(t, recent, "a forced harvest marks the place again")
}

package harvest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/placereviewworker/internal/page/pagetest"
)

func scannerFor(html string) (*Scanner, *pagetest.Page) {
	p := pagetest.New()
	p.Top = pagetest.StaticFrame(html)
	return NewScanner(p, "목구멍 방학점"), p
}

func TestScanCollapsesWhitespaceDuplicates(t *testing.T) {
	s, _ := scannerFor("<ul>" +
		reviewHTML(0, fakeReview{date: "2023년 5월 1일", visit: "1번째 방문", text: "맛있어요"}) +
		reviewHTML(1, fakeReview{date: "2023년5월1일", visit: "1번째 방문", text: "맛있어요  "}) +
		"</ul>")

	records, err := s.Scan(context.Background(), NewSeenSet())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "목구멍 방학점", records[0].PlaceName)
	assert.Equal(t, "2023-05-01", records[0].VisitDate)
	assert.Equal(t, 1, *records[0].VisitCount)
	assert.Equal(t, "맛있어요", records[0].ReviewText)
}

func TestScanDiscardsBlocksWithoutSignal(t *testing.T) {
	s, _ := scannerFor("<ul>" +
		reviewHTML(0, fakeReview{date: "방문일", visit: "예약 후 이용", text: "정말 맛있어요"}) +
		"</ul>")

	records, err := s.Scan(context.Background(), NewSeenSet())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestScanSkipsSeen(t *testing.T) {
	f := newFeed(6, 6, 0)
	p := pagetest.New()
	p.Top = f.frame
	s := NewScanner(p, "x")
	seen := NewSeenSet()

	first, err := s.Scan(context.Background(), seen)
	require.NoError(t, err)
	assert.Len(t, first, 6)

	again, err := s.Scan(context.Background(), seen)
	require.NoError(t, err)
	assert.Empty(t, again)

	f.late = []fakeReview{{date: "2022년 1월 1일", visit: "1번째 방문", text: "늦게 보인 리뷰"}}
	f.lateShown = 1
	n, records, err := s.ScanForRecovery(context.Background(), seen)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "늦게 보인 리뷰", records[0].ReviewText)
}

func TestScanReturnsSnapshotError(t *testing.T) {
	s, p := scannerFor("<ul></ul>")
	p.Fail = func(op string) error {
		if op == "HTML" {
			return errors.New("target closed")
		}
		return nil
	}
	_, err := s.Scan(context.Background(), NewSeenSet())
	assert.Error(t, err)
}

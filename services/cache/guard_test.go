package cache

import (
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
)

func TestHarvestGuard(t *testing.T) {
	guard := NewHarvestGuard(NewMemoryService(), time.Hour)

	recent, err := guard.Recent("목구멍 방학점")
	assert.NoError(t, err)
	assert.False(t, recent)

	assert.NoError(t, guard.Mark("목구멍 방학점", 42))
	recent, err = guard.Recent("목구멍 방학점")
	assert.NoError(t, err)
	assert.True(t, recent)

	assert.NoError(t, guard.Forget("목구멍 방학점"))
	assert.NoError(t, guard.Forget("목구멍 방학점"))
	recent, _ = guard.Recent("목구멍 방학점")
	assert.False(t, recent)
}

func TestMemoryServiceExpiry(t *testing.T) {
	m := NewMemoryService()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	assert.NoError(t, m.Set("harvested:x", []byte("3"), time.Minute))
	v, err := m.Get("harvested:x")
	assert.NoError(t, err)
	assert.Equal(t, "3", string(v))

	now = now.Add(2 * time.Minute)
	_, err = m.Get("harvested:x")
	assert.ErrorIs(t, err, memcache.ErrCacheMiss)
}

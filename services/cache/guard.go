package cache

import (
	"errors"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"sjsage522/placereviewworker/helpers"
)

// HarvestGuard remembers which places were harvested recently so a repeating
// worker does not crawl the same place again inside the cooldown.
type HarvestGuard struct {
	cache    CacheService
	cooldown time.Duration
}

func NewHarvestGuard(c CacheService, cooldown time.Duration) *HarvestGuard {
	return &HarvestGuard{cache: c, cooldown: cooldown}
}

func guardKey(place string) string {
	return "harvested:" + helpers.Slugify(place)
}

// Recent reports whether place was marked within the cooldown
func (g *HarvestGuard) Recent(place string) (bool, error) {
	_, err := g.cache.Get(guardKey(place))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Mark stores the number of records collected for place
func (g *HarvestGuard) Mark(place string, collected int) error {
	return g.cache.Set(guardKey(place), []byte(strconv.Itoa(collected)), g.cooldown)
}

// Forget clears the mark so the next run harvests place again
func (g *HarvestGuard) Forget(place string) error {
	err := g.cache.Delete(guardKey(place))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

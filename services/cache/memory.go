package cache

import (
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

type memoryItem struct {
	value   []byte
	expires time.Time
}

// MemoryService is an in-process CacheService with memcache miss semantics
type MemoryService struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewMemoryService() *MemoryService {
	return &MemoryService{items: map[string]memoryItem{}, now: time.Now}
}

func (m *MemoryService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok || (!item.expires.IsZero() && m.now().After(item.expires)) {
		delete(m.items, key)
		return nil, memcache.ErrCacheMiss
	}
	return item.value, nil
}

func (m *MemoryService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := memoryItem{value: value}
	if expiration > 0 {
		item.expires = m.now().Add(expiration)
	}
	m.items[key] = item
	return nil
}

func (m *MemoryService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; !ok {
		return memcache.ErrCacheMiss
	}
	delete(m.items, key)
	return nil
}

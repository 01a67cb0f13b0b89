package cache

import (
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const memcacheTimeout = 500 * time.Millisecond

// MemcacheService backs the harvest guard with memcached
type MemcacheService struct {
	client *memcache.Client
}

// NewMemcacheService creates a client for the given servers
func NewMemcacheService(serverAddr ...string) *MemcacheService {
	client := memcache.New(serverAddr...)
	client.Timeout = memcacheTimeout
	return &MemcacheService{client: client}
}

// Ping checks that every server answers
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}

// Get returns memcache.ErrCacheMiss for unknown keys
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Set stores value for at most expiration, rounded down to whole seconds
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration / time.Second),
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (m *MemcacheService) Delete(key string) error {
	if err := m.client.Delete(key); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return err
	}
	return nil
}

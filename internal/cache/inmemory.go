package cache

import (
	"context"
	"sync"
	"time"
)

type InMemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
	now   func() time.Time
}

var _ Cache = (*InMemoryCache)(nil)

type cacheItem struct {
	data       []byte
	expiration time.Time // zero means no expiration
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheItem),
		now:  time.Now,
	}
}

func (c *InMemoryCache) Set(_ context.Context, key string, data []byte, expiration time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var expiry time.Time
	if expiration > 0 {
		expiry = c.now().Add(expiration)
	}
	c.data[key] = cacheItem{
		data:       append([]byte(nil), data...),
		expiration: expiry,
	}
	return nil
}

func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	item, ok := c.data[key]
	c.mutex.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !item.expiration.IsZero() && c.now().After(item.expiration) {
		c.mutex.Lock()
		delete(c.data, key)
		c.mutex.Unlock()
		return nil, ErrNotFound
	}
	return item.data, nil
}

func (c *InMemoryCache) Delete(_ context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

func (c *InMemoryCache) Healthcheck(context.Context) error {
	return nil
}

func (c *InMemoryCache) Close() error {
	return nil
}

// Package caching holds short-lived in-process caches.
package caching

import (
	"time"

	"github.com/patrickmn/go-cache"
)

type Cache struct {
	memoryCache *cache.Cache
}

// NewCache returns a ready cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		memoryCache: cache.New(ttl, 2*ttl),
	}
}

func (s *Cache) Get(key string) (any, bool) {
	return s.memoryCache.Get(key)
}

func (s *Cache) Set(key string, value any) {
	s.memoryCache.SetDefault(key, value)
}

func (s *Cache) Delete(key string) {
	s.memoryCache.Delete(key)
}

func (s *Cache) Flush() {
	s.memoryCache.Flush()
}

func (s *Cache) Len() int {
	return s.memoryCache.ItemCount()
}

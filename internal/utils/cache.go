package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheItem 包装缓存数据和过期时间
type cacheItem[V any] struct {
	data      V
	expiresAt time.Time
}

// TTLCache 是带过期时间的本地 LRU 缓存，并发安全（底层 lru.Cache 自带锁）。
type TTLCache[V any] struct {
	lruCache *lru.Cache[string, cacheItem[V]]
	now      func() time.Time
}

// NewTTLCache 创建一个容量为 size 的缓存；size <= 0 时返回错误。
func NewTTLCache[V any](size int) (*TTLCache[V], error) {
	l, err := lru.New[string, cacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTLCache[V]{lruCache: l, now: time.Now}, nil
}

// Set 设置缓存，TTL 为过期时间
func (c *TTLCache[V]) Set(key string, data V, ttl time.Duration) {
	c.lruCache.Add(key, cacheItem[V]{
		data:      data,
		expiresAt: c.now().Add(ttl),
	})
}

// Get 获取缓存，不存在或已过期时 ok 为 false
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	val, ok := c.lruCache.Get(key)
	if !ok {
		return zero, false
	}

	// 检查过期
	if c.now().After(val.expiresAt) {
		c.lruCache.Remove(key)
		return zero, false
	}

	return val.data, true
}

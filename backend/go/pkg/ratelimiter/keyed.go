package ratelimiter

import (
	"Athena/backend/go/pkg/util"
	"fmt"
	"time"
)

// KeyedTokenBucket keeps one token bucket per key. Buckets live in an LRU so
// the number of tracked clients stays bounded; an evicted client simply
// starts again with a full bucket.
type KeyedTokenBucket struct {
	rate     float64
	capacity int
	now      func() time.Time
	buckets  *util.LRUCache[string, *TokenBucket]
}

// NewKeyedTokenBucket creates a per-key limiter tracking at most maxKeys buckets.
func NewKeyedTokenBucket(rate float64, capacity, maxKeys int) (*KeyedTokenBucket, error) {
	return newKeyedTokenBucket(rate, capacity, maxKeys, time.Now)
}

func newKeyedTokenBucket(rate float64, capacity, maxKeys int, now func() time.Time) (*KeyedTokenBucket, error) {
	if maxKeys <= 0 {
		return nil, fmt.Errorf("maxKeys must be positive, got %d", maxKeys)
	}
	buckets, err := util.NewWithConfig[string, *TokenBucket](util.CacheConfig{Capacity: maxKeys})
	if err != nil {
		return nil, err
	}
	return &KeyedTokenBucket{rate: rate, capacity: capacity, now: now, buckets: buckets}, nil
}

// AllowKey consumes a token from the bucket belonging to key.
func (k *KeyedTokenBucket) AllowKey(key string) bool {
	bucket := k.buckets.GetOrPut(key, func() *TokenBucket {
		return newTokenBucket(k.rate, k.capacity, k.now)
	})
	return bucket.Allow()
}

var _ KeyedRateLimiter = (*KeyedTokenBucket)(nil)

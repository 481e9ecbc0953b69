package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func TestTokenBucketBurstAndRefill(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	tb := newTokenBucket(2, 3, c.Now)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "request %d", i)
	}
	assert.False(t, tb.Allow())

	c.t = c.t.Add(500 * time.Millisecond)
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	c.t = c.t.Add(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow())
	}
	assert.False(t, tb.Allow(), "refill is capped at capacity")
}

func TestKeyedTokenBucketIsolatesKeys(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	k, err := newKeyedTokenBucket(1, 1, 10, c.Now)
	require.NoError(t, err)

	assert.True(t, k.AllowKey("10.0.0.1"))
	assert.False(t, k.AllowKey("10.0.0.1"))
	assert.True(t, k.AllowKey("10.0.0.2"))
}

func TestKeyedTokenBucketBoundsKeys(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	k, err := newKeyedTokenBucket(1, 1, 1, c.Now)
	require.NoError(t, err)

	assert.True(t, k.AllowKey("a"))
	assert.True(t, k.AllowKey("b"))
	assert.True(t, k.AllowKey("a"), "a was evicted and starts with a full bucket")
	assert.Equal(t, 1, k.buckets.Len())

	_, err = NewKeyedTokenBucket(1, 1, 0)
	assert.Error(t, err)
}

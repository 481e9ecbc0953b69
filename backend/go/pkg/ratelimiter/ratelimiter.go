package ratelimiter

// RateLimiter is the interface for rate limiting.
type RateLimiter interface {
	// Allow returns true if the request is allowed, otherwise returns false.
	Allow() bool
}

// KeyedRateLimiter limits requests per key, e.g. per client address.
type KeyedRateLimiter interface {
	AllowKey(key string) bool
}

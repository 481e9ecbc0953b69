package locks

import (
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/pkg/logger"
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// unlockScript deletes the key only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lease-based lock shared by every replica. The lease expires
// after ttl, so a crashed holder cannot block a key forever.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	retry  time.Duration
	log    *logger.Logger
}

// NewRedis creates a Redis lock whose leases last ttl.
func NewRedis(client redis.Cmdable, ttl time.Duration, log *logger.Logger) *Redis {
	return &Redis{client: client, prefix: "athena:lock:", ttl: ttl, retry: 50 * time.Millisecond, log: log}
}

// Lock polls SETNX until it wins the key or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := r.prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, fullKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, r.client, []string{fullKey}, token).Err(); err != nil && err != redis.Nil {
			r.log.WithErr(err).With("key", fullKey).Warn("failed to release redis lock")
		}
	}, nil
}

var _ interfaces.Locker = (*Redis)(nil)

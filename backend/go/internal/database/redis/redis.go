package redis

import (
	"Athena/backend/go/internal/config"
	"Athena/backend/go/pkg/logger"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	client  *redis.Client
	once    sync.Once
	initErr error
	log     = logger.New("redis")
)

// GetClient 返回进程内共享的 Redis 客户端，首次调用时建立连接并 Ping 一次。
// 会话锁只依赖 SET NX 与 Lua 脚本，因此单节点或哨兵代理地址均可。
func GetClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	once.Do(func() {
		timeout := config.Duration(cfg.Timeout, 5*time.Second)
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.Address,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			DialTimeout:  timeout,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		})

		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			initErr = fmt.Errorf("无法连接到 Redis %s: %w", cfg.Address, err)
			_ = rdb.Close()
			return
		}

		log.WithFields(map[string]interface{}{"address": cfg.Address, "db": cfg.DB}).Info("✅ 成功连接到 Redis!")
		client = rdb
	})

	return client, initErr
}

// Close 关闭共享连接。
func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// HealthCheck 检查 Redis 连接的健康状况。
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("Redis 客户端未初始化")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis 不可用: %w", err)
	}
	return nil
}

package redis

import (
	"context"
	"fmt"
	"time"

	"senior-connect/common/config"

	"github.com/go-redis/redis/v8"
)

// Client Redis客户端类型别名
type Client = redis.Client

// NewRedisClient 创建Redis客户端（不建立连接）
// 超时较短：Redis 只承载快照与流，不可用时服务降级而不是阻塞
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		MaxRetries:   1,
	})
}

// Connect 创建客户端并 Ping；失败时关闭客户端
func Connect(ctx context.Context, cfg *config.RedisConfig, timeout time.Duration) (*redis.Client, error) {
	client := NewRedisClient(cfg)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := Ping(pingCtx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Ping 测试Redis连接
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close 关闭Redis连接
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

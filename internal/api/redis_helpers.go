package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisRateCounter 是登录限流与照片配额共用的计数器。
type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

func incrWithTTL(ctx context.Context, client redisRateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

// overLimit 计入一次尝试，并报告窗口内次数是否已超过 limit。
// 未配置计数器时不限流。
func overLimit(ctx context.Context, client redisRateCounter, key string, limit int64, window time.Duration) (bool, error) {
	if client == nil {
		return false, nil
	}
	count, err := incrWithTTL(ctx, client, key, window)
	if err != nil {
		return false, err
	}
	return count > limit, nil
}

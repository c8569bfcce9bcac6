// Package ratelimit 按调用方对 API 请求做 GCRA 限流，计数保存在 Redis
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pantry:ratelimit:"

// Policy 每秒 QPS 个请求，最多累积 Burst 个
type Policy struct {
	QPS   int
	Burst int
}

func (p Policy) limit() redis_rate.Limit {
	l := redis_rate.PerSecond(max(p.QPS, 1))
	if p.Burst > l.Burst {
		l.Burst = p.Burst
	}
	return l
}

// Decision 单次请求的限流判定
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAfter time.Duration
}

// RateLimiter 按调用方标识判定是否放行
type RateLimiter interface {
	Allow(ctx context.Context, subject string) (Decision, error)
}

// RedisRateLimiter 所有实例共享同一份 Redis 计数
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisRateLimiter 创建限流器
func NewRedisRateLimiter(rdb *redis.Client, policy Policy) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit:   policy.limit(),
	}
}

// Allow subject 形如 user:7 或 ip:10.0.0.1
func (r *RedisRateLimiter) Allow(ctx context.Context, subject string) (Decision, error) {
	res, err := r.limiter.Allow(ctx, keyPrefix+subject, r.limit)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", subject, err)
	}
	return Decision{
		Allowed:    res.Allowed > 0,
		Limit:      r.limit.Burst,
		Remaining:  res.Remaining,
		RetryAfter: max(res.RetryAfter, 0),
		ResetAfter: max(res.ResetAfter, 0),
	}, nil
}

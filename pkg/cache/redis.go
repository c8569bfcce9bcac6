// Package cache 创建服务使用的 Redis 客户端，当前只承载限流计数
package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/pantry/pkg/logger"
)

// Config Redis 连接参数，超时单位为秒，0 表示使用默认值
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	MaxPoolSize  int
	ConnTimeout  int
	ReadTimeout  int
	WriteTimeout int
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.MaxPoolSize,
		DialTimeout:  seconds(c.ConnTimeout, 5),
		ReadTimeout:  seconds(c.ReadTimeout, 3),
		WriteTimeout: seconds(c.WriteTimeout, 3),
	}
}

// NewRedisClient 建立连接并 PING，失败时关闭客户端
func NewRedisClient(cfg Config) (*redis.Client, error) {
	opts := cfg.options()
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", opts.Addr, err)
	}

	logger.Info(ctx, "Redis connected", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}

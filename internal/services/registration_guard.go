package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RegistrationGuard limits how many accounts one address may create.
type RegistrationGuard interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisRegistrationGuard counts registrations per address in a fixed window.
type RedisRegistrationGuard struct {
	Client *redis.Client
	Limit  int
	Window time.Duration
}

func (g *RedisRegistrationGuard) Allow(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return true, nil
	}
	k := "register:ip:" + key
	n, err := g.Client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := g.Client.Expire(ctx, k, g.Window).Err(); err != nil {
			return false, err
		}
	}
	limit := g.Limit
	if limit <= 0 {
		limit = 1
	}
	return n <= int64(limit), nil
}

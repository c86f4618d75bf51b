package contentcache

import (
	"context"
	"time"

	"nftcate/internal/observability/logger"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.From(ctx).Warn("content cache get failed", logger.Err(err))
		}
		return nil, false
	}
	return b, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		logger.From(ctx).Warn("content cache set failed", logger.Err(err))
	}
}

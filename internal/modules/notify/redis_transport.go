// README: Redis pub/sub transport for notifications.
package notify

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type RedisTransport struct {
	redis *redis.Client
}

func NewRedisTransport(redis *redis.Client) *RedisTransport {
	return &RedisTransport{redis: redis}
}

func (t *RedisTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	return t.redis.Publish(ctx, channel, payload).Err()
}

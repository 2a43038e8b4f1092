// README: Redis client initialization for GEO, offer state, and pub/sub.
package infra

import "github.com/redis/go-redis/v9"

func NewRedis(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password})
}

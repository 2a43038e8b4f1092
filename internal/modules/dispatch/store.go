// README: Dispatch store backed by Redis: live offers and per-pickup tried sets.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

const (
	offerKeyPrefix = "dispatch:pickup:%s:offer"
	triedKeyPrefix = "dispatch:pickup:%s:tried"
	// Offers resolve within seconds; the TTL only guards against leaked keys.
	keyTTL = 24 * time.Hour
)

type Store interface {
	SetOffer(ctx context.Context, o Offer) error
	GetOffer(ctx context.Context, pickupID types.ID) (*Offer, error)
	ClearOffer(ctx context.Context, pickupID types.ID) error
	AddTried(ctx context.Context, pickupID, agentID types.ID) error
	Tried(ctx context.Context, pickupID types.ID) ([]types.ID, error)
	ClearTried(ctx context.Context, pickupID types.ID) error
}

type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(redis *redis.Client) *RedisStore {
	return &RedisStore{redis: redis}
}

func (s *RedisStore) SetOffer(ctx context.Context, o Offer) error {
	pipe := s.redis.Pipeline()
	key := offerKey(o.PickupID)
	pipe.HSet(ctx, key, "agent_id", string(o.AgentID), "offered_at", o.OfferedAt.UTC().Format(time.RFC3339Nano))
	pipe.Expire(ctx, key, keyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetOffer(ctx context.Context, pickupID types.ID) (*Offer, error) {
	vals, err := s.redis.HGetAll(ctx, offerKey(pickupID)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	at, err := time.Parse(time.RFC3339Nano, vals["offered_at"])
	if err != nil {
		return nil, err
	}
	return &Offer{PickupID: pickupID, AgentID: types.ID(vals["agent_id"]), OfferedAt: at}, nil
}

func (s *RedisStore) ClearOffer(ctx context.Context, pickupID types.ID) error {
	return s.redis.Del(ctx, offerKey(pickupID)).Err()
}

func (s *RedisStore) AddTried(ctx context.Context, pickupID, agentID types.ID) error {
	pipe := s.redis.Pipeline()
	key := triedKey(pickupID)
	pipe.SAdd(ctx, key, string(agentID))
	pipe.Expire(ctx, key, keyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Tried(ctx context.Context, pickupID types.ID) ([]types.ID, error) {
	members, err := s.redis.SMembers(ctx, triedKey(pickupID)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(members))
	for i, m := range members {
		ids[i] = types.ID(m)
	}
	return ids, nil
}

func (s *RedisStore) ClearTried(ctx context.Context, pickupID types.ID) error {
	return s.redis.Del(ctx, triedKey(pickupID)).Err()
}

func offerKey(id types.ID) string {
	return fmt.Sprintf(offerKeyPrefix, string(id))
}

func triedKey(id types.ID) string {
	return fmt.Sprintf(triedKeyPrefix, string(id))
}

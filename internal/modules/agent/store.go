// README: Agent availability store backed by Redis sets, GEO, and a last-offered ZSET.
package agent

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

const (
	onlineKey      = "agents:online"
	geoKey         = "agents:geo"
	lastOfferedKey = "agents:last_offered"
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) SetOnline(ctx context.Context, id types.ID) error {
	return s.redis.SAdd(ctx, onlineKey, string(id)).Err()
}

func (s *Store) SetOffline(ctx context.Context, id types.ID) error {
	pipe := s.redis.Pipeline()
	pipe.SRem(ctx, onlineKey, string(id))
	pipe.ZRem(ctx, geoKey, string(id))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) IsOnline(ctx context.Context, id types.ID) (bool, error) {
	return s.redis.SIsMember(ctx, onlineKey, string(id)).Result()
}

func (s *Store) Online(ctx context.Context) ([]types.ID, error) {
	members, err := s.redis.SMembers(ctx, onlineKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(members))
	for i, m := range members {
		ids[i] = types.ID(m)
	}
	return ids, nil
}

func (s *Store) SetPosition(ctx context.Context, id types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

// Position returns the agent's last reported location, or nil when none was
// ever reported or the agent went offline.
func (s *Store) Position(ctx context.Context, id types.ID) (*types.Point, error) {
	pos, err := s.redis.GeoPos(ctx, geoKey, string(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(pos) == 0 || pos[0] == nil {
		return nil, nil
	}
	return &types.Point{Lat: pos[0].Latitude, Lng: pos[0].Longitude}, nil
}

// Nearby returns agent ids within radiusKm of p, closest first.
func (s *Store) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, geoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

func (s *Store) TouchOffered(ctx context.Context, id types.ID, at time.Time) error {
	return s.redis.ZAdd(ctx, lastOfferedKey, redis.Z{
		Score:  float64(at.Unix()),
		Member: string(id),
	}).Err()
}

// LastOffered returns the recorded last-offer time per agent; agents never
// offered before are absent from the map.
func (s *Store) LastOffered(ctx context.Context, ids []types.ID) (map[types.ID]time.Time, error) {
	out := make(map[types.ID]time.Time, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	members := make([]string, len(ids))
	for i, id := range ids {
		members[i] = string(id)
	}
	scores, err := s.redis.ZMScore(ctx, lastOfferedKey, members...).Result()
	if err != nil {
		return nil, err
	}
	for i, sc := range scores {
		if sc == 0 {
			continue
		}
		out[ids[i]] = time.Unix(int64(sc), 0)
	}
	return out, nil
}

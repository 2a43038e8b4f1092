// README: Agent availability service; thin orchestration over the Redis store.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

var ErrBadRequest = errors.New("bad request")

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// SetAvailability flips the agent's online flag. Going offline also drops the
// GEO entry so stale positions never rank in proximity searches.
func (s *Service) SetAvailability(ctx context.Context, id types.ID, online bool) error {
	if id == "" {
		return ErrBadRequest
	}
	if online {
		return s.store.SetOnline(ctx, id)
	}
	return s.store.SetOffline(ctx, id)
}

func (s *Service) UpdatePosition(ctx context.Context, id types.ID, p types.Point) error {
	if id == "" {
		return ErrBadRequest
	}
	return s.store.SetPosition(ctx, id, p)
}

// Status assembles the broker-facing availability view for one agent.
func (s *Service) Status(ctx context.Context, id types.ID) (*Availability, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	online, err := s.store.IsOnline(ctx, id)
	if err != nil {
		return nil, err
	}
	a := &Availability{AgentID: id, Online: online}
	if pos, err := s.store.Position(ctx, id); err == nil {
		a.Position = pos
	}
	if offered, err := s.store.LastOffered(ctx, []types.ID{id}); err == nil {
		if at, ok := offered[id]; ok {
			a.LastOfferedAt = &at
		}
	}
	return a, nil
}

func (s *Service) Online(ctx context.Context) ([]types.ID, error) {
	return s.store.Online(ctx)
}

func (s *Service) IsOnline(ctx context.Context, id types.ID) (bool, error) {
	return s.store.IsOnline(ctx, id)
}

func (s *Service) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	return s.store.Nearby(ctx, p, radiusKm)
}

func (s *Service) TouchOffered(ctx context.Context, id types.ID, at time.Time) error {
	return s.store.TouchOffered(ctx, id, at)
}

func (s *Service) LastOffered(ctx context.Context, ids []types.ID) (map[types.ID]time.Time, error) {
	return s.store.LastOffered(ctx, ids)
}

// README: Dispatch broker: offers awaiting pickups to agents one at a time and
// resolves accepts through the pickup module's conditional write.
package dispatch

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/satya1234msn/clean-green-app-sub000/internal/config"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/pickup"
	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

// PickupDirectory is the slice of the pickup service the broker needs.
type PickupDirectory interface {
	Get(ctx context.Context, id types.ID) (*pickup.Pickup, error)
	Accept(ctx context.Context, cmd pickup.AcceptCommand) error
	ListAvailable(ctx context.Context, limit int) ([]*pickup.Pickup, error)
}

// AgentDirectory answers availability questions at offer time. A stale answer
// is fine; the expiry sweep recovers from agents that vanish mid-offer.
type AgentDirectory interface {
	Online(ctx context.Context) ([]types.ID, error)
	IsOnline(ctx context.Context, id types.ID) (bool, error)
	Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
	LastOffered(ctx context.Context, ids []types.ID) (map[types.ID]time.Time, error)
	TouchOffered(ctx context.Context, id types.ID, at time.Time) error
}

type Notifier interface {
	Notify(ctx context.Context, recipient types.ID, event string, payload any)
}

type Service struct {
	store    Store
	pickups  PickupDirectory
	agents   AgentDirectory
	notifier Notifier
	cfg      config.DispatchConfig
	log      *zap.Logger
}

func NewService(store Store, pickups PickupDirectory, agents AgentDirectory, notifier Notifier, cfg config.DispatchConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.OfferWindowSeconds <= 0 {
		cfg.OfferWindowSeconds = 20
	}
	if cfg.SweepSeconds <= 0 {
		cfg.SweepSeconds = 5
	}
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = 10
	}
	return &Service{store: store, pickups: pickups, agents: agents, notifier: notifier, cfg: cfg, log: log}
}

func (s *Service) offerWindow() time.Duration {
	return time.Duration(s.cfg.OfferWindowSeconds) * time.Second
}

// Offer proposes the pickup to the next untried candidate. With no candidates
// left the tried set is reset and the pickup simply waits for a later sweep;
// nobody owns an unclaimed pickup.
func (s *Service) Offer(ctx context.Context, pickupID types.ID) error {
	p, err := s.pickups.Get(ctx, pickupID)
	if err != nil {
		return err
	}
	if p.Status != pickup.StatusAwaitingAgent {
		_ = s.store.ClearOffer(ctx, pickupID)
		_ = s.store.ClearTried(ctx, pickupID)
		return nil
	}

	candidate, err := s.nextCandidate(ctx, p)
	if err != nil {
		return err
	}
	if candidate == "" {
		tried, err := s.store.Tried(ctx, pickupID)
		if err != nil {
			return err
		}
		if len(tried) > 0 {
			// Pool exhausted; reset so later sweeps retry everyone.
			_ = s.store.ClearTried(ctx, pickupID)
		}
		return nil
	}

	now := time.Now()
	if err := s.store.SetOffer(ctx, Offer{PickupID: pickupID, AgentID: candidate, OfferedAt: now}); err != nil {
		return err
	}
	_ = s.agents.TouchOffered(ctx, candidate, now)

	s.notifyAgent(ctx, candidate, p)
	s.log.Info("pickup offered",
		zap.String("pickup_id", string(pickupID)),
		zap.String("agent_id", string(candidate)))
	return nil
}

// Accept resolves the race through the pickup module's compare-and-swap; the
// broker adds no locking of its own. Losers see pickup.ErrConflict.
func (s *Service) Accept(ctx context.Context, pickupID, agentID types.ID) error {
	if err := s.pickups.Accept(ctx, pickup.AcceptCommand{PickupID: pickupID, AgentID: agentID}); err != nil {
		return err
	}
	_ = s.store.ClearOffer(ctx, pickupID)
	_ = s.store.ClearTried(ctx, pickupID)
	return nil
}

// Reject is an explicit decline: the agent leaves the candidate set for this
// pickup and the next candidate is tried immediately, without waiting out the
// countdown.
func (s *Service) Reject(ctx context.Context, pickupID, agentID types.ID) error {
	if err := s.store.AddTried(ctx, pickupID, agentID); err != nil {
		return err
	}
	offer, err := s.store.GetOffer(ctx, pickupID)
	if err != nil {
		return err
	}
	if offer == nil || offer.AgentID != agentID {
		return nil
	}
	if err := s.store.ClearOffer(ctx, pickupID); err != nil {
		return err
	}
	return s.Offer(ctx, pickupID)
}

// RunSweeper periodically re-offers unclaimed pickups: fresh ones get their
// first offer, expired or orphaned offers advance to the next candidate.
func (s *Service) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.cfg.SweepSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	pickups, err := s.pickups.ListAvailable(ctx, 100)
	if err != nil {
		s.log.Error("sweep list", zap.Error(err))
		return
	}
	now := time.Now()
	for _, p := range pickups {
		if err := s.sweepOne(ctx, p.ID, now); err != nil {
			s.log.Error("sweep pickup", zap.String("pickup_id", string(p.ID)), zap.Error(err))
		}
	}
}

func (s *Service) sweepOne(ctx context.Context, pickupID types.ID, now time.Time) error {
	offer, err := s.store.GetOffer(ctx, pickupID)
	if err != nil {
		return err
	}
	if offer == nil {
		return s.Offer(ctx, pickupID)
	}

	online, err := s.agents.IsOnline(ctx, offer.AgentID)
	if err != nil {
		return err
	}
	if online && !offer.ExpiredAt(now, s.offerWindow()) {
		// Offer still live; leave the agent their countdown.
		return nil
	}

	// Timeout, or the agent went offline mid-offer (implicit reject).
	if err := s.store.AddTried(ctx, pickupID, offer.AgentID); err != nil {
		return err
	}
	if err := s.store.ClearOffer(ctx, pickupID); err != nil {
		return err
	}
	return s.Offer(ctx, pickupID)
}

// nextCandidate ranks online agents not yet tried for this pickup: by
// proximity when the pickup has coordinates, otherwise least recently offered.
func (s *Service) nextCandidate(ctx context.Context, p *pickup.Pickup) (types.ID, error) {
	online, err := s.agents.Online(ctx)
	if err != nil {
		return "", err
	}
	if len(online) == 0 {
		return "", nil
	}
	tried, err := s.store.Tried(ctx, p.ID)
	if err != nil {
		return "", err
	}
	triedSet := make(map[types.ID]bool, len(tried))
	for _, id := range tried {
		triedSet[id] = true
	}

	eligible := make(map[types.ID]bool, len(online))
	for _, id := range online {
		if !triedSet[id] {
			eligible[id] = true
		}
	}
	if len(eligible) == 0 {
		return "", nil
	}

	if !p.PickupPoint.Zero() {
		nearby, err := s.agents.Nearby(ctx, p.PickupPoint, s.cfg.RadiusKm)
		if err == nil {
			for _, id := range nearby {
				if eligible[id] {
					return id, nil
				}
			}
		} else {
			s.log.Warn("geo search failed, falling back to rotation", zap.Error(err))
		}
	}

	ids := make([]types.ID, 0, len(eligible))
	for id := range eligible {
		ids = append(ids, id)
	}
	offered, err := s.agents.LastOffered(ctx, ids)
	if err != nil {
		return "", err
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := offered[ids[i]], offered[ids[j]]
		if ti.Equal(tj) {
			return ids[i] < ids[j]
		}
		return ti.Before(tj)
	})
	return ids[0], nil
}

func (s *Service) notifyAgent(ctx context.Context, agentID types.ID, p *pickup.Pickup) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, agentID, "pickup_offer", map[string]any{
		"pickup_id":  p.ID,
		"waste_type": p.WasteType,
		"priority":   p.Priority,
		"address":    p.Address,
		"pickup_lat": p.PickupPoint.Lat,
		"pickup_lng": p.PickupPoint.Lng,
		"expires_in": s.cfg.OfferWindowSeconds,
	})
}

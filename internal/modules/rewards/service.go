// README: Reward service issues redemption codes on completion and enforces single-use redemption.
package rewards

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

var (
	ErrNotFound = errors.New("reward not found")
	ErrConflict = errors.New("reward already redeemed or expired")
)

type Service struct {
	store  Store
	expiry time.Duration
}

func NewService(store Store, expiryDays int) *Service {
	if expiryDays <= 0 {
		expiryDays = 90
	}
	return &Service{store: store, expiry: time.Duration(expiryDays) * 24 * time.Hour}
}

// Issue creates a reward for a completed pickup with a fresh redemption code.
func (s *Service) Issue(ctx context.Context, pickupID, requesterID types.ID, points int) error {
	now := time.Now()
	r := &Reward{
		ID:          types.ID(uuid.NewString()),
		PickupID:    pickupID,
		RequesterID: requesterID,
		Points:      points,
		Code:        uuid.NewString(),
		ExpiresAt:   now.Add(s.expiry),
		CreatedAt:   now,
	}
	return s.store.Create(ctx, r)
}

// Redeem consumes a code exactly once. Redeeming a spent or expired code
// returns ErrConflict and leaves the reward untouched.
func (s *Service) Redeem(ctx context.Context, requesterID types.ID, code string) (*Reward, error) {
	r, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if r.RequesterID != requesterID {
		return nil, ErrNotFound
	}
	now := time.Now()
	ok, err := s.store.MarkRedeemed(ctx, code, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	r.RedeemedAt = &now
	return r, nil
}

func (s *Service) ListByRequester(ctx context.Context, requesterID types.ID) ([]*Reward, error) {
	return s.store.ListByRequester(ctx, requesterID)
}

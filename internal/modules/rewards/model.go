// README: Reward entity issued on pickup completion.
package rewards

import (
	"time"

	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

type Reward struct {
	ID          types.ID
	PickupID    types.ID
	RequesterID types.ID
	Points      int
	// Code is the unique redemption code shown to the requester.
	Code       string
	ExpiresAt  time.Time
	RedeemedAt *time.Time
	CreatedAt  time.Time
}

func (r *Reward) Redeemed() bool {
	return r.RedeemedAt != nil
}

func (r *Reward) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

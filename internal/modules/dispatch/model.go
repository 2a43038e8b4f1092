// README: Dispatch offer bookkeeping types.
package dispatch

import (
	"time"

	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

// Offer is the current proposal of one pickup to one agent. A pickup has at
// most one live offer at a time; the next candidate is tried only after an
// accept, an explicit reject, an expiry, or the agent dropping offline.
type Offer struct {
	PickupID  types.ID
	AgentID   types.ID
	OfferedAt time.Time
}

func (o Offer) ExpiredAt(now time.Time, window time.Duration) bool {
	return now.Sub(o.OfferedAt) >= window
}

// README: Agent availability status as seen by the dispatch broker.
package agent

import (
	"time"

	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

// Availability is the broker-facing view of one agent: whether they are
// accepting offers, where they last reported being, and when they were last
// offered a pickup. Deliberately decoupled from transport connectivity; a live
// socket is a delivery concern, not an eligibility one.
type Availability struct {
	AgentID       types.ID
	Online        bool
	Position      *types.Point
	LastOfferedAt *time.Time
}

// README: Pickup aggregate, status definitions, and the transition table.
package pickup

import (
	"time"

	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

type Status string

const (
	StatusNone          Status = "none"
	StatusPendingReview Status = "pending_review"
	StatusAdminApproved Status = "admin_approved"
	StatusAdminRejected Status = "admin_rejected"
	StatusAwaitingAgent Status = "awaiting_agent"
	StatusAssigned      Status = "assigned"
	StatusInTransit     Status = "in_transit"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
)

type Actor string

const (
	ActorAdmin     Actor = "admin"
	ActorAgent     Actor = "agent"
	ActorRequester Actor = "requester"
	ActorSystem    Actor = "system"
)

type WasteType string

const (
	WasteFood    WasteType = "food"
	WasteBottles WasteType = "bottles"
	WasteOther   WasteType = "other"
	WasteMixed   WasteType = "mixed"
)

type Priority string

const (
	PriorityImmediate Priority = "immediate"
	PriorityScheduled Priority = "scheduled"
)

// Approval is the admin decision sub-record; set at most once. Rejections carry
// a reason, approvals never do.
type Approval struct {
	AdminID  types.ID
	Rejected bool
	Reason   string
	At       time.Time
}

type Rating struct {
	Score  int
	Review string
	At     time.Time
}

type Route struct {
	Waypoints   []types.Point
	DistanceKm  float64
	DurationMin float64
}

// TimelineEntry is one step of the append-only audit trail. The record's
// status always equals the status of the last entry.
type TimelineEntry struct {
	Status   Status
	Note     string
	Location *types.Point
	At       time.Time
}

type Pickup struct {
	ID          types.ID
	RequesterID types.ID
	AgentID     *types.ID

	WasteType WasteType
	FoodBoxes int
	Bottles   int
	OtherDesc string
	Images    []string

	Priority      Priority
	ScheduledDate *time.Time
	TimeSlot      string

	Status        Status
	StatusVersion int
	Approval      *Approval

	EstimatedWeightKg float64
	Points            int
	Earnings          types.Money
	DistanceKm        float64

	// Denormalized requester snapshot for admin review search.
	RequesterName string
	Address       string

	PickupPoint  types.Point
	DropoffPoint types.Point
	Route        *Route

	Timeline []TimelineEntry
	Rating   *Rating

	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Terminal reports whether no further transition is defined from s.
func (s Status) Terminal() bool {
	return s == StatusAdminRejected || s == StatusCompleted || s == StatusCancelled
}

// AllowedTransitions is the single source of truth for the pickup state flow:
// target statuses per current status, with the actors permitted on each edge.
//
//	pending_review → admin_approved | admin_rejected   (admin)
//	admin_approved → awaiting_agent                    (system, automatic)
//	awaiting_agent → assigned                          (agent, CAS accept race)
//	assigned       → in_transit                        (assigned agent)
//	assigned       → awaiting_agent                    (assigned agent releases; re-offered)
//	in_transit     → in_transit                        (assigned agent progress note)
//	in_transit     → completed                         (assigned agent)
//	non-terminal   → cancelled                         (requester; agent once assigned)
var AllowedTransitions = map[Status]map[Status][]Actor{
	StatusPendingReview: {
		StatusAdminApproved: {ActorAdmin},
		StatusAdminRejected: {ActorAdmin},
		StatusCancelled:     {ActorRequester},
	},
	StatusAdminApproved: {
		StatusAwaitingAgent: {ActorSystem},
		StatusCancelled:     {ActorRequester},
	},
	StatusAwaitingAgent: {
		StatusAssigned:  {ActorAgent},
		StatusCancelled: {ActorRequester},
	},
	StatusAssigned: {
		StatusInTransit:     {ActorAgent},
		StatusAwaitingAgent: {ActorAgent},
		StatusCancelled:     {ActorRequester, ActorAgent},
	},
	StatusInTransit: {
		StatusInTransit: {ActorAgent},
		StatusCompleted: {ActorAgent},
		StatusCancelled: {ActorRequester, ActorAgent},
	},
}

func CanTransition(from, to Status) bool {
	_, ok := AllowedTransitions[from][to]
	return ok
}

// ActorAllowed reports whether the actor kind may drive the from→to edge.
// Identity checks (the agent on the record, the requester who owns it) are the
// service's job; this only covers the transition table.
func ActorAllowed(from, to Status, actor Actor) bool {
	for _, a := range AllowedTransitions[from][to] {
		if a == actor {
			return true
		}
	}
	return false
}

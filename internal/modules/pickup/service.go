// README: Pickup service implements lifecycle transitions, actor checks, and completion side effects.
package pickup

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/rewards"
	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

var (
	ErrBadRequest  = errors.New("bad request")
	ErrForbidden   = errors.New("actor not permitted")
	ErrConflict    = errors.New("pickup state conflict")
	ErrNotFound    = errors.New("pickup not found")
	ErrUnavailable = errors.New("downstream unavailable")
)

// Currency for all computed earnings.
const Currency = "INR"

const defaultEstimatedWeightKg = 1.0

// RoutePlanner is the external directions provider. Route data is
// opportunistic; a failing planner never fails a transition.
type RoutePlanner interface {
	Route(ctx context.Context, origin, dest types.Point) (Route, error)
}

// RewardIssuer issues a redeemable reward when a pickup completes.
type RewardIssuer interface {
	Issue(ctx context.Context, pickupID, requesterID types.ID, points int) error
}

// CompletionPublisher emits the pickup-completed fact for downstream consumers.
type CompletionPublisher interface {
	PickupCompleted(ctx context.Context, pickupID, requesterID types.ID, points int)
}

// Notifier delivers best-effort events to a user or agent.
type Notifier interface {
	Notify(ctx context.Context, recipient types.ID, event string, payload any)
}

type Deps struct {
	Routes   RoutePlanner
	Rewards  RewardIssuer
	Events   CompletionPublisher
	Notifier Notifier
	Log      *zap.Logger
}

type Service struct {
	store    Store
	routes   RoutePlanner
	rewards  RewardIssuer
	events   CompletionPublisher
	notifier Notifier
	log      *zap.Logger
}

func NewService(store Store, deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		routes:   deps.Routes,
		rewards:  deps.Rewards,
		events:   deps.Events,
		notifier: deps.Notifier,
		log:      log,
	}
}

type CreateCommand struct {
	RequesterID   types.ID
	RequesterName string
	Address       string

	WasteType WasteType
	FoodBoxes int
	Bottles   int
	OtherDesc string
	Images    []string

	Priority      Priority
	ScheduledDate *time.Time
	TimeSlot      string

	EstimatedWeightKg float64
	PickupPoint       types.Point
	DropoffPoint      types.Point
}

type ApproveCommand struct {
	PickupID types.ID
	AdminID  types.ID
}

type RejectCommand struct {
	PickupID types.ID
	AdminID  types.ID
	Reason   string
}

type AcceptCommand struct {
	PickupID types.ID
	AgentID  types.ID
}

type AdvanceCommand struct {
	PickupID types.ID
	AgentID  types.ID
	Note     string
	Location *types.Point
}

type CompleteCommand struct {
	PickupID types.ID
	AgentID  types.ID
	Location *types.Point
}

type CancelCommand struct {
	PickupID types.ID
	Actor    Actor
	ActorID  types.ID
	Reason   string
}

type ReleaseCommand struct {
	PickupID types.ID
	AgentID  types.ID
	Reason   string
}

type RateCommand struct {
	PickupID    types.ID
	RequesterID types.ID
	Score       int
	Review      string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.RequesterID == "" || len(cmd.Images) == 0 {
		return "", ErrBadRequest
	}
	if !validWasteDetails(cmd.WasteType, cmd.FoodBoxes, cmd.Bottles, cmd.OtherDesc) {
		return "", ErrBadRequest
	}
	switch cmd.Priority {
	case PriorityImmediate:
	case PriorityScheduled:
		if cmd.ScheduledDate == nil || cmd.TimeSlot == "" {
			return "", ErrBadRequest
		}
	default:
		return "", ErrBadRequest
	}

	weight := cmd.EstimatedWeightKg
	if weight <= 0 {
		weight = defaultEstimatedWeightKg
	}

	now := time.Now()
	p := &Pickup{
		ID:                newID(),
		RequesterID:       cmd.RequesterID,
		RequesterName:     cmd.RequesterName,
		Address:           cmd.Address,
		WasteType:         cmd.WasteType,
		FoodBoxes:         cmd.FoodBoxes,
		Bottles:           cmd.Bottles,
		OtherDesc:         cmd.OtherDesc,
		Images:            cmd.Images,
		Priority:          cmd.Priority,
		ScheduledDate:     cmd.ScheduledDate,
		TimeSlot:          cmd.TimeSlot,
		Status:            StatusPendingReview,
		StatusVersion:     0,
		EstimatedWeightKg: weight,
		Earnings:          types.Money{Currency: Currency},
		PickupPoint:       cmd.PickupPoint,
		DropoffPoint:      cmd.DropoffPoint,
		CreatedAt:         now,
		Timeline: []TimelineEntry{
			{Status: StatusPendingReview, Note: "pickup requested", At: now},
		},
	}
	if err := s.store.Create(ctx, p); err != nil {
		return "", err
	}
	return p.ID, nil
}

// Approve moves a pickup through admin review and immediately queues it for
// agent dispatch via the automatic system edge.
func (s *Service) Approve(ctx context.Context, cmd ApproveCommand) error {
	if cmd.AdminID == "" {
		return ErrBadRequest
	}
	o, err := s.store.Get(ctx, cmd.PickupID)
	if err != nil {
		return err
	}
	approval := &Approval{AdminID: cmd.AdminID, At: time.Now()}
	if err := s.apply(ctx, o, StatusAdminApproved, ActorAdmin, &cmd.AdminID, Transition{
		Approval: approval,
		Note:     "approved by admin",
	}); err != nil {
		return err
	}

	// Automatic system edge: approved pickups go straight to the dispatch pool.
	ok, err := s.store.ApplyTransition(ctx, Transition{
		PickupID:        o.ID,
		From:            StatusAdminApproved,
		To:              StatusAwaitingAgent,
		ExpectedVersion: o.StatusVersion + 1,
		Actor:           ActorSystem,
		Note:            "queued for agent dispatch",
	})
	if err != nil {
		return err
	}
	if !ok {
		// The record legitimately moved (e.g. requester cancelled in the gap).
		s.log.Warn("auto-advance lost race", zap.String("pickup_id", string(o.ID)))
		return nil
	}
	s.notify(ctx, o.RequesterID, "pickup_approved", map[string]any{"pickup_id": o.ID})
	return nil
}

func (s *Service) Reject(ctx context.Context, cmd RejectCommand) error {
	if cmd.AdminID == "" {
		return ErrBadRequest
	}
	if cmd.Reason == "" {
		// A rejection without a reason is malformed, not merely unkind.
		return ErrBadRequest
	}
	o, err := s.store.Get(ctx, cmd.PickupID)
	if err != nil {
		return err
	}
	approval := &Approval{AdminID: cmd.AdminID, Rejected: true, Reason: cmd.Reason, At: time.Now()}
	if err := s.apply(ctx, o, StatusAdminRejected, ActorAdmin, &cmd.AdminID, Transition{
		Approval: approval,
		Note:     cmd.Reason,
	}); err != nil {
		return err
	}
	s.notify(ctx, o.RequesterID, "pickup_rejected", map[string]any{"pickup_id": o.ID, "reason": cmd.Reason})
	return nil
}

// Accept is the arrival side of the dispatch race: many agents may call it for
// the same pickup, and the store's conditional write lets exactly one through.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) error {
	if cmd.AgentID == "" {
		return ErrBadRequest
	}
	o, err := s.store.Get(ctx, cmd.PickupID)
	if err != nil {
		return err
	}
	agentID := cmd.AgentID
	if err := s.apply(ctx, o, StatusAssigned, ActorAgent, &agentID, Transition{
		AgentID: &agentID,
		Note:    "accepted by agent",
	}); err != nil {
		return err
	}

	s.recordRoute(ctx, o)
	s.notify(ctx, o.RequesterID, "pickup_assigned", map[string]any{"pickup_id": o.ID, "agent_id": agentID})
	return nil
}

// Advance moves an assigned pickup through the in-transit phase. The first
// call marks arrival at the pickup location; subsequent calls append progress
// notes on the same status.
func (s *Service) Advance(ctx context.Context, cmd AdvanceCommand) error {
	o, err := s.store.Get(ctx, cmd.PickupID)
	if err != nil {
		return err
	}
	if err := requireAssignedAgent(o, cmd.AgentID); err != nil {
		return err
	}
	note := cmd.Note
	if note == "" {
		if o.Status == StatusAssigned {
			note = "reached pickup location"
		} else {
			note = "collected, en route to drop-off"
		}
	}
	if err := s.apply(ctx, o, StatusInTransit, ActorAgent, &cmd.AgentID, Transition{
		Note:     note,
		Location: cmd.Location,
	}); err != nil {
		return err
	}
	s.notify(ctx, o.RequesterID, "pickup_progress", map[string]any{"pickup_id": o.ID, "note": note})
	return nil
}

// Complete closes out the delivery: the earnings and points are computed and
// written in the same conditional update that moves the status, so they are
// set exactly once.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	o, err := s.store.Get(ctx, cmd.PickupID)
	if err != nil {
		return err
	}
	if err := requireAssignedAgent(o, cmd.AgentID); err != nil {
		return err
	}

	points := rewards.CalculatePoints(rewards.PointsInput{
		WasteType: string(o.WasteType),
		FoodBoxes: o.FoodBoxes,
		Bottles:   o.Bottles,
	})
	earnings := rewards.CalculateEarnings(rewards.EarningsInput{
		DistanceKm:        o.DistanceKm,
		EstimatedWeightKg: o.EstimatedWeightKg,
	})

	if err := s.apply(ctx, o, StatusCompleted, ActorAgent, &cmd.AgentID, Transition{
		Note:      "delivered to warehouse",
		Location:  cmd.Location,
		Completed: true,
		Points:    points,
		Earnings:  types.Money{Amount: earnings, Currency: Currency},
	}); err != nil {
		return err
	}

	if s.rewards != nil {
		if err := s.rewards.Issue(ctx, o.ID, o.RequesterID, points); err != nil {
			s.log.Error("reward issue failed", zap.String("pickup_id", string(o.ID)), zap.Error(err))
		}
	}
	if s.events != nil {
		s.events.PickupCompleted(ctx, o.ID, o.RequesterID, points)
	}
	s.notify(ctx, o.RequesterID, "pickup_completed", map[string]any{
		"pickup_id": o.ID, "points": points, "earnings": earnings,
	})
	return nil
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	o, err := s.store.Get(ctx, cmd.PickupID)
	if err != nil {
		return err
	}
	switch cmd.Actor {
	case ActorRequester:
		if o.RequesterID != cmd.ActorID {
			return ErrForbidden
		}
	case ActorAgent:
		if o.AgentID == nil || *o.AgentID != cmd.ActorID {
			return ErrForbidden
		}
	default:
		return ErrForbidden
	}
	note := cmd.Reason
	if note == "" {
		note = "cancelled by " + string(cmd.Actor)
	}
	if err := s.apply(ctx, o, StatusCancelled, cmd.Actor, &cmd.ActorID, Transition{Note: note}); err != nil {
		return err
	}
	if cmd.Actor == ActorAgent {
		s.notify(ctx, o.RequesterID, "pickup_cancelled", map[string]any{"pickup_id": o.ID, "reason": note})
	} else if o.AgentID != nil {
		s.notify(ctx, *o.AgentID, "pickup_cancelled", map[string]any{"pickup_id": o.ID, "reason": note})
	}
	return nil
}

// Release returns an assigned pickup to the dispatch pool when the agent backs
// out before collecting; the agent id is cleared so it can be re-offered.
func (s *Service) Release(ctx context.Context, cmd ReleaseCommand) error {
	o, err := s.store.Get(ctx, cmd.PickupID)
	if err != nil {
		return err
	}
	if err := requireAssignedAgent(o, cmd.AgentID); err != nil {
		return err
	}
	note := cmd.Reason
	if note == "" {
		note = "released by agent"
	}
	return s.apply(ctx, o, StatusAwaitingAgent, ActorAgent, &cmd.AgentID, Transition{
		ClearAgent: true,
		Note:       note,
	})
}

func (s *Service) Rate(ctx context.Context, cmd RateCommand) error {
	if cmd.Score < 1 || cmd.Score > 5 {
		return ErrBadRequest
	}
	o, err := s.store.Get(ctx, cmd.PickupID)
	if err != nil {
		return err
	}
	if o.RequesterID != cmd.RequesterID {
		return ErrForbidden
	}
	if o.Status != StatusCompleted {
		return ErrConflict
	}
	ok, err := s.store.SetRating(ctx, o.ID, Rating{Score: cmd.Score, Review: cmd.Review, At: time.Now()})
	if err != nil {
		return err
	}
	if !ok {
		// Already rated, or the status moved underneath us.
		return ErrConflict
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Pickup, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByRequester(ctx context.Context, requesterID types.ID) ([]*Pickup, error) {
	return s.store.ListByRequester(ctx, requesterID)
}

func (s *Service) ListByAgent(ctx context.Context, agentID types.ID) ([]*Pickup, error) {
	return s.store.ListByAgent(ctx, agentID)
}

// ListAvailable returns pickups waiting for an agent, immediate priority first.
func (s *Service) ListAvailable(ctx context.Context, limit int) ([]*Pickup, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByStatus(ctx, StatusAwaitingAgent, limit)
}

func (s *Service) ListReview(ctx context.Context, f ReviewFilter) ([]*Pickup, string, error) {
	return s.store.ListReview(ctx, f)
}

// apply validates the edge against the transition table and performs the
// conditional write. Wrong target for the current status is a Conflict (stale
// caller view); a disallowed actor on a legal edge is Forbidden.
func (s *Service) apply(ctx context.Context, o *Pickup, to Status, actor Actor, actorID *types.ID, t Transition) error {
	if !CanTransition(o.Status, to) {
		return ErrConflict
	}
	if !ActorAllowed(o.Status, to, actor) {
		return ErrForbidden
	}
	t.PickupID = o.ID
	t.From = o.Status
	t.To = to
	t.ExpectedVersion = o.StatusVersion
	t.Actor = actor
	t.ActorID = actorID
	ok, err := s.store.ApplyTransition(ctx, t)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// recordRoute asks the directions provider for a route and falls back to the
// straight-line estimate; either way the accept has already succeeded.
func (s *Service) recordRoute(ctx context.Context, o *Pickup) {
	if o.PickupPoint.Zero() || o.DropoffPoint.Zero() {
		return
	}
	fallback := straightLineKm(o.PickupPoint, o.DropoffPoint)
	if s.routes != nil {
		if r, err := s.routes.Route(ctx, o.PickupPoint, o.DropoffPoint); err == nil {
			if err := s.store.SetRoute(ctx, o.ID, r, r.DistanceKm); err != nil {
				s.log.Error("record route", zap.String("pickup_id", string(o.ID)), zap.Error(err))
			}
			return
		}
		s.log.Warn("route lookup failed, using straight-line estimate", zap.String("pickup_id", string(o.ID)))
	}
	if err := s.store.SetRoute(ctx, o.ID, Route{}, fallback); err != nil {
		s.log.Error("record route", zap.String("pickup_id", string(o.ID)), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, recipient types.ID, event string, payload any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, recipient, event, payload)
}

func requireAssignedAgent(o *Pickup, agentID types.ID) error {
	if agentID == "" {
		return ErrBadRequest
	}
	if o.AgentID == nil || *o.AgentID != agentID {
		return ErrForbidden
	}
	return nil
}

func validWasteDetails(t WasteType, foodBoxes, bottles int, otherDesc string) bool {
	if foodBoxes < 0 || bottles < 0 {
		return false
	}
	switch t {
	case WasteFood:
		return foodBoxes > 0
	case WasteBottles:
		return bottles > 0
	case WasteOther:
		return otherDesc != ""
	case WasteMixed:
		return foodBoxes > 0 || bottles > 0 || otherDesc != ""
	default:
		return false
	}
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}

func straightLineKm(a, b types.Point) float64 {
	const R = 6371.0
	lat1 := a.Lat * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	dlat := (b.Lat - a.Lat) * math.Pi / 180.0
	dlng := (b.Lng - a.Lng) * math.Pi / 180.0
	h := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	return 2 * R * math.Asin(math.Sqrt(h))
}

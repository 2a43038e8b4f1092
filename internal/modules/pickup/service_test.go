// README: Pickup service unit tests covering the transition table and lifecycle flows.
package pickup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

// ---------------------------------------------------------------------------
// In-memory store: same compare-and-swap semantics as the Postgres store.
// ---------------------------------------------------------------------------

type memStore struct {
	mu    sync.Mutex
	items map[types.ID]*Pickup
}

func newMemStore() *memStore {
	return &memStore{items: make(map[types.ID]*Pickup)}
}

func (m *memStore) Create(_ context.Context, p *Pickup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

// Get returns a snapshot, like a row read: later writes through the store do
// not mutate what the caller holds.
func (m *memStore) Get(_ context.Context, id types.ID) (*Pickup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.Timeline = append([]TimelineEntry(nil), p.Timeline...)
	return &cp, nil
}

func (m *memStore) ApplyTransition(_ context.Context, t Transition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[t.PickupID]
	if !ok {
		return false, ErrNotFound
	}
	if p.Status != t.From || p.StatusVersion != t.ExpectedVersion {
		return false, nil
	}
	if t.Completed && p.Points != 0 {
		return false, nil
	}

	p.Status = t.To
	p.StatusVersion++
	if t.AgentID != nil {
		id := *t.AgentID
		p.AgentID = &id
	}
	if t.ClearAgent {
		p.AgentID = nil
	}
	if t.Approval != nil {
		a := *t.Approval
		p.Approval = &a
	}
	if t.Completed {
		p.Points = t.Points
		p.Earnings = t.Earnings
		now := time.Now()
		p.CompletedAt = &now
	}
	p.Timeline = append(p.Timeline, TimelineEntry{Status: t.To, Note: t.Note, Location: t.Location, At: time.Now()})
	return true, nil
}

func (m *memStore) SetRoute(_ context.Context, id types.ID, r Route, distanceKm float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	cp := r
	p.Route = &cp
	p.DistanceKm = distanceKm
	return nil
}

func (m *memStore) SetRating(_ context.Context, id types.ID, rating Rating) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return false, ErrNotFound
	}
	if p.Status != StatusCompleted || p.Rating != nil {
		return false, nil
	}
	cp := rating
	p.Rating = &cp
	return true, nil
}

func (m *memStore) ListByRequester(_ context.Context, requesterID types.ID) ([]*Pickup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Pickup
	for _, p := range m.items {
		if p.RequesterID == requesterID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) ListByAgent(_ context.Context, agentID types.ID) ([]*Pickup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Pickup
	for _, p := range m.items {
		if p.AgentID != nil && *p.AgentID == agentID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) ListByStatus(_ context.Context, status Status, limit int) ([]*Pickup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Pickup
	for _, p := range m.items {
		if p.Status == status && len(out) < limit {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) ListReview(_ context.Context, f ReviewFilter) ([]*Pickup, string, error) {
	status := f.Status
	if status == "" {
		status = StatusPendingReview
	}
	items, err := m.ListByStatus(context.Background(), status, 100)
	return items, "", err
}

func (m *memStore) setDistance(id types.ID, km float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id].DistanceKm = km
}

// mockIssuer records issued rewards.
type mockIssuer struct {
	mu     sync.Mutex
	issued map[types.ID]int
}

func newMockIssuer() *mockIssuer {
	return &mockIssuer{issued: make(map[types.ID]int)}
}

func (m *mockIssuer) Issue(_ context.Context, pickupID, _ types.ID, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued[pickupID] = points
	return nil
}

func (m *mockIssuer) pointsFor(id types.ID) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.issued[id]
	return p, ok
}

// mockNotifier records delivered events per recipient.
type mockNotifier struct {
	mu     sync.Mutex
	events []string
}

func (m *mockNotifier) Notify(_ context.Context, _ types.ID, event string, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockNotifier) saw(event string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e == event {
			return true
		}
	}
	return false
}

func validCreate(requester types.ID) CreateCommand {
	return CreateCommand{
		RequesterID:   requester,
		RequesterName: "Asha",
		Address:       "12 Canal Road",
		WasteType:     WasteMixed,
		FoodBoxes:     2,
		Bottles:       3,
		Images:        []string{"img1.jpg"},
		Priority:      PriorityImmediate,
	}
}

// ---------------------------------------------------------------------------
// Transition table
// ---------------------------------------------------------------------------

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPendingReview, StatusAdminApproved, true},
		{StatusPendingReview, StatusAdminRejected, true},
		{StatusPendingReview, StatusAssigned, false},
		{StatusAdminApproved, StatusAwaitingAgent, true},
		{StatusAwaitingAgent, StatusAssigned, true},
		{StatusAwaitingAgent, StatusInTransit, false},
		{StatusAssigned, StatusInTransit, true},
		{StatusAssigned, StatusAwaitingAgent, true},
		{StatusInTransit, StatusInTransit, true},
		{StatusInTransit, StatusCompleted, true},
		{StatusInTransit, StatusAssigned, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusAdminRejected, StatusAdminApproved, false},
		{StatusCancelled, StatusAwaitingAgent, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestActorAllowed(t *testing.T) {
	cases := []struct {
		from, to Status
		actor    Actor
		want     bool
	}{
		{StatusPendingReview, StatusAdminApproved, ActorAdmin, true},
		{StatusPendingReview, StatusAdminApproved, ActorAgent, false},
		{StatusAdminApproved, StatusAwaitingAgent, ActorSystem, true},
		{StatusAdminApproved, StatusAwaitingAgent, ActorAdmin, false},
		{StatusAwaitingAgent, StatusAssigned, ActorAgent, true},
		{StatusAwaitingAgent, StatusCancelled, ActorRequester, true},
		{StatusAwaitingAgent, StatusCancelled, ActorAgent, false},
		{StatusAssigned, StatusCancelled, ActorAgent, true},
		{StatusInTransit, StatusCompleted, ActorAgent, true},
		{StatusInTransit, StatusCompleted, ActorRequester, false},
	}
	for _, c := range cases {
		if got := ActorAllowed(c.from, c.to, c.actor); got != c.want {
			t.Errorf("ActorAllowed(%s, %s, %s) = %v, want %v", c.from, c.to, c.actor, got, c.want)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusAdminRejected, StatusCompleted, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPendingReview, StatusAwaitingAgent, StatusAssigned, StatusInTransit} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

// ---------------------------------------------------------------------------
// Create validation
// ---------------------------------------------------------------------------

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemStore(), Deps{})
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateCommand)
	}{
		{"no requester", func(c *CreateCommand) { c.RequesterID = "" }},
		{"no images", func(c *CreateCommand) { c.Images = nil }},
		{"food without boxes", func(c *CreateCommand) { c.WasteType = WasteFood; c.FoodBoxes = 0 }},
		{"bottles without count", func(c *CreateCommand) { c.WasteType = WasteBottles; c.Bottles = 0 }},
		{"other without description", func(c *CreateCommand) { c.WasteType = WasteOther; c.FoodBoxes = 0; c.Bottles = 0 }},
		{"mixed with nothing", func(c *CreateCommand) { c.FoodBoxes = 0; c.Bottles = 0; c.OtherDesc = "" }},
		{"negative boxes", func(c *CreateCommand) { c.FoodBoxes = -1 }},
		{"unknown waste type", func(c *CreateCommand) { c.WasteType = "plasma" }},
		{"unknown priority", func(c *CreateCommand) { c.Priority = "someday" }},
		{"scheduled without date", func(c *CreateCommand) { c.Priority = PriorityScheduled; c.TimeSlot = "9-12" }},
		{"scheduled without slot", func(c *CreateCommand) {
			c.Priority = PriorityScheduled
			d := time.Now().Add(24 * time.Hour)
			c.ScheduledDate = &d
		}},
	}
	for _, c := range cases {
		cmd := validCreate("r1")
		c.mutate(&cmd)
		if _, err := svc.Create(ctx, cmd); err != ErrBadRequest {
			t.Errorf("%s: expected ErrBadRequest, got %v", c.name, err)
		}
	}

	if _, err := svc.Create(ctx, validCreate("r1")); err != nil {
		t.Fatalf("valid create failed: %v", err)
	}
}

func TestCreateDefaultsWeight(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Deps{})
	id, err := svc.Create(context.Background(), validCreate("r1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	p, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.EstimatedWeightKg != defaultEstimatedWeightKg {
		t.Fatalf("expected default weight %v, got %v", defaultEstimatedWeightKg, p.EstimatedWeightKg)
	}
	if len(p.Timeline) != 1 || p.Timeline[0].Status != StatusPendingReview {
		t.Fatalf("expected single pending_review timeline entry, got %+v", p.Timeline)
	}
}

// ---------------------------------------------------------------------------
// Lifecycle flows
// ---------------------------------------------------------------------------

func TestLifecycleHappyPath(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	issuer := newMockIssuer()
	notifier := &mockNotifier{}
	svc := NewService(store, Deps{Rewards: issuer, Notifier: notifier})

	id, err := svc.Create(ctx, validCreate("r1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Approve(ctx, ApproveCommand{PickupID: id, AdminID: "adm1"}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	p, _ := svc.Get(ctx, id)
	if p.Status != StatusAwaitingAgent {
		t.Fatalf("expected awaiting_agent after approve, got %s", p.Status)
	}
	if p.Approval == nil || p.Approval.AdminID != "adm1" || p.Approval.Rejected {
		t.Fatalf("expected approval record, got %+v", p.Approval)
	}
	if len(p.Timeline) != 3 {
		t.Fatalf("expected 3 timeline entries after approve, got %d", len(p.Timeline))
	}

	if err := svc.Accept(ctx, AcceptCommand{PickupID: id, AgentID: "a1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	store.setDistance(id, 5)

	if err := svc.Advance(ctx, AdvanceCommand{PickupID: id, AgentID: "a1"}); err != nil {
		t.Fatalf("advance to in_transit: %v", err)
	}
	if err := svc.Advance(ctx, AdvanceCommand{PickupID: id, AgentID: "a1"}); err != nil {
		t.Fatalf("advance progress note: %v", err)
	}
	p, _ = svc.Get(ctx, id)
	if p.Status != StatusInTransit {
		t.Fatalf("expected in_transit, got %s", p.Status)
	}
	entries := p.Timeline
	if entries[len(entries)-2].Note != "reached pickup location" {
		t.Fatalf("unexpected first advance note: %q", entries[len(entries)-2].Note)
	}
	if entries[len(entries)-1].Note != "collected, en route to drop-off" {
		t.Fatalf("unexpected second advance note: %q", entries[len(entries)-1].Note)
	}

	if err := svc.Complete(ctx, CompleteCommand{PickupID: id, AgentID: "a1"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	p, _ = svc.Get(ctx, id)
	if p.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", p.Status)
	}
	// mixed 2 boxes + 3 bottles: 2*10 + 3*15 + 20
	if p.Points != 85 {
		t.Fatalf("expected 85 points, got %d", p.Points)
	}
	// 50 + 5km*2 + 1kg*5
	if p.Earnings.Amount != 65 || p.Earnings.Currency != Currency {
		t.Fatalf("unexpected earnings: %+v", p.Earnings)
	}
	if p.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
	if p.Status != p.Timeline[len(p.Timeline)-1].Status {
		t.Fatal("status must equal last timeline entry")
	}

	if pts, ok := issuer.pointsFor(id); !ok || pts != 85 {
		t.Fatalf("expected reward issued with 85 points, got %d (issued=%v)", pts, ok)
	}
	for _, event := range []string{"pickup_approved", "pickup_assigned", "pickup_progress", "pickup_completed"} {
		if !notifier.saw(event) {
			t.Errorf("expected notification %q", event)
		}
	}
}

func TestRejectFlow(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, Deps{})

	id, _ := svc.Create(ctx, validCreate("r1"))

	if err := svc.Reject(ctx, RejectCommand{PickupID: id, AdminID: "adm1"}); err != ErrBadRequest {
		t.Fatalf("reject without reason: expected ErrBadRequest, got %v", err)
	}
	if err := svc.Reject(ctx, RejectCommand{PickupID: id, AdminID: "adm1", Reason: "blurry photos"}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	p, _ := svc.Get(ctx, id)
	if p.Status != StatusAdminRejected {
		t.Fatalf("expected admin_rejected, got %s", p.Status)
	}
	if p.Approval == nil || !p.Approval.Rejected || p.Approval.Reason != "blurry photos" {
		t.Fatalf("expected rejection record with reason, got %+v", p.Approval)
	}
	if len(p.Timeline) != 2 {
		t.Fatalf("expected 2 timeline entries, got %d", len(p.Timeline))
	}

	// Terminal: nothing else moves it.
	if err := svc.Approve(ctx, ApproveCommand{PickupID: id, AdminID: "adm1"}); err != ErrConflict {
		t.Fatalf("approve after reject: expected ErrConflict, got %v", err)
	}
}

func TestCompleteWritesPointsOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, Deps{})

	id, _ := svc.Create(ctx, validCreate("r1"))
	mustAdvanceTo(t, svc, id, "a1", StatusInTransit)

	if err := svc.Complete(ctx, CompleteCommand{PickupID: id, AgentID: "a1"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := svc.Complete(ctx, CompleteCommand{PickupID: id, AgentID: "a1"}); err != ErrConflict {
		t.Fatalf("second complete: expected ErrConflict, got %v", err)
	}
}

func TestAcceptWrongPhase(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore(), Deps{})
	id, _ := svc.Create(ctx, validCreate("r1"))

	if err := svc.Accept(ctx, AcceptCommand{PickupID: id, AgentID: "a1"}); err != ErrConflict {
		t.Fatalf("accept before approval: expected ErrConflict, got %v", err)
	}
}

func TestAdvanceRequiresAssignedAgent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, Deps{})
	id, _ := svc.Create(ctx, validCreate("r1"))
	mustAdvanceTo(t, svc, id, "a1", StatusAssigned)

	if err := svc.Advance(ctx, AdvanceCommand{PickupID: id, AgentID: "impostor"}); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden for wrong agent, got %v", err)
	}
	if err := svc.Advance(ctx, AdvanceCommand{PickupID: id, AgentID: ""}); err != ErrBadRequest {
		t.Fatalf("expected ErrBadRequest for empty agent, got %v", err)
	}
}

func TestCancelIdentity(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, Deps{})
	id, _ := svc.Create(ctx, validCreate("r1"))

	if err := svc.Cancel(ctx, CancelCommand{PickupID: id, Actor: ActorRequester, ActorID: "someone_else"}); err != ErrForbidden {
		t.Fatalf("stranger cancel: expected ErrForbidden, got %v", err)
	}
	if err := svc.Cancel(ctx, CancelCommand{PickupID: id, Actor: ActorAgent, ActorID: "a1"}); err != ErrForbidden {
		t.Fatalf("unassigned agent cancel: expected ErrForbidden, got %v", err)
	}
	if err := svc.Cancel(ctx, CancelCommand{PickupID: id, Actor: ActorRequester, ActorID: "r1", Reason: "changed my mind"}); err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
	p, _ := svc.Get(ctx, id)
	if p.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", p.Status)
	}
}

func TestReleaseReturnsToPool(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, Deps{})
	id, _ := svc.Create(ctx, validCreate("r1"))
	mustAdvanceTo(t, svc, id, "a1", StatusAssigned)

	if err := svc.Release(ctx, ReleaseCommand{PickupID: id, AgentID: "a1"}); err != nil {
		t.Fatalf("release: %v", err)
	}
	p, _ := svc.Get(ctx, id)
	if p.Status != StatusAwaitingAgent {
		t.Fatalf("expected awaiting_agent after release, got %s", p.Status)
	}
	if p.AgentID != nil {
		t.Fatalf("expected agent cleared, got %v", *p.AgentID)
	}

	// A different agent can now take it.
	if err := svc.Accept(ctx, AcceptCommand{PickupID: id, AgentID: "a2"}); err != nil {
		t.Fatalf("accept after release: %v", err)
	}
}

func TestRate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, Deps{})
	id, _ := svc.Create(ctx, validCreate("r1"))
	mustAdvanceTo(t, svc, id, "a1", StatusInTransit)

	if err := svc.Rate(ctx, RateCommand{PickupID: id, RequesterID: "r1", Score: 5}); err != ErrConflict {
		t.Fatalf("rate before completion: expected ErrConflict, got %v", err)
	}

	if err := svc.Complete(ctx, CompleteCommand{PickupID: id, AgentID: "a1"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := svc.Rate(ctx, RateCommand{PickupID: id, RequesterID: "r1", Score: 0}); err != ErrBadRequest {
		t.Fatalf("score 0: expected ErrBadRequest, got %v", err)
	}
	if err := svc.Rate(ctx, RateCommand{PickupID: id, RequesterID: "other", Score: 4}); err != ErrForbidden {
		t.Fatalf("stranger rating: expected ErrForbidden, got %v", err)
	}
	if err := svc.Rate(ctx, RateCommand{PickupID: id, RequesterID: "r1", Score: 4, Review: "on time"}); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if err := svc.Rate(ctx, RateCommand{PickupID: id, RequesterID: "r1", Score: 2}); err != ErrConflict {
		t.Fatalf("second rating: expected ErrConflict, got %v", err)
	}
	p, _ := svc.Get(ctx, id)
	if p.Rating == nil || p.Rating.Score != 4 || p.Rating.Review != "on time" {
		t.Fatalf("unexpected rating: %+v", p.Rating)
	}
}

// mustAdvanceTo walks a fresh pickup forward to the requested status.
func mustAdvanceTo(t *testing.T, svc *Service, id, agentID types.ID, target Status) {
	t.Helper()
	ctx := context.Background()
	if err := svc.Approve(ctx, ApproveCommand{PickupID: id, AdminID: "adm1"}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if target == StatusAwaitingAgent {
		return
	}
	if err := svc.Accept(ctx, AcceptCommand{PickupID: id, AgentID: agentID}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if target == StatusAssigned {
		return
	}
	if err := svc.Advance(ctx, AdvanceCommand{PickupID: id, AgentID: agentID}); err != nil {
		t.Fatalf("advance: %v", err)
	}
}

// README: Pickup store backed by PostgreSQL; transitions are compare-and-swap updates.
package pickup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

// Transition is one edge application against a pickup. ApplyTransition
// succeeds only when the stored status and version still match From and
// ExpectedVersion, which is what makes concurrent accepts settle to a single
// winner without any external locking.
type Transition struct {
	PickupID        types.ID
	From, To        Status
	ExpectedVersion int
	Actor           Actor
	ActorID         *types.ID

	AgentID    *types.ID // set on assignment
	ClearAgent bool      // set on release back to the pool

	Note     string
	Location *types.Point

	Approval *Approval

	// Completion payload; written in the same UPDATE as the status change.
	Completed bool
	Points    int
	Earnings  types.Money
}

// ReviewFilter drives the admin pending-review listing.
type ReviewFilter struct {
	Status    Status // defaults to pending_review
	WasteType WasteType
	Priority  Priority
	From, To  *time.Time
	Query     string // free text over requester name / address
	Cursor    string
	Limit     int
}

type Store interface {
	Create(ctx context.Context, p *Pickup) error
	Get(ctx context.Context, id types.ID) (*Pickup, error)
	ApplyTransition(ctx context.Context, t Transition) (bool, error)
	SetRoute(ctx context.Context, id types.ID, r Route, distanceKm float64) error
	SetRating(ctx context.Context, id types.ID, rating Rating) (bool, error)
	ListByRequester(ctx context.Context, requesterID types.ID) ([]*Pickup, error)
	ListByAgent(ctx context.Context, agentID types.ID) ([]*Pickup, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Pickup, error)
	ListReview(ctx context.Context, f ReviewFilter) ([]*Pickup, string, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const pickupColumns = `
	id, requester_id, requester_name, address, agent_id,
	waste_type, food_boxes, bottles, other_desc, images,
	priority, scheduled_date, time_slot,
	status, status_version,
	approved_by, approval_rejected, approval_reason, approved_at,
	estimated_weight_kg, points, earnings, distance_km,
	pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	route_waypoints, route_distance_km, route_duration_min,
	rating_score, rating_review, rated_at,
	created_at, completed_at`

func (s *PGStore) Create(ctx context.Context, p *Pickup) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO pickups (
			id, requester_id, requester_name, address,
			waste_type, food_boxes, bottles, other_desc, images,
			priority, scheduled_date, time_slot,
			status, status_version, estimated_weight_kg,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12,
			$13, $14, $15,
			$16, $17, $18, $19, $20
		)`,
		string(p.ID), string(p.RequesterID), p.RequesterName, p.Address,
		string(p.WasteType), p.FoodBoxes, p.Bottles, p.OtherDesc, p.Images,
		string(p.Priority), p.ScheduledDate, p.TimeSlot,
		string(p.Status), p.StatusVersion, p.EstimatedWeightKg,
		p.PickupPoint.Lat, p.PickupPoint.Lng, p.DropoffPoint.Lat, p.DropoffPoint.Lng,
		p.CreatedAt,
	)
	if err != nil {
		return err
	}
	if len(p.Timeline) == 1 {
		e := p.Timeline[0]
		if err := insertTimeline(ctx, tx, p.ID, e); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Pickup, error) {
	row := s.db.QueryRow(ctx, `SELECT `+pickupColumns+` FROM pickups WHERE id = $1`, string(id))
	p, err := scanPickup(row)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT status, note, lat, lng, created_at
		FROM pickup_timeline WHERE pickup_id = $1 ORDER BY id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e TimelineEntry
		var lat, lng *float64
		if err := rows.Scan(&e.Status, &e.Note, &lat, &lng, &e.At); err != nil {
			return nil, err
		}
		if lat != nil && lng != nil {
			e.Location = &types.Point{Lat: *lat, Lng: *lng}
		}
		p.Timeline = append(p.Timeline, e)
	}
	return p, rows.Err()
}

// ApplyTransition performs the conditional status write and the timeline
// append in one transaction. Returns false when the precondition no longer
// holds (someone else won the race or the status moved on).
func (s *PGStore) ApplyTransition(ctx context.Context, t Transition) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	set := []string{"status = $1", "status_version = status_version + 1"}
	args := []any{string(t.To)}
	next := 2

	if t.AgentID != nil {
		set = append(set, fmt.Sprintf("agent_id = $%d", next))
		args = append(args, string(*t.AgentID))
		next++
	}
	if t.ClearAgent {
		set = append(set, "agent_id = NULL")
	}
	if t.Approval != nil {
		set = append(set, fmt.Sprintf("approved_by = $%d", next),
			fmt.Sprintf("approval_rejected = $%d", next+1),
			fmt.Sprintf("approval_reason = $%d", next+2),
			fmt.Sprintf("approved_at = $%d", next+3))
		args = append(args, string(t.Approval.AdminID), t.Approval.Rejected, t.Approval.Reason, t.Approval.At)
		next += 4
	}
	if t.Completed {
		set = append(set, fmt.Sprintf("points = $%d", next),
			fmt.Sprintf("earnings = $%d", next+1),
			"completed_at = NOW()")
		args = append(args, t.Points, t.Earnings.Amount)
		next += 2
	}

	where := fmt.Sprintf("WHERE id = $%d AND status = $%d AND status_version = $%d", next, next+1, next+2)
	args = append(args, string(t.PickupID), string(t.From), t.ExpectedVersion)
	if t.Completed {
		// Points and earnings are written exactly once.
		where += " AND points = 0"
	}

	tag, err := tx.Exec(ctx, "UPDATE pickups SET "+strings.Join(set, ", ")+" "+where, args...)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	entry := TimelineEntry{Status: t.To, Note: t.Note, Location: t.Location, At: time.Now()}
	if err := insertTimeline(ctx, tx, t.PickupID, entry); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *PGStore) SetRoute(ctx context.Context, id types.ID, r Route, distanceKm float64) error {
	waypoints, err := json.Marshal(r.Waypoints)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		UPDATE pickups
		SET route_waypoints = $1, route_distance_km = $2, route_duration_min = $3, distance_km = $4
		WHERE id = $5`,
		waypoints, r.DistanceKm, r.DurationMin, distanceKm, string(id))
	return err
}

func (s *PGStore) SetRating(ctx context.Context, id types.ID, rating Rating) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE pickups
		SET rating_score = $1, rating_review = $2, rated_at = $3
		WHERE id = $4 AND status = $5 AND rating_score IS NULL`,
		rating.Score, rating.Review, rating.At, string(id), string(StatusCompleted))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) ListByRequester(ctx context.Context, requesterID types.ID) ([]*Pickup, error) {
	return s.list(ctx, `SELECT `+pickupColumns+` FROM pickups WHERE requester_id = $1 ORDER BY created_at DESC`, string(requesterID))
}

func (s *PGStore) ListByAgent(ctx context.Context, agentID types.ID) ([]*Pickup, error) {
	return s.list(ctx, `SELECT `+pickupColumns+` FROM pickups WHERE agent_id = $1 ORDER BY created_at DESC`, string(agentID))
}

func (s *PGStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Pickup, error) {
	return s.list(ctx, `SELECT `+pickupColumns+` FROM pickups WHERE status = $1 ORDER BY priority, created_at LIMIT $2`, string(status), limit)
}

// ListReview is the admin console listing: indexed status filter plus a
// (created_at, id) keyset cursor so pages stay stable while statuses churn.
func (s *PGStore) ListReview(ctx context.Context, f ReviewFilter) ([]*Pickup, string, error) {
	status := f.Status
	if status == "" {
		status = StatusPendingReview
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	where := []string{"status = $1"}
	args := []any{string(status)}
	n := 2
	add := func(cond string, vals ...any) {
		for range vals {
			cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", n), 1)
			n++
		}
		where = append(where, cond)
		args = append(args, vals...)
	}

	if f.WasteType != "" {
		add("waste_type = ?", string(f.WasteType))
	}
	if f.Priority != "" {
		add("priority = ?", string(f.Priority))
	}
	if f.From != nil {
		add("created_at >= ?", *f.From)
	}
	if f.To != nil {
		add("created_at < ?", *f.To)
	}
	if f.Query != "" {
		pat := "%" + f.Query + "%"
		add("(requester_name ILIKE ? OR address ILIKE ?)", pat, pat)
	}
	if f.Cursor != "" {
		at, id, err := decodeCursor(f.Cursor)
		if err != nil {
			return nil, "", ErrBadRequest
		}
		add("(created_at, id) > (?, ?)", at, id)
	}

	query := `SELECT ` + pickupColumns + ` FROM pickups WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(" ORDER BY created_at, id LIMIT $%d", n)
	args = append(args, limit+1)

	items, err := s.list(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	nextCursor := ""
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		nextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return items, nextCursor, nil
}

func (s *PGStore) list(ctx context.Context, query string, args ...any) ([]*Pickup, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Pickup
	for rows.Next() {
		p, err := scanPickup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPickup(row rowScanner) (*Pickup, error) {
	var p Pickup
	var agentID, approvedBy, approvalReason, ratingReview *string
	var approvalRejected *bool
	var approvedAt, ratedAt *time.Time
	var earnings int64
	var routeWaypoints []byte
	var routeDistance, routeDuration *float64
	var ratingScore *int

	err := row.Scan(
		&p.ID, &p.RequesterID, &p.RequesterName, &p.Address, &agentID,
		&p.WasteType, &p.FoodBoxes, &p.Bottles, &p.OtherDesc, &p.Images,
		&p.Priority, &p.ScheduledDate, &p.TimeSlot,
		&p.Status, &p.StatusVersion,
		&approvedBy, &approvalRejected, &approvalReason, &approvedAt,
		&p.EstimatedWeightKg, &p.Points, &earnings, &p.DistanceKm,
		&p.PickupPoint.Lat, &p.PickupPoint.Lng, &p.DropoffPoint.Lat, &p.DropoffPoint.Lng,
		&routeWaypoints, &routeDistance, &routeDuration,
		&ratingScore, &ratingReview, &ratedAt,
		&p.CreatedAt, &p.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if agentID != nil {
		a := types.ID(*agentID)
		p.AgentID = &a
	}
	if approvedBy != nil && approvedAt != nil {
		p.Approval = &Approval{AdminID: types.ID(*approvedBy), At: *approvedAt}
		if approvalRejected != nil {
			p.Approval.Rejected = *approvalRejected
		}
		if approvalReason != nil {
			p.Approval.Reason = *approvalReason
		}
	}
	p.Earnings = types.Money{Amount: earnings, Currency: Currency}
	if routeWaypoints != nil && routeDistance != nil && routeDuration != nil {
		r := Route{DistanceKm: *routeDistance, DurationMin: *routeDuration}
		if err := json.Unmarshal(routeWaypoints, &r.Waypoints); err == nil {
			p.Route = &r
		}
	}
	if ratingScore != nil && ratedAt != nil {
		p.Rating = &Rating{Score: *ratingScore, At: *ratedAt}
		if ratingReview != nil {
			p.Rating.Review = *ratingReview
		}
	}
	return &p, nil
}

func insertTimeline(ctx context.Context, tx pgx.Tx, id types.ID, e TimelineEntry) error {
	var lat, lng *float64
	if e.Location != nil {
		lat, lng = &e.Location.Lat, &e.Location.Lng
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO pickup_timeline (pickup_id, status, note, lat, lng, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(id), string(e.Status), e.Note, lat, lng, e.At)
	return err
}

func encodeCursor(at time.Time, id types.ID) string {
	return at.UTC().Format(time.RFC3339Nano) + "|" + string(id)
}

func decodeCursor(c string) (time.Time, string, error) {
	at, id, ok := strings.Cut(c, "|")
	if !ok {
		return time.Time{}, "", errors.New("malformed cursor")
	}
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return time.Time{}, "", err
	}
	return t, id, nil
}

// README: Reward store backed by PostgreSQL; redemption is a single-use conditional update.
package rewards

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

type Store interface {
	Create(ctx context.Context, r *Reward) error
	GetByCode(ctx context.Context, code string) (*Reward, error)
	MarkRedeemed(ctx context.Context, code string, at time.Time) (bool, error)
	ListByRequester(ctx context.Context, requesterID types.ID) ([]*Reward, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, r *Reward) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rewards (id, pickup_id, requester_id, points, code, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(r.ID), string(r.PickupID), string(r.RequesterID), r.Points, r.Code, r.ExpiresAt, r.CreatedAt)
	return err
}

func (s *PGStore) GetByCode(ctx context.Context, code string) (*Reward, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, pickup_id, requester_id, points, code, expires_at, redeemed_at, created_at
		FROM rewards WHERE code = $1`, code)
	return scanReward(row)
}

// MarkRedeemed flips the redeemed timestamp once. The NULL predicate is the
// single-use guarantee under concurrent redemption attempts.
func (s *PGStore) MarkRedeemed(ctx context.Context, code string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE rewards SET redeemed_at = $1
		WHERE code = $2 AND redeemed_at IS NULL AND expires_at > $1`, at, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) ListByRequester(ctx context.Context, requesterID types.ID) ([]*Reward, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, pickup_id, requester_id, points, code, expires_at, redeemed_at, created_at
		FROM rewards WHERE requester_id = $1 ORDER BY created_at DESC`, string(requesterID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReward(row rowScanner) (*Reward, error) {
	var r Reward
	err := row.Scan(&r.ID, &r.PickupID, &r.RequesterID, &r.Points, &r.Code, &r.ExpiresAt, &r.RedeemedAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

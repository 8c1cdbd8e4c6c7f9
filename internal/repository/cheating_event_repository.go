package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/proficiency-backend/internal/model"
)

// CheatingEventRepository reads and writes integrity events.
type CheatingEventRepository struct {
	pool *pgxpool.Pool
}

// NewCheatingEventRepository creates a new CheatingEventRepository.
func NewCheatingEventRepository(pool *pgxpool.Pool) *CheatingEventRepository {
	return &CheatingEventRepository{pool: pool}
}

// Insert writes one event. Replays of an already persisted id are ignored.
func (r *CheatingEventRepository) Insert(ctx context.Context, e *model.CheatingEvent) error {
	details := e.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO cheating_events (id, attempt_id, examinee_id, type, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.AttemptID, e.ExamineeID, e.Type, []byte(details), e.CreatedAt,
	)
	return err
}

// ListByExaminee returns an examinee's events newest first, each with a summary of its attempt.
func (r *CheatingEventRepository) ListByExaminee(ctx context.Context, examineeID string, take, skip int) ([]model.CheatingEventWithAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ce.id, ce.attempt_id, ce.examinee_id, ce.type, ce.details, ce.created_at,
		        a.id, a.status, a.created_at, a.submitted_at
		 FROM cheating_events ce
		 JOIN attempts a ON a.id = ce.attempt_id
		 WHERE ce.examinee_id = $1
		 ORDER BY ce.created_at DESC, ce.id
		 LIMIT $2 OFFSET $3`, examineeID, take, skip,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]model.CheatingEventWithAttempt, 0)
	for rows.Next() {
		var (
			e   model.CheatingEventWithAttempt
			raw []byte
		)
		if err := rows.Scan(
			&e.ID, &e.AttemptID, &e.ExamineeID, &e.Type, &raw, &e.CreatedAt,
			&e.Attempt.ID, &e.Attempt.Status, &e.Attempt.CreatedAt, &e.Attempt.SubmittedAt,
		); err != nil {
			return nil, err
		}
		e.Details = json.RawMessage(raw)
		events = append(events, e)
	}
	return events, rows.Err()
}

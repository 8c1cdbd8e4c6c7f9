package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/proficiency-backend/internal/model"
)

// AttemptTx is the set of reads and writes the attempt lifecycle performs
// inside one transaction.
type AttemptTx interface {
	GetActivePointer(ctx context.Context, examineeID string) (*model.ActivePointer, error)
	SetAttemptStatus(ctx context.Context, attemptID uuid.UUID, status model.AttemptStatus) error
	DeleteActivePointer(ctx context.Context, examineeID string) error
	CreateAttempt(ctx context.Context, a *model.Attempt) error
	CreateActivePointer(ctx context.Context, p *model.ActivePointer) error
	CreateResult(ctx context.Context, res *model.ExamResult) error
	MarkSubmitted(ctx context.Context, attemptID uuid.UUID, sub model.SubmissionSnapshot, at time.Time) error
}

// AttemptRepository stores attempts, active pointers and exam results.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// WithinExamineeTx runs fn in a transaction holding a per-examinee advisory
// lock, so lifecycle transitions of one examinee never interleave. fn's
// error rolls everything back.
func (r *AttemptRepository) WithinExamineeTx(ctx context.Context, examineeID string, fn func(tx AttemptTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // no-op after commit

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, examineeID); err != nil {
		return fmt.Errorf("lock examinee: %w", err)
	}

	if err := fn(&attemptTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", mapError(err))
	}
	return nil
}

// GetActivePointer reads the examinee's pointer outside any transaction.
func (r *AttemptRepository) GetActivePointer(ctx context.Context, examineeID string) (*model.ActivePointer, error) {
	return getActivePointer(ctx, r.pool, examineeID)
}

// ListAttempts returns one page of an examinee's attempts, newest first, and the total count.
func (r *AttemptRepository) ListAttempts(ctx context.Context, examineeID string, limit, offset int) ([]model.Attempt, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE examinee_id = $1`, examineeID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE examinee_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, examineeID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	attempts := make([]model.Attempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, 0, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, total, rows.Err()
}

// CountInProgress returns how many IN_PROGRESS attempts an examinee has.
func (r *AttemptRepository) CountInProgress(ctx context.Context, examineeID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE examinee_id = $1 AND status = $2`,
		examineeID, model.AttemptStatusInProgress,
	).Scan(&n)
	return n, err
}

// ListResults returns an examinee's results, newest first.
func (r *AttemptRepository) ListResults(ctx context.Context, examineeID string, limit int) ([]model.ExamResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, examinee_id, grammar, listening, writing, speaking, total, band, created_at
		 FROM exam_results
		 WHERE examinee_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, examineeID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]model.ExamResult, 0)
	for rows.Next() {
		var res model.ExamResult
		if err := rows.Scan(
			&res.ID, &res.AttemptID, &res.ExamineeID,
			&res.Breakdown.Grammar, &res.Breakdown.Listening, &res.Breakdown.Writing, &res.Breakdown.Speaking,
			&res.Total, &res.Band, &res.CreatedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// ─── Transaction-scoped operations ───────────────────────────────────

type attemptTx struct {
	q dbtx
}

func (t *attemptTx) GetActivePointer(ctx context.Context, examineeID string) (*model.ActivePointer, error) {
	return getActivePointer(ctx, t.q, examineeID)
}

func (t *attemptTx) SetAttemptStatus(ctx context.Context, attemptID uuid.UUID, status model.AttemptStatus) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE attempts SET status = $1 WHERE id = $2`, status, attemptID,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *attemptTx) DeleteActivePointer(ctx context.Context, examineeID string) error {
	tag, err := t.q.Exec(ctx,
		`DELETE FROM active_pointers WHERE examinee_id = $1`, examineeID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *attemptTx) CreateAttempt(ctx context.Context, a *model.Attempt) error {
	err := t.q.QueryRow(ctx,
		`INSERT INTO attempts (id, examinee_id, status, mcq_item_ids, listening_scenario_id, writing_topic_id, speaking_set_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		a.ID, a.ExamineeID, a.Status, a.MCQItemIDs, a.ListeningScenarioID, a.WritingTopicID, a.SpeakingSetID,
	).Scan(&a.CreatedAt)
	return mapError(err)
}

func (t *attemptTx) CreateActivePointer(ctx context.Context, p *model.ActivePointer) error {
	key, err := json.Marshal(p.Key)
	if err != nil {
		return fmt.Errorf("marshal answer key: %w", err)
	}
	err = t.q.QueryRow(ctx,
		`INSERT INTO active_pointers (examinee_id, attempt_id, answer_key)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		p.ExamineeID, p.AttemptID, key,
	).Scan(&p.CreatedAt)
	return mapError(err)
}

func (t *attemptTx) CreateResult(ctx context.Context, res *model.ExamResult) error {
	err := t.q.QueryRow(ctx,
		`INSERT INTO exam_results (id, attempt_id, examinee_id, grammar, listening, writing, speaking, total, band)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		res.ID, res.AttemptID, res.ExamineeID,
		res.Breakdown.Grammar, res.Breakdown.Listening, res.Breakdown.Writing, res.Breakdown.Speaking,
		res.Total, res.Band,
	).Scan(&res.CreatedAt)
	return mapError(err)
}

func (t *attemptTx) MarkSubmitted(ctx context.Context, attemptID uuid.UUID, sub model.SubmissionSnapshot, at time.Time) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	tag, err := t.q.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, submission = $2, submitted_at = $3
		 WHERE id = $4 AND status = $5`,
		model.AttemptStatusSubmitted, raw, at, attemptID, model.AttemptStatusInProgress,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────

const attemptColumns = `id, examinee_id, status, mcq_item_ids, listening_scenario_id, writing_topic_id,
		speaking_set_id, submission, created_at, submitted_at`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	var (
		a   model.Attempt
		raw []byte
	)
	if err := row.Scan(
		&a.ID, &a.ExamineeID, &a.Status, &a.MCQItemIDs, &a.ListeningScenarioID, &a.WritingTopicID,
		&a.SpeakingSetID, &raw, &a.CreatedAt, &a.SubmittedAt,
	); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		var sub model.SubmissionSnapshot
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("decode submission: %w", err)
		}
		a.Submission = &sub
	}
	return &a, nil
}

func getActivePointer(ctx context.Context, q dbtx, examineeID string) (*model.ActivePointer, error) {
	var (
		p   model.ActivePointer
		raw []byte
	)
	err := q.QueryRow(ctx,
		`SELECT examinee_id, attempt_id, answer_key, created_at
		 FROM active_pointers
		 WHERE examinee_id = $1`, examineeID,
	).Scan(&p.ExamineeID, &p.AttemptID, &raw, &p.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if err := json.Unmarshal(raw, &p.Key); err != nil {
		return nil, fmt.Errorf("decode answer key: %w", err)
	}
	return &p, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/proficiency-backend/internal/model"
)

// ContentCounts reports how many rows each content bank holds.
type ContentCounts struct {
	MCQ       int `json:"mcq"`
	Listening int `json:"listening"`
	Writing   int `json:"writing"`
	Speaking  int `json:"speaking"`
}

// ContentRepository handles the content banks the generator draws from.
type ContentRepository struct {
	pool *pgxpool.Pool
}

// NewContentRepository creates a new ContentRepository.
func NewContentRepository(pool *pgxpool.Pool) *ContentRepository {
	return &ContentRepository{pool: pool}
}

// LoadPools reads every bank in one batch round trip.
func (r *ContentRepository) LoadPools(ctx context.Context) (*model.ContentPools, error) {
	batch := &pgx.Batch{}
	batch.Queue(`SELECT id, text, options, correct, COALESCE(difficulty, ''), created_at FROM mcq_items ORDER BY id`)
	batch.Queue(`SELECT id, topic, passage, COALESCE(difficulty, '') FROM listening_scenarios ORDER BY id`)
	batch.Queue(`SELECT scenario_id, qid, text, options, correct FROM listening_questions ORDER BY scenario_id, position`)
	batch.Queue(`SELECT id, topic FROM writing_topics ORDER BY id`)
	batch.Queue(`SELECT id, prompts FROM speaking_sets ORDER BY id`)

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	pools := &model.ContentPools{}

	mcqRows, err := br.Query()
	if err != nil {
		return nil, fmt.Errorf("query mcq: %w", err)
	}
	pools.MCQ, err = pgx.CollectRows(mcqRows, func(row pgx.CollectableRow) (model.MCQItem, error) {
		var m model.MCQItem
		err := row.Scan(&m.ID, &m.Text, &m.Options, &m.Correct, &m.Difficulty, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan mcq: %w", err)
	}

	scenarioRows, err := br.Query()
	if err != nil {
		return nil, fmt.Errorf("query listening: %w", err)
	}
	pools.Listening, err = pgx.CollectRows(scenarioRows, func(row pgx.CollectableRow) (model.ListeningScenario, error) {
		var s model.ListeningScenario
		err := row.Scan(&s.ID, &s.Topic, &s.Passage, &s.Difficulty)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan listening: %w", err)
	}

	questionRows, err := br.Query()
	if err != nil {
		return nil, fmt.Errorf("query listening questions: %w", err)
	}
	byScenario := make(map[int64][]model.ListeningQuestion)
	_, err = pgx.CollectRows(questionRows, func(row pgx.CollectableRow) (struct{}, error) {
		var (
			scenarioID int64
			q          model.ListeningQuestion
		)
		if err := row.Scan(&scenarioID, &q.QID, &q.Text, &q.Options, &q.Correct); err != nil {
			return struct{}{}, err
		}
		byScenario[scenarioID] = append(byScenario[scenarioID], q)
		return struct{}{}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan listening questions: %w", err)
	}
	for i := range pools.Listening {
		pools.Listening[i].Questions = byScenario[pools.Listening[i].ID]
	}

	writingRows, err := br.Query()
	if err != nil {
		return nil, fmt.Errorf("query writing: %w", err)
	}
	pools.Writing, err = pgx.CollectRows(writingRows, func(row pgx.CollectableRow) (model.WritingTopic, error) {
		var w model.WritingTopic
		err := row.Scan(&w.ID, &w.Topic)
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan writing: %w", err)
	}

	speakingRows, err := br.Query()
	if err != nil {
		return nil, fmt.Errorf("query speaking: %w", err)
	}
	pools.Speaking, err = pgx.CollectRows(speakingRows, func(row pgx.CollectableRow) (model.SpeakingSet, error) {
		var s model.SpeakingSet
		err := row.Scan(&s.ID, &s.Prompts)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan speaking: %w", err)
	}

	return pools, nil
}

// Counts returns the size of each bank.
func (r *ContentRepository) Counts(ctx context.Context) (ContentCounts, error) {
	var c ContentCounts
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM mcq_items),
			(SELECT COUNT(*) FROM listening_scenarios),
			(SELECT COUNT(*) FROM writing_topics),
			(SELECT COUNT(*) FROM speaking_sets)`,
	).Scan(&c.MCQ, &c.Listening, &c.Writing, &c.Speaking)
	return c, err
}

// ListMCQ returns MCQ items newest first with the total count.
func (r *ContentRepository) ListMCQ(ctx context.Context, take, skip int) ([]model.MCQItem, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM mcq_items`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, text, options, correct, COALESCE(difficulty, ''), created_at
		 FROM mcq_items
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`, take, skip,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]model.MCQItem, 0)
	for rows.Next() {
		var m model.MCQItem
		if err := rows.Scan(&m.ID, &m.Text, &m.Options, &m.Correct, &m.Difficulty, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

// CreateMCQ inserts an MCQ item.
func (r *ContentRepository) CreateMCQ(ctx context.Context, m *model.MCQItem) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO mcq_items (text, options, correct, difficulty)
		 VALUES ($1, $2, $3, NULLIF($4, ''))
		 RETURNING id, created_at`,
		m.Text, m.Options, m.Correct, m.Difficulty,
	).Scan(&m.ID, &m.CreatedAt)
}

// DeleteMCQ removes an MCQ item. Attempts keep their own copy of the key.
func (r *ContentRepository) DeleteMCQ(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM mcq_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateListeningScenario inserts a scenario and its questions atomically.
func (r *ContentRepository) CreateListeningScenario(ctx context.Context, s *model.ListeningScenario) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx,
		`INSERT INTO listening_scenarios (topic, passage, difficulty)
		 VALUES ($1, $2, NULLIF($3, ''))
		 RETURNING id`,
		s.Topic, s.Passage, s.Difficulty,
	).Scan(&s.ID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, q := range s.Questions {
		batch.Queue(
			`INSERT INTO listening_questions (scenario_id, qid, position, text, options, correct)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			s.ID, q.QID, i, q.Text, q.Options, q.Correct,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return mapError(err)
	}

	return tx.Commit(ctx)
}

// CreateWritingTopic inserts a writing topic.
func (r *ContentRepository) CreateWritingTopic(ctx context.Context, w *model.WritingTopic) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO writing_topics (topic) VALUES ($1) RETURNING id`, w.Topic,
	).Scan(&w.ID)
	return mapError(err)
}

// CreateSpeakingSet inserts a speaking prompt set.
func (r *ContentRepository) CreateSpeakingSet(ctx context.Context, s *model.SpeakingSet) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO speaking_sets (prompts) VALUES ($1) RETURNING id`, s.Prompts,
	).Scan(&s.ID)
}

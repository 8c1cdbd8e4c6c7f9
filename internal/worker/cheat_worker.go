package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/proficiency-backend/internal/config"
	"github.com/stemsi/proficiency-backend/internal/model"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Redis BLPOP granularity is one second
	RetryBackoff = 2 * time.Second
)

var cheatColumns = []string{"id", "attempt_id", "examinee_id", "type", "details", "created_at"}

// EventSink is the Postgres surface the worker writes through.
// *pgxpool.Pool satisfies it.
type EventSink interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CheatWorker drains the cheat queue into cheating_events in batches.
type CheatWorker struct {
	sink EventSink
	rdb  redis.Cmdable
	log  zerolog.Logger

	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
	retryBackoff time.Duration
}

// NewCheatWorker creates a new CheatWorker.
func NewCheatWorker(sink EventSink, rdb redis.Cmdable, log zerolog.Logger) *CheatWorker {
	return &CheatWorker{
		sink:         sink,
		rdb:          rdb,
		log:          log.With().Str("component", "cheat_worker").Logger(),
		batchSize:    BatchSize,
		batchTimeout: BatchTimeout,
		pollTimeout:  PollTimeout,
		retryBackoff: RetryBackoff,
	}
}

// Start runs until ctx is cancelled, then flushes what it holds.
func (w *CheatWorker) Start(ctx context.Context) {
	w.log.Info().Msg("CheatWorker started")

	buffer := make([]*model.CheatingEvent, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, w.pollTimeout, config.WorkerKey.PersistCheatsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, backing off")
			w.sleep(ctx, w.retryBackoff)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var e model.CheatingEvent
		if err := json.Unmarshal([]byte(result[1]), &e); err != nil {
			// Malformed payloads can never succeed; drop them.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed cheating event")
			continue
		}
		buffer = append(buffer, &e)
	}
}

// flushSafe tries a bulk COPY, then row-by-row inserts, then requeues.
func (w *CheatWorker) flushSafe(ctx context.Context, batch []*model.CheatingEvent) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
		return
	}
	w.log.Debug().Int("count", len(batch)).Msg("Cheating events persisted")
}

func (w *CheatWorker) bulkInsert(ctx context.Context, batch []*model.CheatingEvent) error {
	rows := make([][]any, 0, len(batch))
	for _, e := range batch {
		rows = append(rows, []any{
			e.ID, e.AttemptID, e.ExamineeID, e.Type, detailsOrEmpty(e.Details), e.CreatedAt,
		})
	}
	_, err := w.sink.CopyFrom(ctx, pgx.Identifier{"cheating_events"}, cheatColumns, pgx.CopyFromRows(rows))
	return err
}

func (w *CheatWorker) fallbackInsert(ctx context.Context, batch []*model.CheatingEvent) {
	requeue := make([]*model.CheatingEvent, 0)

	for _, e := range batch {
		_, err := w.sink.Exec(ctx,
			`INSERT INTO cheating_events (id, attempt_id, examinee_id, type, details, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO NOTHING`,
			e.ID, e.AttemptID, e.ExamineeID, e.Type, detailsOrEmpty(e.Details), e.CreatedAt,
		)
		if err == nil {
			continue
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			// Attempt row is gone; retrying cannot help.
			w.log.Error().Err(err).Str("attempt_id", e.AttemptID.String()).Msg("Dropping cheating event for unknown attempt")
			continue
		}
		w.log.Error().Err(err).Str("event_id", e.ID.String()).Msg("Insert failed, requeueing")
		requeue = append(requeue, e)
	}

	if len(requeue) > 0 {
		w.requeue(ctx, requeue)
	}
}

func (w *CheatWorker) requeue(ctx context.Context, items []*model.CheatingEvent) {
	pipe := w.rdb.Pipeline()
	for _, e := range items {
		data, _ := json.Marshal(e)
		pipe.RPush(ctx, config.WorkerKey.PersistCheatsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: failed to requeue cheating events, data lost")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued cheating events")
	w.sleep(ctx, w.retryBackoff)
}

func (w *CheatWorker) shutdown(buffer []*model.CheatingEvent) {
	w.log.Info().Int("buffered", len(buffer)).Msg("CheatWorker stopping, flushing buffer")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}

func (w *CheatWorker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func detailsOrEmpty(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte(`{}`)
	}
	return raw
}

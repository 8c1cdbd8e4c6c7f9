package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/proficiency-backend/internal/config"
	"github.com/stemsi/proficiency-backend/internal/model"
)

// CheatQueue pushes cheating events onto the persistence queue and
// announces them on the integrity channel for live reviewers.
type CheatQueue struct {
	rdb redis.Cmdable
}

// NewCheatQueue creates a new CheatQueue.
func NewCheatQueue(rdb redis.Cmdable) *CheatQueue {
	return &CheatQueue{rdb: rdb}
}

// Enqueue hands e to CheatWorker. The publish is best-effort; the list push
// is what makes the event durable.
func (q *CheatQueue) Enqueue(ctx context.Context, e *model.CheatingEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cheating event: %w", err)
	}

	pipe := q.rdb.Pipeline()
	push := pipe.RPush(ctx, config.WorkerKey.PersistCheatsQueue, data)
	pipe.Publish(ctx, config.CacheKey.IntegrityChannel(), data)
	_, _ = pipe.Exec(ctx)

	if err := push.Err(); err != nil {
		return fmt.Errorf("enqueue cheating event: %w", err)
	}
	return nil
}

// Depth returns the number of events waiting for persistence.
func (q *CheatQueue) Depth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, config.WorkerKey.PersistCheatsQueue).Result()
}

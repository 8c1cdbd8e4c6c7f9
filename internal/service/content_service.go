package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/proficiency-backend/internal/config"
	"github.com/stemsi/proficiency-backend/internal/model"
	"github.com/stemsi/proficiency-backend/internal/repository"
	"github.com/stemsi/proficiency-backend/internal/response"
)

// MCQ listing window.
const (
	defaultMCQTake = 50
	maxMCQTake     = 200
)

// ContentStore is the durable home of the content banks.
type ContentStore interface {
	LoadPools(ctx context.Context) (*model.ContentPools, error)
	ListMCQ(ctx context.Context, take, skip int) ([]model.MCQItem, int, error)
	CreateMCQ(ctx context.Context, m *model.MCQItem) error
	DeleteMCQ(ctx context.Context, id int64) error
}

// ContentService serves the content pools from a Redis snapshot with a
// self-healing fallback to Postgres, and manages the MCQ bank.
type ContentService struct {
	store ContentStore
	rdb   redis.Cmdable
	ttl   time.Duration
	log   zerolog.Logger
}

// NewContentService creates a new ContentService. A zero ttl keeps the
// snapshot until the next mutation.
func NewContentService(store ContentStore, rdb redis.Cmdable, ttl time.Duration, log zerolog.Logger) *ContentService {
	return &ContentService{
		store: store,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.With().Str("component", "content_service").Logger(),
	}
}

// Pools returns the content pools, preferring the cached snapshot.
func (s *ContentService) Pools(ctx context.Context) (*model.ContentPools, error) {
	key := config.CacheKey.ContentPoolsKey()

	raw, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var pools model.ContentPools
		if jsonErr := json.Unmarshal(raw, &pools); jsonErr == nil {
			return &pools, nil
		}
		s.log.Warn().Msg("Corrupt content pool snapshot, rebuilding")
	case errors.Is(err, redis.Nil):
		s.log.Debug().Msg("Content pool cache miss")
	default:
		s.log.Warn().Err(err).Msg("Content pool cache unavailable, reading database")
		return s.store.LoadPools(ctx)
	}

	// Self-healing: rebuild the snapshot from the database.
	pools, err := s.store.LoadPools(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache(ctx, pools); err != nil {
		s.log.Warn().Err(err).Msg("Failed to store content pool snapshot")
	}
	return pools, nil
}

// WarmPoolCache loads every bank into Redis. Called at startup and after
// content mutations.
func (s *ContentService) WarmPoolCache(ctx context.Context) error {
	pools, err := s.store.LoadPools(ctx)
	if err != nil {
		return fmt.Errorf("load pools: %w", err)
	}
	if err := s.cache(ctx, pools); err != nil {
		return err
	}

	s.log.Info().
		Int("mcq", len(pools.MCQ)).
		Int("listening", len(pools.Listening)).
		Int("writing", len(pools.Writing)).
		Int("speaking", len(pools.Speaking)).
		Msg("Content pool cache warmed")
	return nil
}

func (s *ContentService) cache(ctx context.Context, pools *model.ContentPools) error {
	raw, err := json.Marshal(pools)
	if err != nil {
		return fmt.Errorf("marshal pools: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.ContentPoolsKey(), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache pools: %w", err)
	}
	return nil
}

// refresh rebuilds the snapshot after a mutation. If that fails the snapshot
// is dropped so the next read falls back to the database.
func (s *ContentService) refresh(ctx context.Context) {
	if err := s.WarmPoolCache(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Content pool refresh failed, dropping snapshot")
		_ = s.rdb.Del(ctx, config.CacheKey.ContentPoolsKey()).Err()
	}
}

// ListMCQ returns a window of the MCQ bank, newest first.
func (s *ContentService) ListMCQ(ctx context.Context, take, skip int) ([]model.MCQItem, *response.Window, error) {
	take, skip = ClampWindow(take, skip, defaultMCQTake, maxMCQTake)
	items, total, err := s.store.ListMCQ(ctx, take, skip)
	if err != nil {
		return nil, nil, fmt.Errorf("list mcq: %w", err)
	}
	return items, &response.Window{Take: take, Skip: skip, Count: total}, nil
}

// CreateMCQ validates and inserts an MCQ item.
func (s *ContentService) CreateMCQ(ctx context.Context, req model.CreateMCQRequest) (*model.MCQItem, error) {
	item, err := NormalizeMCQ(req)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateMCQ(ctx, item); err != nil {
		return nil, fmt.Errorf("create mcq: %w", err)
	}
	s.log.Info().Int64("mcq_id", item.ID).Msg("MCQ item created")
	s.refresh(ctx)
	return item, nil
}

// DeleteMCQ removes an MCQ item. Attempts already generated keep grading
// against their own key snapshot.
func (s *ContentService) DeleteMCQ(ctx context.Context, id int64) error {
	if err := s.store.DeleteMCQ(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrContentNotFound
		}
		return fmt.Errorf("delete mcq: %w", err)
	}
	s.log.Info().Int64("mcq_id", id).Msg("MCQ item deleted")
	s.refresh(ctx)
	return nil
}

// NormalizeMCQ trims an MCQ request and checks it is answerable: non-empty
// text, at least two non-empty options, and a correct value among them.
func NormalizeMCQ(req model.CreateMCQRequest) (*model.MCQItem, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidContent)
	}

	options := make([]string, 0, len(req.Options))
	for _, o := range req.Options {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			options = append(options, trimmed)
		}
	}
	if len(options) < 2 {
		return nil, fmt.Errorf("%w: at least two non-empty options are required", ErrInvalidContent)
	}

	correct := strings.TrimSpace(req.Correct)
	if !slices.Contains(options, correct) {
		return nil, fmt.Errorf("%w: correct answer must be one of the options", ErrInvalidContent)
	}

	return &model.MCQItem{
		Text:       text,
		Options:    options,
		Correct:    correct,
		Difficulty: strings.TrimSpace(req.Difficulty),
	}, nil
}

// ClampWindow substitutes def for a zero (unset) take, clamps take to
// [1, max] and skip to >= 0.
func ClampWindow(take, skip, def, max int) (int, int) {
	switch {
	case take == 0:
		take = def
	case take < 1:
		take = 1
	case take > max:
		take = max
	}
	if skip < 0 {
		skip = 0
	}
	return take, skip
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/proficiency-backend/internal/grading"
	"github.com/stemsi/proficiency-backend/internal/metrics"
	"github.com/stemsi/proficiency-backend/internal/model"
	"github.com/stemsi/proficiency-backend/internal/repository"
	"github.com/stemsi/proficiency-backend/internal/response"
)

// maxLifecycleRetries bounds how often a transaction that lost a uniqueness
// race is replayed before ErrAttemptConflict is returned.
const maxLifecycleRetries = 2

// historyLimit caps how many results an examinee history returns.
const historyLimit = 200

// AttemptStore is the durable record of attempts, active pointers and results.
type AttemptStore interface {
	WithinExamineeTx(ctx context.Context, examineeID string, fn func(tx repository.AttemptTx) error) error
	GetActivePointer(ctx context.Context, examineeID string) (*model.ActivePointer, error)
	ListAttempts(ctx context.Context, examineeID string, limit, offset int) ([]model.Attempt, int, error)
	ListResults(ctx context.Context, examineeID string, limit int) ([]model.ExamResult, error)
}

// PoolSource supplies the current content pools.
type PoolSource interface {
	Pools(ctx context.Context) (*model.ContentPools, error)
}

// AttemptService owns the attempt lifecycle: generate with
// supersede-on-regenerate, and grade-then-submit. Each runs as one
// transaction serialised per examinee.
type AttemptService struct {
	store     AttemptStore
	pools     PoolSource
	generator *Generator
	log       zerolog.Logger
	now       func() time.Time
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(store AttemptStore, pools PoolSource, generator *Generator, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		store:     store,
		pools:     pools,
		generator: generator,
		log:       log.With().Str("component", "attempt_service").Logger(),
		now:       time.Now,
	}
}

// Generate assembles a fresh exam for the examinee. An existing IN_PROGRESS
// attempt is abandoned in the same transaction that opens the new one.
func (s *AttemptService) Generate(ctx context.Context, examineeID string) (*model.ExamPayload, error) {
	pools, err := s.pools.Pools(ctx)
	if err != nil {
		return nil, fmt.Errorf("load content pools: %w", err)
	}
	assembly, err := s.generator.Assemble(pools)
	if err != nil {
		return nil, err
	}

	var (
		attemptID  uuid.UUID
		superseded *uuid.UUID
	)
	err = s.retryOnConflict(ctx, "generate", func() error {
		attemptID = uuid.New()
		superseded = nil
		return s.store.WithinExamineeTx(ctx, examineeID, func(tx repository.AttemptTx) error {
			prev, err := s.supersede(ctx, tx, examineeID)
			if err != nil {
				return err
			}
			superseded = prev

			attempt := assembly.Attempt(attemptID, examineeID)
			if err := tx.CreateAttempt(ctx, attempt); err != nil {
				return fmt.Errorf("create attempt: %w", err)
			}
			pointer := &model.ActivePointer{
				ExamineeID: examineeID,
				AttemptID:  attemptID,
				Key:        assembly.Key(),
			}
			if err := tx.CreateActivePointer(ctx, pointer); err != nil {
				return fmt.Errorf("create active pointer: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if superseded != nil {
		metrics.AttemptTransitions.WithLabelValues(string(model.AttemptStatusAbandoned)).Inc()
		s.log.Info().
			Str("examinee_id", examineeID).
			Str("abandoned_attempt_id", superseded.String()).
			Str("attempt_id", attemptID.String()).
			Msg("Attempt superseded by regenerate")
	}
	metrics.AttemptTransitions.WithLabelValues(string(model.AttemptStatusInProgress)).Inc()
	s.log.Info().
		Str("examinee_id", examineeID).
		Str("attempt_id", attemptID.String()).
		Int("mcq_items", len(assembly.MCQ)).
		Int64("listening_scenario_id", assembly.Listening.ID).
		Msg("Attempt generated")

	return assembly.Payload(attemptID), nil
}

// supersede abandons the examinee's current attempt, if any, and removes its
// pointer. It returns the abandoned attempt id.
func (s *AttemptService) supersede(ctx context.Context, tx repository.AttemptTx, examineeID string) (*uuid.UUID, error) {
	current, err := tx.GetActivePointer(ctx, examineeID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active pointer: %w", err)
	}

	if err := tx.SetAttemptStatus(ctx, current.AttemptID, model.AttemptStatusAbandoned); err != nil {
		return nil, fmt.Errorf("abandon attempt: %w", err)
	}
	if err := tx.DeleteActivePointer(ctx, examineeID); err != nil {
		return nil, fmt.Errorf("delete active pointer: %w", err)
	}
	id := current.AttemptID
	return &id, nil
}

// Submit grades the submission against the examinee's active answer key and
// records the result. The result insert, the SUBMITTED transition and the
// pointer delete commit together.
func (s *AttemptService) Submit(ctx context.Context, examineeID string, req model.SubmitAttemptRequest) (*model.ScoreResult, error) {
	snapshot := req.Snapshot()
	if clamped, truncated := grading.ClampTranscript(snapshot.SpeakingTranscript); truncated {
		metrics.TranscriptTruncated.Inc()
		s.log.Warn().
			Str("examinee_id", examineeID).
			Int("transcript_bytes", len(snapshot.SpeakingTranscript)).
			Int("max_runes", grading.MaxTranscriptRunes).
			Msg("Speaking transcript too long, truncated")
		snapshot.SpeakingTranscript = clamped
	}

	var result *model.ScoreResult
	err := s.retryOnConflict(ctx, "submit", func() error {
		return s.store.WithinExamineeTx(ctx, examineeID, func(tx repository.AttemptTx) error {
			pointer, err := tx.GetActivePointer(ctx, examineeID)
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNoActiveAttempt
			}
			if err != nil {
				return fmt.Errorf("load active pointer: %w", err)
			}

			outcome := grading.Evaluate(pointer.Key, snapshot)
			if outcome.SpeakingClamped {
				metrics.SpeakingClamped.Inc()
				s.log.Warn().
					Str("examinee_id", examineeID).
					Str("attempt_id", pointer.AttemptID.String()).
					Float64("speaking_score_raw", snapshot.SpeakingScore).
					Int("speaking_score", outcome.Breakdown.Speaking).
					Msg("Speaking score out of range, clamped")
			}

			now := s.now()
			rec := &model.ExamResult{
				ID:         uuid.New(),
				AttemptID:  pointer.AttemptID,
				ExamineeID: examineeID,
				Breakdown:  outcome.Breakdown,
				Total:      outcome.Total,
				Band:       string(outcome.Band),
			}
			if err := tx.CreateResult(ctx, rec); err != nil {
				return fmt.Errorf("create result: %w", err)
			}
			if err := tx.MarkSubmitted(ctx, pointer.AttemptID, snapshot, now); err != nil {
				return fmt.Errorf("mark submitted: %w", err)
			}
			if err := tx.DeleteActivePointer(ctx, examineeID); err != nil {
				return fmt.Errorf("delete active pointer: %w", err)
			}

			result = &model.ScoreResult{
				AttemptID: pointer.AttemptID,
				Total:     outcome.Total,
				Band:      string(outcome.Band),
				Breakdown: outcome.Breakdown,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.AttemptTransitions.WithLabelValues(string(model.AttemptStatusSubmitted)).Inc()
	metrics.BandsAwarded.WithLabelValues(result.Band).Inc()
	s.log.Info().
		Str("examinee_id", examineeID).
		Str("attempt_id", result.AttemptID.String()).
		Int("total", result.Total).
		Str("band", result.Band).
		Msg("Attempt submitted")

	return result, nil
}

// ActiveAttempt returns the examinee's IN_PROGRESS attempt id.
func (s *AttemptService) ActiveAttempt(ctx context.Context, examineeID string) (uuid.UUID, error) {
	p, err := s.store.GetActivePointer(ctx, examineeID)
	if errors.Is(err, repository.ErrNotFound) {
		return uuid.Nil, ErrNoActiveAttempt
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("load active pointer: %w", err)
	}
	return p.AttemptID, nil
}

// ListAttempts returns one page of an examinee's attempts, newest first.
func (s *AttemptService) ListAttempts(ctx context.Context, examineeID string, page, perPage int) ([]model.Attempt, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	attempts, total, err := s.store.ListAttempts(ctx, examineeID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, response.NewPagination(page, perPage, total), nil
}

// ListResults returns an examinee's results, newest first.
func (s *AttemptService) ListResults(ctx context.Context, examineeID string) ([]model.ExamResult, error) {
	results, err := s.store.ListResults(ctx, examineeID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}

// History returns an examinee's results with summary stats.
func (s *AttemptService) History(ctx context.Context, examineeID string) (*model.ResultHistory, error) {
	results, err := s.ListResults(ctx, examineeID)
	if err != nil {
		return nil, err
	}
	return &model.ResultHistory{
		Stats:   SummarizeResults(results),
		Results: results,
	}, nil
}

// SummarizeResults computes exam count, floored mean total and the most
// recent result time. results must be ordered newest first.
func SummarizeResults(results []model.ExamResult) model.ResultStats {
	stats := model.ResultStats{TotalExams: len(results)}
	if len(results) == 0 {
		return stats
	}
	sum := 0
	for _, r := range results {
		sum += r.Total
	}
	stats.AverageScore = sum / len(results)
	last := results[0].CreatedAt
	stats.LastExamAt = &last
	return stats
}

// retryOnConflict replays fn when it fails with a uniqueness violation, which
// happens only when another writer slipped past the per-examinee lock.
func (s *AttemptService) retryOnConflict(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxLifecycleRetries; attempt++ {
		err = fn()
		if !errors.Is(err, repository.ErrDuplicate) {
			if attempt > 0 && err == nil {
				metrics.AttemptConflicts.WithLabelValues(op, "recovered").Inc()
			}
			return err
		}
		s.log.Warn().
			Str("operation", op).
			Int("attempt", attempt+1).
			Err(err).
			Msg("Lifecycle transaction conflicted, retrying")
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	metrics.AttemptConflicts.WithLabelValues(op, "surfaced").Inc()
	return fmt.Errorf("%w: %v", ErrAttemptConflict, err)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/proficiency-backend/internal/metrics"
	"github.com/stemsi/proficiency-backend/internal/model"
	"github.com/stemsi/proficiency-backend/internal/response"
)

// Cheating event listing window.
const (
	defaultEventTake = 200
	maxEventTake     = 500
	maxDetailsBytes  = 4096
)

// CheatingEventStore persists and lists integrity events.
type CheatingEventStore interface {
	Insert(ctx context.Context, e *model.CheatingEvent) error
	ListByExaminee(ctx context.Context, examineeID string, take, skip int) ([]model.CheatingEventWithAttempt, error)
}

// CheatQueue hands events to the batching persistence worker.
type CheatQueue interface {
	Enqueue(ctx context.Context, e *model.CheatingEvent) error
}

// ActiveAttemptLookup resolves an examinee's IN_PROGRESS attempt.
type ActiveAttemptLookup interface {
	ActiveAttempt(ctx context.Context, examineeID string) (uuid.UUID, error)
}

// IntegrityService records and lists cheating events. Writes go through the
// queue when one is configured and fall back to a direct insert, so an
// event is never silently dropped.
type IntegrityService struct {
	store    CheatingEventStore
	queue    CheatQueue
	attempts ActiveAttemptLookup
	log      zerolog.Logger
	now      func() time.Time
}

// NewIntegrityService creates a new IntegrityService. queue may be nil.
func NewIntegrityService(store CheatingEventStore, queue CheatQueue, attempts ActiveAttemptLookup, log zerolog.Logger) *IntegrityService {
	return &IntegrityService{
		store:    store,
		queue:    queue,
		attempts: attempts,
		log:      log.With().Str("component", "integrity_service").Logger(),
		now:      time.Now,
	}
}

// Record stores an event against attemptID.
func (s *IntegrityService) Record(ctx context.Context, attemptID uuid.UUID, examineeID, eventType string, details any) (*model.CheatingEvent, error) {
	raw, err := encodeDetails(details)
	if err != nil {
		return nil, err
	}

	e := &model.CheatingEvent{
		ID:         uuid.New(),
		AttemptID:  attemptID,
		ExamineeID: examineeID,
		Type:       eventType,
		Details:    raw,
		CreatedAt:  s.now().UTC(),
	}

	path := "direct"
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, e); err == nil {
			path = "queued"
		} else {
			s.log.Warn().Err(err).
				Str("attempt_id", attemptID.String()).
				Str("type", eventType).
				Msg("Cheat queue unavailable, writing directly")
		}
	}
	if path == "direct" {
		if err := s.store.Insert(ctx, e); err != nil {
			return nil, fmt.Errorf("insert cheating event: %w", err)
		}
	}

	metrics.CheatingEvents.WithLabelValues(eventType, path).Inc()
	s.log.Info().
		Str("examinee_id", examineeID).
		Str("attempt_id", attemptID.String()).
		Str("type", eventType).
		Str("path", path).
		Msg("Cheating event recorded")
	return e, nil
}

// Report records an event raised by the examinee's own client against the
// active attempt.
func (s *IntegrityService) Report(ctx context.Context, examineeID string, req model.ReportCheatRequest) (*model.CheatingEvent, error) {
	return s.report(ctx, examineeID, uuid.Nil, req)
}

// ReportOn records a client event only while attemptID is still the
// examinee's active attempt. Otherwise it returns ErrAttemptReplaced and
// records nothing.
func (s *IntegrityService) ReportOn(ctx context.Context, examineeID string, attemptID uuid.UUID, req model.ReportCheatRequest) (*model.CheatingEvent, error) {
	return s.report(ctx, examineeID, attemptID, req)
}

// report resolves the active attempt; a non-nil expect must match it.
func (s *IntegrityService) report(ctx context.Context, examineeID string, expect uuid.UUID, req model.ReportCheatRequest) (*model.CheatingEvent, error) {
	if !model.ClientReportableCheatTypes[req.Type] {
		return nil, ErrInvalidEventType
	}
	attemptID, err := s.attempts.ActiveAttempt(ctx, examineeID)
	if err != nil {
		return nil, err
	}
	if expect != uuid.Nil && attemptID != expect {
		return nil, ErrAttemptReplaced
	}
	var details any
	if len(req.Details) > 0 {
		details = req.Details
	}
	return s.Record(ctx, attemptID, examineeID, req.Type, details)
}

// List returns an examinee's events newest first. take defaults to 200 and
// is clamped to [1, 500].
func (s *IntegrityService) List(ctx context.Context, examineeID string, take, skip int) ([]model.CheatingEventWithAttempt, *response.Window, error) {
	take, skip = ClampWindow(take, skip, defaultEventTake, maxEventTake)
	events, err := s.store.ListByExaminee(ctx, examineeID, take, skip)
	if err != nil {
		return nil, nil, fmt.Errorf("list cheating events: %w", err)
	}
	return events, &response.Window{Take: take, Skip: skip, Count: len(events)}, nil
}

func encodeDetails(details any) (json.RawMessage, error) {
	var raw json.RawMessage
	switch d := details.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		raw = d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEventDetails, err)
		}
		raw = b
	}
	if len(raw) > maxDetailsBytes || !json.Valid(raw) {
		return nil, ErrInvalidEventDetails
	}
	return raw, nil
}

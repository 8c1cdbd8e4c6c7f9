package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/proficiency-backend/internal/metrics"
	"github.com/stemsi/proficiency-backend/internal/model"
	"github.com/stemsi/proficiency-backend/internal/presence"
)

// ConflictRecorder stores the multiple_sessions event raised by a presence conflict.
type ConflictRecorder interface {
	Record(ctx context.Context, attemptID uuid.UUID, examineeID, eventType string, details any) (*model.CheatingEvent, error)
}

// PresenceService binds presence signals to the examinee's active attempt.
// Tracker failures degrade to "no conflict": presence is a detection signal
// only.
type PresenceService struct {
	tracker  presence.Tracker
	attempts ActiveAttemptLookup
	recorder ConflictRecorder
	log      zerolog.Logger
}

// NewPresenceService creates a new PresenceService.
func NewPresenceService(tracker presence.Tracker, attempts ActiveAttemptLookup, recorder ConflictRecorder, log zerolog.Logger) *PresenceService {
	return &PresenceService{
		tracker:  tracker,
		attempts: attempts,
		recorder: recorder,
		log:      log.With().Str("component", "presence_service").Logger(),
	}
}

// Start registers a session on the examinee's active attempt.
func (s *PresenceService) Start(ctx context.Context, examineeID, sessionID string) (*model.PresenceResponse, uuid.UUID, error) {
	return s.signal(ctx, examineeID, sessionID, uuid.Nil, s.tracker.Start)
}

// Ping refreshes a session on the examinee's active attempt.
func (s *PresenceService) Ping(ctx context.Context, examineeID, sessionID string) (*model.PresenceResponse, uuid.UUID, error) {
	return s.signal(ctx, examineeID, sessionID, uuid.Nil, s.tracker.Ping)
}

// PingAttempt refreshes a session bound to attemptID. Once the examinee has
// a different active attempt it returns ErrAttemptReplaced without touching
// the tracker, so a stale stream never registers on the new attempt.
func (s *PresenceService) PingAttempt(ctx context.Context, examineeID string, attemptID uuid.UUID, sessionID string) (*model.PresenceResponse, error) {
	res, _, err := s.signal(ctx, examineeID, sessionID, attemptID, s.tracker.Ping)
	return res, err
}

// Stop removes a session from the examinee's active attempt.
func (s *PresenceService) Stop(ctx context.Context, examineeID, sessionID string) (*model.PresenceResponse, error) {
	if !model.ValidSessionID(sessionID) {
		return nil, ErrInvalidSession
	}
	attemptID, err := s.attempts.ActiveAttempt(ctx, examineeID)
	if err != nil {
		return nil, err
	}
	s.Release(ctx, attemptID, sessionID)
	return &model.PresenceResponse{Conflict: false}, nil
}

// Release removes a session from a known attempt, whether or not it is
// still active. Used when a presence stream disconnects.
func (s *PresenceService) Release(ctx context.Context, attemptID uuid.UUID, sessionID string) {
	if err := s.tracker.Stop(ctx, attemptID.String(), sessionID); err != nil {
		s.log.Warn().Err(err).
			Str("attempt_id", attemptID.String()).
			Msg("Presence stop failed")
	}
}

type trackerSignal func(ctx context.Context, attemptID, sessionID string) (presence.Observation, error)

// signal resolves the active attempt; a non-nil expect must match it.
func (s *PresenceService) signal(ctx context.Context, examineeID, sessionID string, expect uuid.UUID, fn trackerSignal) (*model.PresenceResponse, uuid.UUID, error) {
	if !model.ValidSessionID(sessionID) {
		return nil, uuid.Nil, ErrInvalidSession
	}
	attemptID, err := s.attempts.ActiveAttempt(ctx, examineeID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if expect != uuid.Nil && attemptID != expect {
		return nil, attemptID, ErrAttemptReplaced
	}

	obs, err := fn(ctx, attemptID.String(), sessionID)
	if err != nil {
		s.log.Warn().Err(err).
			Str("attempt_id", attemptID.String()).
			Msg("Presence tracker unavailable")
		return &model.PresenceResponse{Conflict: false}, attemptID, nil
	}

	if obs.Conflict {
		metrics.PresenceConflicts.Inc()
	}
	if obs.LogConflict {
		details := map[string]any{
			"session_id":    sessionID,
			"live_sessions": obs.LiveSessions,
		}
		if _, err := s.recorder.Record(ctx, attemptID, examineeID, model.CheatMultipleSessions, details); err != nil {
			s.log.Error().Err(err).
				Str("attempt_id", attemptID.String()).
				Msg("Failed to record multiple_sessions event")
		}
	}

	return &model.PresenceResponse{Conflict: obs.Conflict}, attemptID, nil
}

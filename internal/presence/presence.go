// Package presence detects an attempt being worked on from more than one
// browser session at once. It is a best-effort signal for reviewers and is
// never consulted for grading or attempt status.
package presence

import (
	"context"
	"time"
)

// Defaults applied when Settings leaves a field zero.
const (
	DefaultTTL      = 2 * time.Minute
	DefaultThrottle = 30 * time.Second
)

// Observation is what a Start or Ping saw after recording the session.
type Observation struct {
	// Conflict is true when another session of the same attempt is live.
	Conflict bool
	// LogConflict is true when the caller should record a multiple_sessions
	// event. It is throttled per session.
	LogConflict bool
	// LiveSessions counts live sessions for the attempt, this one included.
	LiveSessions int
}

// Tracker records session liveness per attempt.
type Tracker interface {
	Start(ctx context.Context, attemptID, sessionID string) (Observation, error)
	Ping(ctx context.Context, attemptID, sessionID string) (Observation, error)
	Stop(ctx context.Context, attemptID, sessionID string) error
	Expire(ctx context.Context, attemptID string) error
}

// Settings configures a tracker. Clock is injectable for tests.
type Settings struct {
	TTL      time.Duration
	Throttle time.Duration
	Clock    func() time.Time
}

func (s Settings) withDefaults() Settings {
	if s.TTL <= 0 {
		s.TTL = DefaultTTL
	}
	if s.Throttle <= 0 {
		s.Throttle = DefaultThrottle
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	return s
}

// Expired reports whether a session last seen at lastSeen is past ttl at now.
func Expired(now, lastSeen time.Time, ttl time.Duration) bool {
	return now.Sub(lastSeen) > ttl
}

// ShouldLogConflict reports whether a conflict may be logged again for a
// session whose previous conflict was logged at lastLogged.
func ShouldLogConflict(now, lastLogged time.Time, throttle time.Duration) bool {
	return lastLogged.IsZero() || now.Sub(lastLogged) >= throttle
}

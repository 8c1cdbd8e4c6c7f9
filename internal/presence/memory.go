package presence

import (
	"context"
	"sync"
	"time"
)

type sessionEntry struct {
	lastSeen           time.Time
	lastConflictLogged time.Time
}

// MemoryTracker keeps presence in a process-local map guarded by a mutex.
// Suitable for a single API instance.
type MemoryTracker struct {
	mu       sync.Mutex
	attempts map[string]map[string]*sessionEntry
	settings Settings
}

// NewMemoryTracker creates an empty in-process tracker.
func NewMemoryTracker(settings Settings) *MemoryTracker {
	return &MemoryTracker{
		attempts: make(map[string]map[string]*sessionEntry),
		settings: settings.withDefaults(),
	}
}

// Start records the first signal of a session.
func (t *MemoryTracker) Start(ctx context.Context, attemptID, sessionID string) (Observation, error) {
	return t.touch(attemptID, sessionID), nil
}

// Ping refreshes a session's liveness.
func (t *MemoryTracker) Ping(ctx context.Context, attemptID, sessionID string) (Observation, error) {
	return t.touch(attemptID, sessionID), nil
}

// Stop removes a session and discards the attempt once no session remains.
func (t *MemoryTracker) Stop(ctx context.Context, attemptID, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sessions, ok := t.attempts[attemptID]
	if !ok {
		return nil
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(t.attempts, attemptID)
	}
	return nil
}

// Expire purges sessions past the TTL without touching any.
func (t *MemoryTracker) Expire(ctx context.Context, attemptID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.purgeLocked(attemptID, t.settings.Clock())
	return nil
}

// Sweep purges expired sessions of every attempt. Abandoned tabs that never
// send stop would otherwise stay in the map until their attempt is touched.
func (t *MemoryTracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.settings.Clock()
	for attemptID := range t.attempts {
		t.purgeLocked(attemptID, now)
	}
	return len(t.attempts)
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (t *MemoryTracker) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// Sessions returns the number of tracked sessions for an attempt.
func (t *MemoryTracker) Sessions(attemptID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.attempts[attemptID])
}

// Attempts returns the number of attempts with at least one tracked session.
func (t *MemoryTracker) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.attempts)
}

func (t *MemoryTracker) touch(attemptID, sessionID string) Observation {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.settings.Clock()
	t.purgeLocked(attemptID, now)

	sessions, ok := t.attempts[attemptID]
	if !ok {
		sessions = make(map[string]*sessionEntry)
		t.attempts[attemptID] = sessions
	}
	self, ok := sessions[sessionID]
	if !ok {
		self = &sessionEntry{}
		sessions[sessionID] = self
	}
	self.lastSeen = now

	obs := Observation{
		Conflict:     len(sessions) > 1,
		LiveSessions: len(sessions),
	}
	if obs.Conflict && ShouldLogConflict(now, self.lastConflictLogged, t.settings.Throttle) {
		self.lastConflictLogged = now
		obs.LogConflict = true
	}
	return obs
}

// purgeLocked drops expired sessions. Caller holds t.mu.
func (t *MemoryTracker) purgeLocked(attemptID string, now time.Time) {
	sessions, ok := t.attempts[attemptID]
	if !ok {
		return
	}
	for id, e := range sessions {
		if Expired(now, e.lastSeen, t.settings.TTL) {
			delete(sessions, id)
		}
	}
	if len(sessions) == 0 {
		delete(t.attempts, attemptID)
	}
}

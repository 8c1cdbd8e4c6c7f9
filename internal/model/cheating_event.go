package model

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Cheating event types.
const (
	CheatMultipleSessions = "multiple_sessions"
	CheatTabSwitch        = "tab_switch"
	CheatWindowBlur       = "window_blur"
	CheatCopyPaste        = "copy_paste"
	CheatFullscreenExit   = "fullscreen_exit"
)

// ClientReportableCheatTypes are the types an examinee client may report itself.
// multiple_sessions is only ever raised by the presence tracker.
var ClientReportableCheatTypes = map[string]bool{
	CheatTabSwitch:      true,
	CheatWindowBlur:     true,
	CheatCopyPaste:      true,
	CheatFullscreenExit: true,
}

// CheatingEvent is an append-only integrity record tied to an attempt.
type CheatingEvent struct {
	ID         uuid.UUID       `json:"id"`
	AttemptID  uuid.UUID       `json:"attempt_id"`
	ExamineeID string          `json:"examinee_id"`
	Type       string          `json:"type"`
	Details    json.RawMessage `json:"details"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CheatingEventWithAttempt is a listing row for reviewers.
type CheatingEventWithAttempt struct {
	CheatingEvent
	Attempt AttemptSummary `json:"attempt"`
}

// ReportCheatRequest is an integrity event reported by the examinee client.
type ReportCheatRequest struct {
	Type    string          `json:"type" binding:"required,oneof=tab_switch window_blur copy_paste fullscreen_exit"`
	Details json.RawMessage `json:"details"`
}

// PresenceRequest identifies the browser session sending a presence signal.
type PresenceRequest struct {
	SessionID string `json:"session_id" binding:"required,session_id"`
}

// PresenceResponse tells the client whether another session is live.
type PresenceResponse struct {
	Conflict bool `json:"conflict"`
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// ValidSessionID reports whether id is an acceptable browser session id.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

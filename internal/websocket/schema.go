package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing   Action = "ping"
	ActionReport Action = "report"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ReportRequest carries a client-detected integrity event.
type ReportRequest struct {
	Action  Action          `json:"action"`
	Type    string          `json:"type"`
	Details json.RawMessage `json:"details,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventPresence Event = "presence"
	EventReported Event = "reported"
	EventClosed   Event = "closed"
)

// PresenceEvent answers a connect or ping with the conflict flag.
type PresenceEvent struct {
	Event    Event `json:"event"`
	Conflict bool  `json:"conflict"`
}

// ReportedEvent acknowledges a stored integrity event.
type ReportedEvent struct {
	Event   Event  `json:"event"`
	EventID string `json:"event_id"`
}

// ClosedEvent is sent when the attempt stops being active, e.g. after submit
// or a regenerate in another tab.
type ClosedEvent struct {
	Event  Event  `json:"event"`
	Reason string `json:"reason"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

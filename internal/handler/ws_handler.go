package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/proficiency-backend/internal/middleware"
	"github.com/stemsi/proficiency-backend/internal/model"
	"github.com/stemsi/proficiency-backend/internal/response"
	"github.com/stemsi/proficiency-backend/internal/service"
	ws "github.com/stemsi/proficiency-backend/internal/websocket"
)

const releaseTimeout = 3 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// StreamPresence is the presence service as used by a stream bound to one attempt.
type StreamPresence interface {
	Start(ctx context.Context, examineeID, sessionID string) (*model.PresenceResponse, uuid.UUID, error)
	PingAttempt(ctx context.Context, examineeID string, attemptID uuid.UUID, sessionID string) (*model.PresenceResponse, error)
	Release(ctx context.Context, attemptID uuid.UUID, sessionID string)
}

// StreamReporter records client reports against the stream's own attempt.
type StreamReporter interface {
	ReportOn(ctx context.Context, examineeID string, attemptID uuid.UUID, req model.ReportCheatRequest) (*model.CheatingEvent, error)
}

// WSHandler serves the presence stream: one socket per browser session,
// pinging presence and relaying client integrity reports.
type WSHandler struct {
	presence  StreamPresence
	integrity StreamReporter
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(presence StreamPresence, integrity StreamReporter, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		presence:  presence,
		integrity: integrity,
		log:       log.With().Str("component", "ws_handler").Logger(),
		upgrader:  buildUpgrader(allowedOrigins),
	}
}

// PresenceStream godoc
// WS /ws/v1/examinee/presence?session_id=...&token=...
// The session is started before the upgrade so a missing attempt is a
// plain HTTP 409. Closing the socket stops the session.
func (h *WSHandler) PresenceStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examineeID := claims.Subject
	sessionID := c.Query("session_id")

	first, attemptID, err := h.presence.Start(c.Request.Context(), examineeID, sessionID)
	if err != nil {
		failService(c, h.log, err, "Presence start failed")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		h.release(attemptID, sessionID)
		return
	}
	defer conn.Close()
	defer h.release(attemptID, sessionID)
	ws.Configure(conn)

	wsLog := h.log.With().
		Str("examinee_id", examineeID).
		Str("attempt_id", attemptID.String()).
		Logger()

	wsLog.Info().Msg("Presence stream connected")
	if err := ws.WriteTyped(conn, ws.PresenceEvent{Event: ws.EventPresence, Conflict: first.Conflict}); err != nil {
		return
	}

	for {
		action, raw, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var keepOpen bool
		switch action {
		case ws.ActionPing:
			keepOpen = h.handlePing(conn, wsLog, examineeID, sessionID, attemptID)
		case ws.ActionReport:
			keepOpen = h.handleReport(conn, wsLog, examineeID, attemptID, raw)
		default:
			wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
			keepOpen = ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(action)) == nil
		}
		if !keepOpen {
			return
		}
	}
}

// handlePing refreshes the session. The stream ends once the attempt it
// was opened for is no longer the active one.
func (h *WSHandler) handlePing(conn *websocket.Conn, wsLog zerolog.Logger, examineeID, sessionID string, attemptID uuid.UUID) bool {
	res, err := h.presence.PingAttempt(context.Background(), examineeID, attemptID, sessionID)
	if ended, reason := streamEnded(err); ended {
		h.closeStream(conn, reason)
		return false
	}
	if err != nil {
		wsLog.Error().Err(err).Msg("Presence ping failed")
		return ws.WriteError(conn, string(response.ErrInternal), "presence unavailable") == nil
	}
	return ws.WriteTyped(conn, ws.PresenceEvent{Event: ws.EventPresence, Conflict: res.Conflict}) == nil
}

func (h *WSHandler) handleReport(conn *websocket.Conn, wsLog zerolog.Logger, examineeID string, attemptID uuid.UUID, raw []byte) bool {
	var msg ws.ReportRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ws.WriteError(conn, string(response.ErrInvalidPayload), "malformed report") == nil
	}

	event, err := h.integrity.ReportOn(context.Background(), examineeID, attemptID, model.ReportCheatRequest{
		Type:    msg.Type,
		Details: msg.Details,
	})
	if ended, reason := streamEnded(err); ended {
		h.closeStream(conn, reason)
		return false
	}
	if err != nil {
		_, code := classify(err)
		if code == response.ErrInternal {
			wsLog.Error().Err(err).Msg("Integrity report failed")
		}
		return ws.WriteError(conn, string(code), response.GetMessage(code)) == nil
	}
	return ws.WriteTyped(conn, ws.ReportedEvent{Event: ws.EventReported, EventID: event.ID.String()}) == nil
}

// streamEnded reports whether err means the stream's attempt is over, and why.
func streamEnded(err error) (bool, string) {
	switch {
	case errors.Is(err, service.ErrNoActiveAttempt):
		return true, "attempt_closed"
	case errors.Is(err, service.ErrAttemptReplaced):
		return true, "attempt_replaced"
	}
	return false, ""
}

func (h *WSHandler) closeStream(conn *websocket.Conn, reason string) {
	_ = ws.WriteTyped(conn, ws.ClosedEvent{Event: ws.EventClosed, Reason: reason})
	ws.CloseNormal(conn, reason)
}

func (h *WSHandler) release(attemptID uuid.UUID, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	h.presence.Release(ctx, attemptID, sessionID)
}

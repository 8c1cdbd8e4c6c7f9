package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/proficiency-backend/internal/middleware"
	"github.com/stemsi/proficiency-backend/internal/model"
	"github.com/stemsi/proficiency-backend/internal/response"
	"github.com/stemsi/proficiency-backend/internal/validator"
)

// PresenceSignaller is the presence service as seen by transport handlers.
type PresenceSignaller interface {
	Start(ctx context.Context, examineeID, sessionID string) (*model.PresenceResponse, uuid.UUID, error)
	Ping(ctx context.Context, examineeID, sessionID string) (*model.PresenceResponse, uuid.UUID, error)
	Stop(ctx context.Context, examineeID, sessionID string) (*model.PresenceResponse, error)
	Release(ctx context.Context, attemptID uuid.UUID, sessionID string)
}

// PresenceHandler handles the HTTP presence heartbeat.
type PresenceHandler struct {
	presence PresenceSignaller
	log      zerolog.Logger
}

// NewPresenceHandler creates a new PresenceHandler.
func NewPresenceHandler(presence PresenceSignaller, log zerolog.Logger) *PresenceHandler {
	return &PresenceHandler{
		presence: presence,
		log:      log.With().Str("component", "presence_handler").Logger(),
	}
}

// Start godoc
// POST /api/v1/examinee/presence/start
func (h *PresenceHandler) Start(c *gin.Context) {
	h.handle(c, func(ctx context.Context, examineeID, sessionID string) (*model.PresenceResponse, error) {
		res, _, err := h.presence.Start(ctx, examineeID, sessionID)
		return res, err
	})
}

// Ping godoc
// POST /api/v1/examinee/presence/ping
func (h *PresenceHandler) Ping(c *gin.Context) {
	h.handle(c, func(ctx context.Context, examineeID, sessionID string) (*model.PresenceResponse, error) {
		res, _, err := h.presence.Ping(ctx, examineeID, sessionID)
		return res, err
	})
}

// Stop godoc
// POST /api/v1/examinee/presence/stop
func (h *PresenceHandler) Stop(c *gin.Context) {
	h.handle(c, h.presence.Stop)
}

func (h *PresenceHandler) handle(c *gin.Context, fn func(ctx context.Context, examineeID, sessionID string) (*model.PresenceResponse, error)) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.PresenceRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := fn(c.Request.Context(), claims.Subject, req.SessionID)
	if err != nil {
		failService(c, h.log, err, "Presence signal failed")
		return
	}

	response.Success(c, http.StatusOK, res)
}

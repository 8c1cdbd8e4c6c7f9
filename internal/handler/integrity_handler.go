package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/proficiency-backend/internal/middleware"
	"github.com/stemsi/proficiency-backend/internal/model"
	"github.com/stemsi/proficiency-backend/internal/response"
	"github.com/stemsi/proficiency-backend/internal/validator"
)

// IntegrityReporter records client-detected integrity events.
type IntegrityReporter interface {
	Report(ctx context.Context, examineeID string, req model.ReportCheatRequest) (*model.CheatingEvent, error)
}

// IntegrityHandler accepts integrity events from the examinee client.
type IntegrityHandler struct {
	integrity IntegrityReporter
	log       zerolog.Logger
}

// NewIntegrityHandler creates a new IntegrityHandler.
func NewIntegrityHandler(integrity IntegrityReporter, log zerolog.Logger) *IntegrityHandler {
	return &IntegrityHandler{
		integrity: integrity,
		log:       log.With().Str("component", "integrity_handler").Logger(),
	}
}

// ReportEvent godoc
// POST /api/v1/examinee/integrity-events
// Records tab_switch, window_blur, copy_paste or fullscreen_exit against the
// active attempt.
func (h *IntegrityHandler) ReportEvent(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.ReportCheatRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	event, err := h.integrity.Report(c.Request.Context(), claims.Subject, req)
	if err != nil {
		failService(c, h.log, err, "Report integrity event failed")
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"event": event})
}

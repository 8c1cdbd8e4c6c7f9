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

// AttemptLifecycle is the examinee-facing side of the attempt service.
type AttemptLifecycle interface {
	Generate(ctx context.Context, examineeID string) (*model.ExamPayload, error)
	Submit(ctx context.Context, examineeID string, req model.SubmitAttemptRequest) (*model.ScoreResult, error)
	History(ctx context.Context, examineeID string) (*model.ResultHistory, error)
}

// ExamHandler handles exam generation, submission and result history.
type ExamHandler struct {
	attempts AttemptLifecycle
	log      zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(attempts AttemptLifecycle, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		attempts: attempts,
		log:      log.With().Str("component", "exam_handler").Logger(),
	}
}

// GenerateAttempt godoc
// POST /api/v1/examinee/attempts
// Assembles a new exam. Any attempt still in progress is abandoned.
// The payload carries no answer key.
func (h *ExamHandler) GenerateAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	payload, err := h.attempts.Generate(c.Request.Context(), claims.Subject)
	if err != nil {
		failService(c, h.log, err, "Generate attempt failed")
		return
	}

	response.Success(c, http.StatusCreated, payload)
}

// SubmitAttempt godoc
// POST /api/v1/examinee/attempts/submit
// Grades the active attempt against the server-held key.
func (h *ExamHandler) SubmitAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attempts.Submit(c.Request.Context(), claims.Subject, req)
	if err != nil {
		failService(c, h.log, err, "Submit attempt failed")
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetMyResults godoc
// GET /api/v1/examinee/results
// Returns the caller's graded results, newest first, with summary stats.
func (h *ExamHandler) GetMyResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	history, err := h.attempts.History(c.Request.Context(), claims.Subject)
	if err != nil {
		failService(c, h.log, err, "Load result history failed")
		return
	}

	response.Success(c, http.StatusOK, history)
}

package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/proficiency-backend/internal/model"
	"github.com/stemsi/proficiency-backend/internal/response"
	"github.com/stemsi/proficiency-backend/internal/validator"
)

// MCQManager manages the grammar MCQ bank.
type MCQManager interface {
	ListMCQ(ctx context.Context, take, skip int) ([]model.MCQItem, *response.Window, error)
	CreateMCQ(ctx context.Context, req model.CreateMCQRequest) (*model.MCQItem, error)
	DeleteMCQ(ctx context.Context, id int64) error
}

// ContentHandler lets reviewers curate the MCQ bank.
type ContentHandler struct {
	content MCQManager
	log     zerolog.Logger
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(content MCQManager, log zerolog.Logger) *ContentHandler {
	return &ContentHandler{
		content: content,
		log:     log.With().Str("component", "content_handler").Logger(),
	}
}

// ListMCQ godoc
// GET /api/v1/reviewer/content/mcq?take=&skip=
func (h *ContentHandler) ListMCQ(c *gin.Context) {
	take, _ := strconv.Atoi(c.Query("take"))
	skip, _ := strconv.Atoi(c.Query("skip"))

	items, window, err := h.content.ListMCQ(c.Request.Context(), take, skip)
	if err != nil {
		failService(c, h.log, err, "List MCQ items failed")
		return
	}
	if items == nil {
		items = []model.MCQItem{}
	}

	response.SuccessWithWindow(c, http.StatusOK, items, window)
}

// CreateMCQ godoc
// POST /api/v1/reviewer/content/mcq
func (h *ContentHandler) CreateMCQ(c *gin.Context) {
	var req model.CreateMCQRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	item, err := h.content.CreateMCQ(c.Request.Context(), req)
	if err != nil {
		failService(c, h.log, err, "Create MCQ item failed")
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"item": item})
}

// DeleteMCQ godoc
// DELETE /api/v1/reviewer/content/mcq/:id
func (h *ContentHandler) DeleteMCQ(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.content.DeleteMCQ(c.Request.Context(), id); err != nil {
		failService(c, h.log, err, "Delete MCQ item failed")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}

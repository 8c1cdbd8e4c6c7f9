package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/proficiency-backend/internal/config"
	"github.com/stemsi/proficiency-backend/internal/model"
	"github.com/stemsi/proficiency-backend/internal/response"
)

const (
	keepAliveInterval = 30 * time.Second
	maxExamineeIDLen  = 128
)

// EventLister lists integrity events for reviewers.
type EventLister interface {
	List(ctx context.Context, examineeID string, take, skip int) ([]model.CheatingEventWithAttempt, *response.Window, error)
}

// AttemptBrowser exposes an examinee's attempts and results to reviewers.
type AttemptBrowser interface {
	ListAttempts(ctx context.Context, examineeID string, page, perPage int) ([]model.Attempt, *response.Pagination, error)
	History(ctx context.Context, examineeID string) (*model.ResultHistory, error)
}

// Subscriber opens a Redis Pub/Sub subscription.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// ReviewerHandler serves the read-only reviewer views and the live
// integrity stream.
type ReviewerHandler struct {
	events   EventLister
	attempts AttemptBrowser
	pubsub   Subscriber
	log      zerolog.Logger
}

// NewReviewerHandler creates a new ReviewerHandler. pubsub may be nil, in
// which case the live stream answers 501.
func NewReviewerHandler(events EventLister, attempts AttemptBrowser, pubsub Subscriber, log zerolog.Logger) *ReviewerHandler {
	return &ReviewerHandler{
		events:   events,
		attempts: attempts,
		pubsub:   pubsub,
		log:      log.With().Str("component", "reviewer_handler").Logger(),
	}
}

// ListCheatingEvents godoc
// GET /api/v1/reviewer/examinees/:examinee_id/cheating-events?take=&skip=
// Newest first. take defaults to 200 and is clamped to [1, 500].
func (h *ReviewerHandler) ListCheatingEvents(c *gin.Context) {
	examineeID, ok := examineeParam(c)
	if !ok {
		return
	}

	take, _ := strconv.Atoi(c.Query("take"))
	skip, _ := strconv.Atoi(c.Query("skip"))

	events, window, err := h.events.List(c.Request.Context(), examineeID, take, skip)
	if err != nil {
		failService(c, h.log, err, "List cheating events failed")
		return
	}
	if events == nil {
		events = []model.CheatingEventWithAttempt{}
	}

	response.SuccessWithWindow(c, http.StatusOK, events, window)
}

// ListAttempts godoc
// GET /api/v1/reviewer/examinees/:examinee_id/attempts?page=&per_page=
func (h *ReviewerHandler) ListAttempts(c *gin.Context) {
	examineeID, ok := examineeParam(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	attempts, pagination, err := h.attempts.ListAttempts(c.Request.Context(), examineeID, page, perPage)
	if err != nil {
		failService(c, h.log, err, "List attempts failed")
		return
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}

	response.SuccessWithPagination(c, http.StatusOK, attempts, pagination)
}

// ListResults godoc
// GET /api/v1/reviewer/examinees/:examinee_id/results
func (h *ReviewerHandler) ListResults(c *gin.Context) {
	examineeID, ok := examineeParam(c)
	if !ok {
		return
	}

	history, err := h.attempts.History(c.Request.Context(), examineeID)
	if err != nil {
		failService(c, h.log, err, "List results failed")
		return
	}

	response.Success(c, http.StatusOK, history)
}

// IntegrityStream godoc
// GET /api/v1/reviewer/integrity/stream?examinee_id=
// Server-Sent Events feed of cheating events as they are recorded. An
// optional examinee_id narrows the feed to one examinee.
func (h *ReviewerHandler) IntegrityStream(c *gin.Context) {
	if h.pubsub == nil {
		response.Fail(c, http.StatusNotImplemented, response.ErrStreamNotSupported)
		return
	}
	filter := c.Query("examinee_id")
	if len(filter) > maxExamineeIDLen {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	sub := h.pubsub.Subscribe(reqCtx, config.CacheKey.IntegrityChannel())
	defer sub.Close()
	ch := sub.Channel()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	h.log.Info().Str("examinee_id", filter).Msg("Reviewer attached to integrity stream")

	// Pre-allocate a reusable ping payload (never changes)
	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("examinee_id", filter).Msg("Reviewer detached from integrity stream")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			if filter != "" && !matchesExaminee(msg.Payload, filter) {
				continue
			}
			// Forward raw JSON directly, no re-encoding needed
			writeSSE(c, "cheating_event", []byte(msg.Payload))

		case <-keepAlive.C:
			writeSSE(c, "ping", pingPayload)
		}
	}
}

func writeSSE(c *gin.Context, event string, data []byte) {
	c.Writer.Write([]byte("event: " + event + "\n"))
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(data)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

func matchesExaminee(payload, examineeID string) bool {
	var head struct {
		ExamineeID string `json:"examinee_id"`
	}
	if err := json.Unmarshal([]byte(payload), &head); err != nil {
		return false
	}
	return head.ExamineeID == examineeID
}

func examineeParam(c *gin.Context) (string, bool) {
	id := c.Param("examinee_id")
	if id == "" || len(id) > maxExamineeIDLen {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", false
	}
	return id, true
}

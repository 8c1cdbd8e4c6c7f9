package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/proficiency-backend/internal/response"
	"github.com/stemsi/proficiency-backend/internal/service"
)

// serviceErrors maps domain errors to a status and code. Anything not listed
// is an internal error.
var serviceErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrNoActiveAttempt, http.StatusConflict, response.ErrNoActiveAttempt},
	{service.ErrAttemptConflict, http.StatusConflict, response.ErrAttemptConflict},
	{service.ErrAttemptReplaced, http.StatusConflict, response.ErrAttemptConflict},
	{service.ErrContentUnavailable, http.StatusServiceUnavailable, response.ErrContentUnavailable},
	{service.ErrInvalidSession, http.StatusBadRequest, response.ErrInvalidSession},
	{service.ErrInvalidEventType, http.StatusBadRequest, response.ErrInvalidEventType},
	{service.ErrInvalidEventDetails, http.StatusBadRequest, response.ErrInvalidPayload},
	{service.ErrInvalidContent, http.StatusBadRequest, response.ErrInvalidContentItem},
	{service.ErrContentNotFound, http.StatusNotFound, response.ErrNotFound},
}

// classify returns the HTTP status and code for a service error.
func classify(err error) (int, response.ErrCode) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failService writes the envelope for err. Internal errors are logged with
// the request ID; domain errors are expected and are not.
func failService(c *gin.Context, log zerolog.Logger, err error, msg string) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", response.RequestID(c)).
			Msg(msg)
	}
	response.Fail(c, status, code)
}

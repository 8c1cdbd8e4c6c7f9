package service

import "errors"

// Domain errors surfaced to handlers.
var (
	// ErrNoActiveAttempt means the examinee has no IN_PROGRESS attempt.
	ErrNoActiveAttempt = errors.New("no active attempt")
	// ErrAttemptReplaced means a caller bound to one attempt signalled after
	// the examinee moved on to another.
	ErrAttemptReplaced = errors.New("attempt no longer active")
	// ErrAttemptConflict means a concurrent lifecycle change won the race; retryable.
	ErrAttemptConflict = errors.New("attempt changed concurrently, retry")
	// ErrContentUnavailable means a required content pool is empty.
	ErrContentUnavailable = errors.New("content pool empty")
	// ErrInvalidSession means a presence session id failed validation.
	ErrInvalidSession = errors.New("invalid session id")
	// ErrInvalidEventType means a client reported an unsupported integrity event.
	ErrInvalidEventType = errors.New("unsupported integrity event type")
	// ErrInvalidContent means a content item failed validation.
	ErrInvalidContent = errors.New("invalid content item")
	// ErrContentNotFound means a content item does not exist.
	ErrContentNotFound = errors.New("content item not found")
)

// ErrInvalidEventDetails means integrity event details are not a JSON value of acceptable size.
var ErrInvalidEventDetails = errors.New("invalid integrity event details")

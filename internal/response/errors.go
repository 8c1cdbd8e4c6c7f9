package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrExamineeOnly      ErrCode = "EXAMINEE_ACCESS_ONLY"
	ErrReviewerOnly      ErrCode = "REVIEWER_ACCESS_ONLY"
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrNoActiveAttempt    ErrCode = "NO_ACTIVE_ATTEMPT"
	ErrAttemptConflict    ErrCode = "ATTEMPT_CONFLICT"
	ErrContentUnavailable ErrCode = "CONTENT_UNAVAILABLE"
	ErrInvalidSession     ErrCode = "INVALID_SESSION"
	ErrInvalidEventType   ErrCode = "INVALID_EVENT_TYPE"
	ErrInvalidContentItem ErrCode = "INVALID_CONTENT_ITEM"
	ErrStreamNotSupported ErrCode = "STREAM_NOT_SUPPORTED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An access token is required."
	case ErrTokenInvalid:
		return "The access token is invalid."
	case ErrTokenExpired:
		return "The access token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrExamineeOnly:
		return "This resource is restricted to examinees."
	case ErrReviewerOnly:
		return "This resource is restricted to reviewers."
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrNoActiveAttempt:
		return "There is no exam in progress. Start a new exam first."
	case ErrAttemptConflict:
		return "Another request changed this exam at the same time. Please retry."
	case ErrContentUnavailable:
		return "The exam cannot be assembled right now because content is missing."
	case ErrInvalidSession:
		return "The session identifier is invalid."
	case ErrInvalidEventType:
		return "Unsupported integrity event type."
	case ErrInvalidContentItem:
		return "The content item is invalid."
	case ErrStreamNotSupported:
		return "Streaming is not supported by this connection."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}

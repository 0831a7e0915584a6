package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired     ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid      ErrCode = "TOKEN_INVALID"
	ErrTokenExpired      ErrCode = "TOKEN_EXPIRED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Attempts ──────────────────────────────────────────────────────
	ErrExamUnavailable  ErrCode = "EXAM_UNAVAILABLE"
	ErrExamAlreadyTaken ErrCode = "EXAM_ALREADY_TAKEN"
	ErrInvalidQuestion  ErrCode = "INVALID_QUESTION"
	ErrInvalidOption    ErrCode = "INVALID_OPTION"
	ErrAttemptClosed    ErrCode = "ATTEMPT_CLOSED"
	ErrAttemptOpen      ErrCode = "ATTEMPT_OPEN"
	ErrAttemptForbidden ErrCode = "ATTEMPT_FORBIDDEN"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."

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

	// ─── Attempts ──────────────────────────────────────────────────────
	case ErrExamUnavailable:
		return "This exam is not currently available."
	case ErrExamAlreadyTaken:
		return "You have already taken this exam."
	case ErrInvalidQuestion:
		return "The question does not belong to this exam."
	case ErrInvalidOption:
		return "The option does not belong to this question."
	case ErrAttemptClosed:
		return "This attempt is closed and no longer accepts answers."
	case ErrAttemptOpen:
		return "This attempt is still in progress."
	case ErrAttemptForbidden:
		return "This attempt belongs to another student."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}

package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrStaffAccessOnly   ErrCode = "STAFF_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Attempt-specific ──────────────────────────────────────────────
	ErrAssignmentNotFound    ErrCode = "ASSIGNMENT_NOT_FOUND"
	ErrAssignmentUnavailable ErrCode = "ASSIGNMENT_UNAVAILABLE"
	ErrAttemptNotFound       ErrCode = "ATTEMPT_NOT_FOUND"
	ErrInvalidQuestionRef    ErrCode = "INVALID_QUESTION_REFERENCE"

	// ─── Infrastructure ────────────────────────────────────────────────
	ErrStorageUnavailable ErrCode = "STORAGE_UNAVAILABLE"
	ErrRateLimitExceeded  ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrStaffAccessOnly:
		return "This resource is restricted to staff."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."

	// ─── Attempt-specific ──────────────────────────────────────────────
	case ErrAssignmentNotFound:
		return "The assignment does not exist."
	case ErrAssignmentUnavailable:
		return "The assignment is closed and does not accept late work."
	case ErrAttemptNotFound:
		return "The attempt does not exist or is no longer active."
	case ErrInvalidQuestionRef:
		return "One or more answers reference a question that is not part of this assignment."

	// ─── Infrastructure ────────────────────────────────────────────────
	case ErrStorageUnavailable:
		return "Saving is temporarily unavailable. Please try again."
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}

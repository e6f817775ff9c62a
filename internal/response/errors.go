package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden       ErrCode = "FORBIDDEN"
	ErrAdminAccessOnly ErrCode = "ADMIN_ACCESS_ONLY"
	ErrNotOwner        ErrCode = "NOT_SESSION_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Quiz ──────────────────────────────────────────────────────────
	ErrInvalidOption       ErrCode = "INVALID_OPTION"
	ErrSessionTerminated   ErrCode = "SESSION_TERMINATED"
	ErrSessionNotSubmitted ErrCode = "SESSION_NOT_SUBMITTED"
	ErrNothingToRetest     ErrCode = "NOTHING_TO_RETEST"
	ErrQuestionOutOfRange  ErrCode = "QUESTION_OUT_OF_RANGE"
	ErrNoQuestions         ErrCode = "NO_QUESTIONS"
	ErrInvalidRetestMode   ErrCode = "INVALID_RETEST_MODE"
	ErrSessionBusy         ErrCode = "SESSION_BUSY"

	// ─── Import ────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"
	ErrInvalidSheet    ErrCode = "INVALID_SHEET"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal           ErrCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrCode = "SERVICE_UNAVAILABLE"
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

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You are not allowed to access this resource."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."
	case ErrNotOwner:
		return "This test session belongs to another user."

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
	case ErrConflict:
		return "Resource already exists."

	// ─── Quiz ──────────────────────────────────────────────────────────
	case ErrInvalidOption:
		return "Option must be one of A, B, C or D."
	case ErrSessionTerminated:
		return "This test has already been submitted."
	case ErrSessionNotSubmitted:
		return "This test has not been submitted yet."
	case ErrNothingToRetest:
		return "Nothing to retest: no questions match the selected mode."
	case ErrQuestionOutOfRange:
		return "Question number is out of range."
	case ErrNoQuestions:
		return "The question bank has no questions."
	case ErrInvalidRetestMode:
		return "Unknown retest mode."
	case ErrSessionBusy:
		return "The test session is being updated. Please retry."

	// ─── Import ────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "File upload is required."
	case ErrUnsupportedFile:
		return "Unsupported file type. Upload an .xlsx workbook."
	case ErrFileTooLarge:
		return "File size exceeds the limit."
	case ErrInvalidSheet:
		return "The worksheet is missing, or its columns or cells are invalid."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	case ErrServiceUnavailable:
		return "A backing service is unavailable."
	default:
		return "An unexpected error occurred."
	}
}

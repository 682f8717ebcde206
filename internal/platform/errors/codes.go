// Package errors provides structured error handling with transport mappings.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Input errors
	CodeValidationFailed Code = "VALIDATION_FAILED"
	CodeBreakTypeMissing Code = "BREAK_TYPE_MISSING"
	CodeImageMissing     Code = "IMAGE_MISSING"

	// Session errors
	CodeSessionConflict      Code = "SESSION_CONFLICT"
	CodeNoActiveStudySession Code = "NO_ACTIVE_STUDY_SESSION"

	// Quota errors
	CodeTrialExpired       Code = "TRIAL_EXPIRED"
	CodeDailyLimitExceeded Code = "DAILY_LIMIT_EXCEEDED"

	// Storage errors
	CodeNotFound          Code = "NOT_FOUND"
	CodePersistenceFailed Code = "PERSISTENCE_FAILED"

	// Upstream errors
	CodeAnalysisFailed Code = "ANALYSIS_FAILED"

	// Identity errors
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodePermissionDenied Code = "PERMISSION_DENIED"
)

// HTTPStatus maps the error code to the HTTP status surfaced to callers.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidationFailed,
		CodeBreakTypeMissing,
		CodeImageMissing,
		CodeNoActiveStudySession,
		CodeSessionConflict:
		return http.StatusBadRequest

	case CodeTrialExpired,
		CodeDailyLimitExceeded,
		CodePermissionDenied:
		return http.StatusForbidden

	case CodeNotFound:
		return http.StatusNotFound

	case CodeUnauthenticated:
		return http.StatusUnauthorized

	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a caller may retry the same request later.
func (c Code) Retryable() bool {
	switch c {
	case CodeAnalysisFailed, CodePersistenceFailed:
		return true
	default:
		return false
	}
}

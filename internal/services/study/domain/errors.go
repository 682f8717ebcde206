package domain

import (
	"strconv"

	apperrors "github.com/louisbranch/study.space/internal/platform/errors"
)

var (
	// ErrNotFound indicates a user, profile or session record was not found.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")
	// ErrSessionConflict indicates the user already has an active session.
	ErrSessionConflict = apperrors.New(apperrors.CodeSessionConflict, "an active study session already exists")
	// ErrNoActiveStudySession indicates the requested transition needs a
	// session in a state the user does not currently have.
	ErrNoActiveStudySession = apperrors.New(apperrors.CodeNoActiveStudySession, "no study session in the required state")
	// ErrUserIDRequired indicates a caller identity is required.
	ErrUserIDRequired = apperrors.New(apperrors.CodeValidationFailed, "user id is required")
	// ErrBreakTypeMissing indicates a break was requested without a type.
	ErrBreakTypeMissing = apperrors.New(apperrors.CodeBreakTypeMissing, "break type is required")
	// ErrInvalidBreakType indicates an unknown break type.
	ErrInvalidBreakType = apperrors.New(apperrors.CodeValidationFailed, "unknown break type")
	// ErrImageMissing indicates an analysis request without image bytes.
	ErrImageMissing = apperrors.New(apperrors.CodeImageMissing, "image is required")
	// ErrTrialExpired indicates the user has neither a subscription nor a trial.
	ErrTrialExpired = apperrors.New(apperrors.CodeTrialExpired, "no active subscription or trial")
	// ErrInvalidPlan indicates an unknown subscription plan.
	ErrInvalidPlan = apperrors.New(apperrors.CodeValidationFailed, "unknown subscription plan")
	// ErrInvalidTimeWindow indicates a history query with an empty or inverted window.
	ErrInvalidTimeWindow = apperrors.New(apperrors.CodeValidationFailed, "time window is invalid")
)

// dailyLimitExceeded carries the numbers a client needs to render the
// countdown that blocked the start.
func dailyLimitExceeded(status BudgetStatus) error {
	return apperrors.WithMetadata(apperrors.CodeDailyLimitExceeded, "daily study limit reached", map[string]string{
		"limit_seconds":     strconv.FormatInt(status.LimitSeconds, 10),
		"used_seconds":      strconv.FormatInt(status.UsedSeconds, 10),
		"remaining_seconds": strconv.FormatInt(status.RemainingSeconds, 10),
	})
}

// persistence wraps store failures that are not already domain errors.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Wrap(apperrors.CodePersistenceFailed, op, err)
}

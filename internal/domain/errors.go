package domain

import (
	"errors"
	"fmt"
)

// AppError is the base domain error type.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Status  int            `json:"-"`
	Cause   error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 409}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Status: 403}
}

func ErrAccountLocked(msg string) *AppError {
	return &AppError{Code: "ACCOUNT_LOCKED", Message: msg, Status: 429}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: "RATE_LIMITED", Message: msg, Status: 429}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}

// ErrQRCollision is the cause of the conflict returned when a generated
// qr_id is already taken. Registration retries with a fresh id.
var ErrQRCollision = errors.New("qr id collision")

// ErrQRIDTaken returns a CONFLICT wrapping ErrQRCollision.
func ErrQRIDTaken() *AppError {
	return &AppError{Code: "CONFLICT", Message: "qr id collision", Status: 409, Cause: ErrQRCollision}
}

// Score validation reasons carried in AppError.Details["reason"].
const (
	ReasonOutOfRange          = "OUT_OF_RANGE"
	ReasonGlobalLimitExceeded = "GLOBAL_LIMIT_EXCEEDED"
)

// ErrScoreOutOfRange reports a score outside the inclusive [min, max] range.
func ErrScoreOutOfRange(given, min, max int) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("points must be between %d and %d, got %d", min, max, given),
		Status:  400,
		Details: map[string]any{
			"reason":      ReasonOutOfRange,
			"given":       given,
			"allowed_min": min,
			"allowed_max": max,
		},
	}
}

// ErrGlobalLimitExceeded reports a score above the system-wide ceiling.
func ErrGlobalLimitExceeded(given, ceiling int) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("points must not exceed %d, got %d", ceiling, given),
		Status:  400,
		Details: map[string]any{
			"reason":  ReasonGlobalLimitExceeded,
			"given":   given,
			"ceiling": ceiling,
		},
	}
}

// ErrScoreBelowMinimum reports a score under a lower bound when no upper
// bound applies.
func ErrScoreBelowMinimum(given, min int) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("points must be at least %d, got %d", min, given),
		Status:  400,
		Details: map[string]any{
			"reason":      ReasonOutOfRange,
			"given":       given,
			"allowed_min": min,
		},
	}
}

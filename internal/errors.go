package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeInternal   ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal   ErrorType = "EXTERNAL_ERROR"
	ErrorTypeConfig     ErrorType = "CONFIGURATION_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidCurrency  ErrorCode = "INVALID_CURRENCY"
	ErrCodeMissingReason    ErrorCode = "MISSING_REASON"
	ErrCodeMissingActor     ErrorCode = "MISSING_ACTOR"

	// ErrCodeDuplicateEffect is a no-op signal, not a failure: callers
	// acknowledge and skip downstream effects so the provider stops
	// redelivering the billing fact.
	ErrCodeDuplicateEffect ErrorCode = "DUPLICATE_EFFECT"

	ErrCodeEarningNotFound     ErrorCode = "EARNING_NOT_FOUND"
	ErrCodePayoutNotFound      ErrorCode = "PAYOUT_NOT_FOUND"
	ErrCodeInvalidTransition   ErrorCode = "INVALID_TRANSITION"
	ErrCodeBelowMinimumPayout  ErrorCode = "BELOW_MINIMUM_PAYOUT"
	ErrCodeNoEligibleFunds     ErrorCode = "NO_ELIGIBLE_FUNDS"
	ErrCodeEligiblePoolChanged ErrorCode = "ELIGIBLE_POOL_CHANGED"
	ErrCodeDispatchFailure     ErrorCode = "UPSTREAM_DISPATCH_FAILURE"
	ErrCodeMissingPlanRate     ErrorCode = "MISSING_PLAN_RATE"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewConfigurationError marks a fatal misconfiguration such as a missing plan
// rate. It must surface to the caller; silently defaulting a commission to
// zero would corrupt the ledger.
func NewConfigurationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConfig,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewDispatchError wraps a transient upstream payout-dispatch failure. The
// caller should signal the provider to redeliver.
func NewDispatchError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       ErrCodeDispatchFailure,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

var (
	ErrEarningNotFound   = NewNotFoundError("earning not found", ErrCodeEarningNotFound)
	ErrPayoutNotFound    = NewNotFoundError("payout not found", ErrCodePayoutNotFound)
	ErrInvalidTransition = NewConflictError("invalid state transition for this operation", ErrCodeInvalidTransition)

	ErrDuplicateEffect = &AppError{
		Type:       ErrorTypeConflict,
		Code:       ErrCodeDuplicateEffect,
		Message:    "billing fact already processed",
		StatusCode: http.StatusOK,
	}

	ErrNoEligibleFunds = &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeNoEligibleFunds,
		Message:    "no approved earnings eligible for payout",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrBelowMinimumPayout = &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeBelowMinimumPayout,
		Message:    "eligible balance is below the minimum payout amount",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrEligiblePoolChanged = NewConflictError("eligible pool changed concurrently, retry the payout request", ErrCodeEligiblePoolChanged)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}

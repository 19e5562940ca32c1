package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode identifies an error class
type ErrorCode string

const (
	// General
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT"

	// Cache layer
	ErrCodeCacheConnection ErrorCode = "CACHE_CONNECTION_ERROR"
	ErrCodeCacheOperation  ErrorCode = "CACHE_OPERATION_ERROR"
	ErrCodeCacheMiss       ErrorCode = "CACHE_MISS"

	// Golden dataset
	ErrCodeGoldenMiss    ErrorCode = "GOLDEN_DATASET_MISS"
	ErrCodeGoldenStorage ErrorCode = "GOLDEN_STORAGE_ERROR"

	// Providers
	ErrCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeProviderResponse    ErrorCode = "PROVIDER_RESPONSE_ERROR"
	ErrCodeAllProvidersFailed  ErrorCode = "ALL_PROVIDERS_FAILED"
)

// ErrorSeverity classifies how loudly an error should be reported
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// AppError is the application error type carried across layers
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Severity  ErrorSeverity          `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code to an HTTP status. Data-availability
// failures deliberately never map here; handlers degrade to synthetic
// payloads with a 200 instead.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeNotFound, ErrCodeGoldenMiss:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	case ErrCodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError
func New(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  severityFor(code),
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// NewWithDetails creates a new AppError with a details string
func NewWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	err := New(code, message, cause)
	err.Details = details
	return err
}

// WithContext attaches a context key/value to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Wrap wraps a plain error into an AppError, passing AppErrors through
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(code, message, err)
}

// IsAppError reports whether err is (or wraps) an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts the AppError from err, or nil
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsValidation reports whether err is a client-input error
func IsValidation(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == ErrCodeInvalidInput
}

func severityFor(code ErrorCode) ErrorSeverity {
	switch code {
	case ErrCodeInvalidInput, ErrCodeCacheMiss, ErrCodeGoldenMiss:
		return SeverityLow
	case ErrCodeCacheConnection, ErrCodeProviderUnavailable, ErrCodeTimeout:
		return SeverityMedium
	case ErrCodeAllProvidersFailed, ErrCodeGoldenStorage:
		return SeverityHigh
	case ErrCodeInternal:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

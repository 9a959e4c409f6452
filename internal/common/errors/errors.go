// Package errors provides standardized error handling for the query pipeline.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNormalizationFailed ErrorCode = "NORMALIZATION_ERROR"
	ErrCodeIncompleteRange     ErrorCode = "INCOMPLETE_RANGE"
	ErrCodeMissingParameter    ErrorCode = "MISSING_PARAMETER"

	ErrCodeDataAccessFailed ErrorCode = "DATA_ACCESS_ERROR"
	ErrCodeQueryTimeout     ErrorCode = "QUERY_TIMEOUT"

	ErrCodeFallbackDegraded ErrorCode = "FALLBACK_DEGRADED"

	ErrCodeSendFailed     ErrorCode = "SEND_FAILED"
	ErrCodeQuotaExceeded  ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeLogWriteFailed ErrorCode = "LOG_WRITE_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewNormalizationError creates a non-retryable date normalization error.
func NewNormalizationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNormalizationFailed,
		Message:   "Date expression could not be normalized",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIncompleteRangeError creates a non-retryable one-sided range error.
func NewIncompleteRangeError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIncompleteRange,
		Message:   "Date range is missing one endpoint",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingParameterError creates a non-retryable resolver error.
func NewMissingParameterError(param string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingParameter,
		Message:   "Required intent parameter is missing or malformed",
		Details:   fmt.Sprintf("parameter: %s", param),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDataAccessError creates a retryable store access error.
func NewDataAccessError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDataAccessFailed,
		Message:   "Store query failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable store timeout error.
func NewQueryTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Store query timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewFallbackDegradedError marks a generative fallback that could not
// complete. Not retryable: one attempt per message, by contract.
func NewFallbackDegradedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFallbackDegraded,
		Message:   "Generative fallback unavailable",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSendFailedError creates a retryable outbound delivery error.
func NewSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSendFailed,
		Message:   "Outbound message delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQuotaExceededError creates a non-retryable gateway quota error.
func NewQuotaExceededError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuotaExceeded,
		Message:   "Messaging gateway quota exhausted",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLogWriteFailedError creates a retryable audit log error.
func NewLogWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLogWriteFailed,
		Message:   "Interaction log append failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDataAccessFailed,
		ErrCodeSendFailed,
		ErrCodeLogWriteFailed:
		return 3

	case ErrCodeQueryTimeout:
		return 2

	case ErrCodeFallbackDegraded:
		return 0 // one fallback attempt per message, by contract

	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "NORMALIZATION") || strings.Contains(codeStr, "RANGE") || strings.Contains(codeStr, "PARAMETER"):
		return "RESOLUTION"
	case strings.Contains(codeStr, "DATA_ACCESS") || strings.Contains(codeStr, "QUERY"):
		return "STORE"
	case strings.Contains(codeStr, "FALLBACK"):
		return "AI"
	case strings.Contains(codeStr, "SEND") || strings.Contains(codeStr, "QUOTA"):
		return "GATEWAY"
	case strings.Contains(codeStr, "LOG"):
		return "AUDIT"
	default:
		return "OTHER"
	}
}

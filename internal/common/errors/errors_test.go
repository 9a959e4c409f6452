package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsSetCodeAndRetryability(t *testing.T) {
	tests := []struct {
		name      string
		err       *StandardError
		code      ErrorCode
		retryable bool
	}{
		{name: "normalization", err: NewNormalizationError("bad date"), code: ErrCodeNormalizationFailed, retryable: false},
		{name: "incomplete range", err: NewIncompleteRangeError("one endpoint"), code: ErrCodeIncompleteRange, retryable: false},
		{name: "missing parameter", err: NewMissingParameterError("date"), code: ErrCodeMissingParameter, retryable: false},
		{name: "data access", err: NewDataAccessError("count", fmt.Errorf("down")), code: ErrCodeDataAccessFailed, retryable: true},
		{name: "query timeout", err: NewQueryTimeoutError("count"), code: ErrCodeQueryTimeout, retryable: true},
		{name: "quota", err: NewQuotaExceededError("instance"), code: ErrCodeQuotaExceeded, retryable: false},
		{name: "send failed", err: NewSendFailedError(fmt.Errorf("503")), code: ErrCodeSendFailed, retryable: true},
		{name: "fallback degraded", err: NewFallbackDegradedError(fmt.Errorf("no answer")), code: ErrCodeFallbackDegraded, retryable: false},
		{name: "log write failed", err: NewLogWriteFailedError(fmt.Errorf("conn reset")), code: ErrCodeLogWriteFailed, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.Contains(t, tt.err.Error(), string(tt.code))
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestRetryPolicy(t *testing.T) {
	assert.Equal(t, 3, GetRetryCount(ErrCodeSendFailed))
	assert.Equal(t, 2, GetRetryCount(ErrCodeQueryTimeout))
	// One fallback attempt per message, never more.
	assert.Equal(t, 0, GetRetryCount(ErrCodeFallbackDegraded))
	assert.Equal(t, 0, GetRetryCount(ErrCodeNormalizationFailed))

	assert.True(t, IsRetryableErrorCode(ErrCodeDataAccessFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeQuotaExceeded))
}

func TestErrorCategories(t *testing.T) {
	assert.Equal(t, "RESOLUTION", GetErrorCategory(ErrCodeNormalizationFailed))
	assert.Equal(t, "RESOLUTION", GetErrorCategory(ErrCodeIncompleteRange))
	assert.Equal(t, "STORE", GetErrorCategory(ErrCodeDataAccessFailed))
	assert.Equal(t, "STORE", GetErrorCategory(ErrCodeQueryTimeout))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeFallbackDegraded))
	assert.Equal(t, "GATEWAY", GetErrorCategory(ErrCodeSendFailed))
	assert.Equal(t, "AUDIT", GetErrorCategory(ErrCodeLogWriteFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrorCode("INTERNAL_ERROR")))
}

package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name: "with wrapped error",
			err: &DomainError{
				Code:    "gateway_rejected",
				Message: "payment rejected by gateway",
				Err:     errors.New("do_not_honor"),
			},
			expected: "payment rejected by gateway: do_not_honor",
		},
		{
			name: "without wrapped error",
			err: &DomainError{
				Code:    "invoice_expired",
				Message: "invoice window has passed",
				Err:     nil,
			},
			expected: "invoice window has passed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestNewDomainError(t *testing.T) {
	originalErr := errors.New("underlying error")
	err := NewDomainError("test_code", "test message", originalErr)

	assert.NotNil(t, err)
	assert.Equal(t, "test_code", err.Code)
	assert.Equal(t, "test message", err.Message)
	assert.Equal(t, originalErr, err.Err)
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationError("expiry", "month must be between 01 and 12")

	expected := "validation failed for field expiry: month must be between 01 and 12"
	assert.Equal(t, expected, err.Error())
}

func TestErrorUnwrapping(t *testing.T) {
	wrappedErr := NewDomainError("gateway_unreachable", "gateway call failed", ErrNetworkFailure)

	assert.True(t, errors.Is(wrappedErr, ErrNetworkFailure))
	assert.ErrorIs(t, wrappedErr.Unwrap(), ErrNetworkFailure)
}

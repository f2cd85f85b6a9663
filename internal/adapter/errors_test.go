package adapter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdapterErrorFormatting(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewNetworkError("fetch of PETR4.SA failed", cause)

	assert.Equal(t, "[NETWORK_ERROR] fetch of PETR4.SA failed (caused by: connection reset)", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewValidationError("empty payload")
	assert.Equal(t, "[VALIDATION_ERROR] empty payload", bare.Error())
	assert.Nil(t, errors.Unwrap(bare))
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(NewValidationError("bad shape")))
	assert.False(t, IsValidationError(NewFetchError("nope", nil)))
	assert.False(t, IsValidationError(errors.New("plain")))
}

func TestStatusError(t *testing.T) {
	err := &StatusError{StatusCode: 502, URL: "http://example.com/x"}
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "http://example.com/x")
}

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelByType(t *testing.T) {
	err := Wrap(ErrorTypeContentNotFound, stderrors.New("boom"), "missing %s", ".note-container")
	wrapped := fmt.Errorf("get item: %w", err)

	assert.True(t, stderrors.Is(wrapped, ErrContentNotFound))
	assert.False(t, stderrors.Is(wrapped, ErrProfileCardInvalid))
	assert.Equal(t, ErrorTypeContentNotFound, TypeOf(wrapped))
	assert.Contains(t, err.Error(), "boom")
}

func TestTypeOfUnclassified(t *testing.T) {
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
	assert.False(t, IsRetryableError(nil))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errType  ErrorType
		expected bool
	}{
		{ErrorTypeNavigation, true},
		{ErrorTypeTimeout, true},
		{ErrorTypeNetwork, true},
		{ErrorTypeNotAuthenticated, false},
		{ErrorTypeInvalidAction, false},
		{ErrorTypeProfileCardInvalid, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.errType))
			assert.Equal(t, tt.expected, IsRetryableError(New(tt.errType, "x")))
		})
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(503))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(200))
}

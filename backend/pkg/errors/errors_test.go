package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseError_Error(t *testing.T) {
	err := NewBaseError(ErrorTypeSync, "chapter merge failed", nil)
	assert.Equal(t, "[sync] chapter merge failed", err.Error())

	wrapped := NewBaseError(ErrorTypeConnectivity, "store down", errors.New("dial refused"))
	assert.Contains(t, wrapped.Error(), "[connectivity]")
	assert.Contains(t, wrapped.Error(), "dial refused")
}

func TestBaseError_Unwrap(t *testing.T) {
	inner := errors.New("socket closed")
	err := NewBaseError(ErrorTypeConnectivity, "store down", inner)
	assert.Equal(t, inner, errors.Unwrap(err))
	assert.True(t, errors.Is(err, inner))
}

func TestIsErrorType(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{"plain base error", NewBaseError(ErrorTypeValidation, "bad", nil), ErrorTypeValidation, true},
		{"wrong category", NewBaseError(ErrorTypeValidation, "bad", nil), ErrorTypeSync, false},
		{"typed validation error", NewInvalidAnalysis("projectId", "required"), ErrorTypeValidation, true},
		{"typed not-found error", NewChapterNotFound("p1", 9), ErrorTypeNotFound, true},
		{"typed resolution error", NewEntityResolutionFailed("Elena", "Character", nil), ErrorTypeResolution, true},
		{"typed sync error", NewSyncFailed("p1", 3, errors.New("deadlock")), ErrorTypeSync, true},
		{"typed connectivity error", NewStoreUnreachable("bolt://localhost", errors.New("refused")), ErrorTypeConnectivity, true},
		{"fmt wrapped", fmt.Errorf("sync chapter: %w", NewSyncFailed("p1", 3, nil)), ErrorTypeSync, true},
		{"doubly wrapped", fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", NewChapterNotFound("p1", 2))), ErrorTypeNotFound, true},
		{"plain error", errors.New("plain"), ErrorTypeSync, false},
		{"nil", nil, ErrorTypeSync, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsErrorType(tt.err, tt.errType))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	// Deterministic failures must not be retried
	assert.False(t, IsRetryable(NewInvalidAnalysis("summary", "required")))
	assert.False(t, IsRetryable(NewEntityResolutionFailed("Elena", "Character", nil)))

	// Transient and rolled-back failures may be retried
	assert.True(t, IsRetryable(NewStoreUnreachable("bolt://localhost", errors.New("refused"))))
	assert.True(t, IsRetryable(NewSyncFailed("p1", 3, errors.New("deadlock"))))

	// Unknown errors default to not retryable
	assert.False(t, IsRetryable(errors.New("mystery")))
	assert.False(t, IsRetryable(nil))
}

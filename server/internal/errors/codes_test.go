package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceError(t *testing.T) {
	cause := errors.New("disk full")
	err := StoreError("failed to list notes", cause)

	assert.Equal(t, "[STORE_ERROR] failed to list notes: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrCodeStoreError, err.Code)

	plain := InvalidArgument("limit must be -1 or positive, got %d", 0)
	assert.Equal(t, "[INVALID_ARGUMENT] limit must be -1 or positive, got 0", plain.Error())
}

func TestIsCode(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NotFound("order not found", nil))

	assert.True(t, IsCode(wrapped, ErrCodeNotFound))
	assert.False(t, IsCode(wrapped, ErrCodeStoreError))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeNotFound))
}

func TestGetCodeFromError(t *testing.T) {
	assert.Equal(t, ErrCodeUnauthorized, GetCodeFromError(Unauthorized("no token"), ErrCodeStoreError))
	assert.Equal(t, ErrCodeStoreError, GetCodeFromError(errors.New("boom"), ErrCodeStoreError))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidArgument, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{ErrCodeStoreError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.code), string(tt.code))
	}
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus("SOMETHING_ELSE"))
}

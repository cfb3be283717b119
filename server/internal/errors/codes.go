// Package errors defines the coded errors returned by the note service and
// their mapping onto HTTP statuses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the stable, client visible kind of a failure.
type ErrorCode string

const (
	ErrCodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeStoreError        ErrorCode = "STORE_ERROR"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
)

var httpStatusByCode = map[ErrorCode]int{
	ErrCodeInvalidArgument:   http.StatusBadRequest,
	ErrCodeNotFound:          http.StatusNotFound,
	ErrCodeUnauthorized:      http.StatusUnauthorized,
	ErrCodeRateLimitExceeded: http.StatusTooManyRequests,
	ErrCodeStoreError:        http.StatusInternalServerError,
}

// ServiceError pairs a code and a message with an optional cause.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

func InvalidArgument(format string, args ...any) *ServiceError {
	return &ServiceError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func NotFound(msg string, cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeNotFound, Message: msg, Cause: cause}
}

func StoreError(msg string, cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeStoreError, Message: msg, Cause: cause}
}

func Unauthorized(msg string) *ServiceError {
	return &ServiceError{Code: ErrCodeUnauthorized, Message: msg}
}

func RateLimitExceeded(msg string) *ServiceError {
	return &ServiceError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// GetCodeFromError returns the code of the first ServiceError in err's chain,
// or defaultCode when there is none.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return defaultCode
}

// IsCode reports whether err wraps a ServiceError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return GetCodeFromError(err, "") == code
}

// HTTPStatus maps a code to a response status. Unknown codes are server errors.
func HTTPStatus(code ErrorCode) int {
	if status, ok := httpStatusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

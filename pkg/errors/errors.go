package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNotAuthenticated   ErrorType = "not_authenticated"
	ErrorTypeLoginFailed        ErrorType = "login_failed"
	ErrorTypeContentNotFound    ErrorType = "content_not_found"
	ErrorTypeProfileCardInvalid ErrorType = "profile_card_invalid"
	ErrorTypeInvalidAction      ErrorType = "invalid_action"
	ErrorTypeFeedUnavailable    ErrorType = "feed_unavailable"
	ErrorTypeNavigation         ErrorType = "navigation"
	ErrorTypeTimeout            ErrorType = "timeout"
	ErrorTypeNetwork            ErrorType = "network"
	ErrorTypeStorage            ErrorType = "storage"
	ErrorTypeConfig             ErrorType = "config"
	ErrorTypeUnknown            ErrorType = "unknown"
)

// Sentinels for errors.Is comparisons. Matching is by Type only.
var (
	ErrNotAuthenticated   = &Error{Type: ErrorTypeNotAuthenticated, Message: "not logged in"}
	ErrLoginFailed        = &Error{Type: ErrorTypeLoginFailed, Message: "login failed after maximum retries"}
	ErrContentNotFound    = &Error{Type: ErrorTypeContentNotFound, Message: "content not found"}
	ErrProfileCardInvalid = &Error{Type: ErrorTypeProfileCardInvalid, Message: "profile card invalid"}
	ErrInvalidAction      = &Error{Type: ErrorTypeInvalidAction, Message: "invalid action"}
	ErrFeedUnavailable    = &Error{Type: ErrorTypeFeedUnavailable, Message: "feed unavailable"}
)

// Error is a classified engine error
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Type) + ": " + e.Message
	if e.Code != 0 {
		msg = fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// New creates a classified error.
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under t. A nil cause still yields an error.
func Wrap(t ErrorType, cause error, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// TypeOf returns the type of the first *Error in err's chain, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type anywhere in its chain.
func IsType(err error, t ErrorType) bool {
	return stderrors.Is(err, &Error{Type: t})
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNavigation, ErrorTypeTimeout, ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// IsRetryableError classifies an arbitrary error.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return IsRetryable(TypeOf(err))
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

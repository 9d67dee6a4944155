package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the failure classes the archiver distinguishes
type ErrorType string

const (
	// Transport failures: always "no data for this attempt", never fatal
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeHTTPStatus ErrorType = "http_status"
	ErrorTypeParsing    ErrorType = "parsing"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeRedirect   ErrorType = "redirect"

	ErrorTypePartialPageLoss    ErrorType = "partial_page_loss"
	ErrorTypeDownloadIncomplete ErrorType = "download_incomplete"

	// ErrorTypeInvalidDate terminates the run
	ErrorTypeInvalidDate ErrorType = "invalid_date"

	ErrorTypeUnknown ErrorType = "unknown"
)

// Error represents an archiver error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, err error, message string) *Error {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %v", message, err)
	}
	return &Error{Type: t, Message: msg, Err: err}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given ErrorType anywhere in its chain
func IsType(err error, t ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}

// IsTransportFailure reports whether err belongs to the transport family
func IsTransportFailure(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeNetwork, ErrorTypeHTTPStatus, ErrorTypeParsing, ErrorTypeRateLimit, ErrorTypeRedirect:
		return true
	default:
		return false
	}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeHTTPStatus:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0, 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

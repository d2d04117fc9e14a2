package errors

import "fmt"

// ErrorType classifies acquisition and storage failures.
type ErrorType string

const (
	// ErrorTypeThrottled means the source signalled rate limiting.
	// Retryable, and feeds the adaptive rate limiter.
	ErrorTypeThrottled ErrorType = "throttled"
	// ErrorTypeNetwork covers transient network and timeout failures.
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeAuth means the session with the source is no longer valid.
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeNotFound means the target does not exist at the source.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeStorage is a durable-write failure from the store.
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeCircuitOpen is the breaker's fail-fast rejection, not
	// attributable to the rejected call itself.
	ErrorTypeCircuitOpen ErrorType = "circuit_open"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error is a classified error with an optional wrapped cause.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error with a message.
func Wrap(err error, t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// IsRetryable reports whether an error type is safe to retry blindly.
// Acquisition fetches are read-only, so retrying transient failures
// cannot duplicate side effects.
func IsRetryable(t ErrorType) bool {
	switch t {
	case ErrorTypeThrottled, ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// IsFatal reports whether an error type must abort the session
// immediately, with no retry.
func IsFatal(t ErrorType) bool {
	return t == ErrorTypeAuth || t == ErrorTypeNotFound
}

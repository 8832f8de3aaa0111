package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorBuilder builds an internal error with an optional user-facing hint and
// reportable details, and finally marks it with one of the sentinel errors.
type ErrorBuilder struct {
	err     error
	hint    string
	details map[string]any
}

// NewError starts building an error from a message.
func NewError(msg string) *ErrorBuilder {
	return &ErrorBuilder{err: errors.New(msg)}
}

// NewErrorf starts building an error from a format string.
func NewErrorf(format string, args ...any) *ErrorBuilder {
	return &ErrorBuilder{err: errors.Newf(format, args...)}
}

// WithError starts building an error by wrapping an existing one.
func WithError(err error) *ErrorBuilder {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &ErrorBuilder{err: err}
}

// WithHint attaches a safe, user-facing hint to the error.
func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.hint = hint
	return b
}

// WithHintf attaches a formatted user-facing hint to the error.
func (b *ErrorBuilder) WithHintf(format string, args ...any) *ErrorBuilder {
	b.hint = fmt.Sprintf(format, args...)
	return b
}

// WithReportableDetails attaches structured details that are safe to return
// to API callers alongside the hint.
func (b *ErrorBuilder) WithReportableDetails(details map[string]any) *ErrorBuilder {
	b.details = details
	return b
}

// WithMessagef wraps the error with additional context.
func (b *ErrorBuilder) WithMessagef(format string, args ...any) *ErrorBuilder {
	b.err = errors.WithMessagef(b.err, format, args...)
	return b
}

// Mark finalizes the error, marking it with the given sentinel so that
// errors.Is(err, sentinel) holds.
func (b *ErrorBuilder) Mark(sentinel error) error {
	err := errors.Mark(b.err, sentinel)
	if b.hint != "" {
		err = errors.WithHint(err, b.hint)
	}
	return &internalError{
		cause:   err,
		hint:    b.hint,
		details: b.details,
	}
}

// internalError carries the hint and details through the error chain.
type internalError struct {
	cause   error
	hint    string
	details map[string]any
}

func (e *internalError) Error() string { return e.cause.Error() }

func (e *internalError) Unwrap() error { return e.cause }

// Hint extracts the user-facing hint from an error chain, if any.
func Hint(err error) string {
	var ie *internalError
	if errors.As(err, &ie) {
		return ie.hint
	}
	return ""
}

// ReportableDetails extracts the reportable details from an error chain.
func ReportableDetails(err error) map[string]any {
	var ie *internalError
	if errors.As(err, &ie) {
		return ie.details
	}
	return nil
}

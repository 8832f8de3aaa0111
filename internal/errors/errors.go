package errors

import (
	"github.com/cockroachdb/errors"
)

// Sentinel errors used to classify every error raised by the service.
// Handlers map these to HTTP status codes; services mark errors with
// exactly one of them via the builder's Mark.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrVersionConflict  = errors.New("version conflict")
	ErrPermissionDenied = errors.New("permission denied")
	ErrDatabase         = errors.New("database error")
	ErrInternal         = errors.New("internal error")

	// Billing pipeline taxonomy.
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrStaleSignature     = errors.New("stale webhook signature")
	ErrUnresolvedIdentity = errors.New("unresolved billing identity")
	ErrTransientLookup    = errors.New("transient lookup failure")
	ErrConcurrentUpdate   = errors.New("concurrent update exhausted")
)

// Is reports whether err is marked with target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

func IsUnresolvedIdentity(err error) bool {
	return errors.Is(err, ErrUnresolvedIdentity)
}

// IsRetryable reports whether the upstream caller should retry the request
// that produced err. Terminal outcomes (validation, bad signatures,
// unresolvable identity) are excluded.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDatabase) ||
		errors.Is(err, ErrTransientLookup) ||
		errors.Is(err, ErrConcurrentUpdate) ||
		errors.Is(err, ErrInternal)
}

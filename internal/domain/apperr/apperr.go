// Package apperr defines the error kinds shared by the domain packages.
//
// Domain errors wrap exactly one of the sentinel kinds below so callers can
// classify any failure with errors.Is without knowing the concrete type.
package apperr

import (
	"github.com/go-faster/errors"
)

// Kind names a class of failure reported to callers.
type Kind string

const (
	KindNotFound          Kind = "NotFound"
	KindDuplicateName     Kind = "DuplicateName"
	KindInsufficientStock Kind = "InsufficientStock"
	KindInvalidStatus     Kind = "InvalidStatus"
	KindInvalidInput      Kind = "InvalidInput"
	KindNoOp              Kind = "NoOp"
	KindUnauthorized      Kind = "Unauthorized"
	KindForbidden         Kind = "Forbidden"
	KindTransient         Kind = "Transient"
	KindInternal          Kind = "Internal"
)

var (
	// ErrNotFound is wrapped by errors about absent entities.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName is wrapped by uniqueness violations.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrInsufficientStock is wrapped by failed reservations.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidStatus is wrapped by unknown status values and illegal transitions.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidInput is wrapped by malformed requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoOp is wrapped by updates that would change nothing.
	ErrNoOp = errors.New("no-op update")
	// ErrUnauthorized is returned when presented credentials are rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller lacks the staff capability.
	ErrForbidden = errors.New("forbidden")
	// ErrTransient marks storage failures that may succeed if the whole
	// operation is retried (serialization failures, deadlocks, lock timeouts).
	ErrTransient = errors.New("transient storage failure")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrDuplicateName, KindDuplicateName},
	{ErrInsufficientStock, KindInsufficientStock},
	{ErrInvalidStatus, KindInvalidStatus},
	{ErrInvalidInput, KindInvalidInput},
	{ErrNoOp, KindNoOp},
	{ErrUnauthorized, KindUnauthorized},
	{ErrForbidden, KindForbidden},
	{ErrTransient, KindTransient},
}

// KindOf classifies err. Errors that wrap none of the sentinels are Internal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Invalid returns an InvalidInput error with the given reason.
func Invalid(reason string) error {
	return errors.Wrap(ErrInvalidInput, reason)
}

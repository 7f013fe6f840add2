package helper

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline errors so stages can decide whether to
// retry, abort or reject without side effects.
type ErrorKind string

const (
	KindInternal        ErrorKind = "internal"
	KindConfiguration   ErrorKind = "configuration"
	KindExternalService ErrorKind = "external_service"
	KindNotFound        ErrorKind = "not_found"
	KindState           ErrorKind = "state"
	KindDataIntegrity   ErrorKind = "data_integrity"
)

// Error wraps an underlying error with the failing operation and a kind.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with the operation name. If err already carries a
// kind it is preserved, otherwise the error is internal.
func NewError(operation string, err error) *Error {
	return &Error{Op: operation, Kind: KindOf(err), Err: err}
}

// NewConfigurationError reports a missing or invalid preset value.
func NewConfigurationError(operation string, err error) *Error {
	return &Error{Op: operation, Kind: KindConfiguration, Err: err}
}

// NewExternalServiceError reports a failed store or model call.
func NewExternalServiceError(operation string, err error) *Error {
	return &Error{Op: operation, Kind: KindExternalService, Err: err}
}

// NewNotFoundError reports an unknown query or chunk id.
func NewNotFoundError(operation string, err error) *Error {
	return &Error{Op: operation, Kind: KindNotFound, Err: err}
}

// NewStateError reports a stage invoked with an unmet precondition.
func NewStateError(operation string, err error) *Error {
	return &Error{Op: operation, Kind: KindState, Err: err}
}

// NewDataIntegrityError reports a malformed persisted artifact.
func NewDataIntegrityError(operation string, err error) *Error {
	return &Error{Op: operation, Kind: KindDataIntegrity, Err: err}
}

// KindOf returns the kind of err, or KindInternal if err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err or any wrapped error has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

package pgclient

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConnection is returned when an operation is attempted on a
	// closed connection. It is always checked first.
	ErrInvalidConnection = errors.New("connection is not valid")

	// ErrInvalidArgument is returned when an argument has the wrong shape or
	// type, e.g. a non-positive read size or an unsupported bulk value.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidConfig is returned when the connection configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// =========================================================================
	// Query errors
	// =========================================================================

	// ErrQuery is returned when a statement could not be executed at all.
	ErrQuery = errors.New("query failed")

	// ErrEmptyQuery is returned for an empty or blank statement.
	ErrEmptyQuery = fmt.Errorf("%w: empty query", ErrQuery)

	// ErrBackend is matched by every *BackendError.
	ErrBackend = errors.New("backend error")

	// =========================================================================
	// Result errors
	// =========================================================================

	// ErrOutOfRange is returned for a field number outside the result.
	ErrOutOfRange = errors.New("invalid field number")

	// ErrUnknownField is returned for a field name not in the result.
	ErrUnknownField = errors.New("unknown field")

	// =========================================================================
	// Large object errors
	// =========================================================================

	// ErrStorage is returned when the server could not create or import a
	// large object.
	ErrStorage = errors.New("can't create large object")

	// ErrIO is returned when a large object operation failed or violated the
	// open/closed state machine.
	ErrIO = errors.New("large object I/O error")

	// ErrNullOID is returned by every operation on an unlinked large object.
	ErrNullOID = errors.New("object is not valid (null oid)")

	// ErrNotOpen is returned when an operation needs an open descriptor.
	ErrNotOpen = fmt.Errorf("%w: object is not opened", ErrIO)

	// ErrAlreadyOpen is returned when an operation needs a closed descriptor.
	ErrAlreadyOpen = fmt.Errorf("%w: object is already opened", ErrIO)
)

// BackendError is a failure reported by the server. The message is passed
// through verbatim.
type BackendError struct {
	Severity string // ERROR, FATAL, PANIC, or empty for a malformed response
	Code     string // SQLSTATE
	Message  string
	Detail   string
}

// Error implements the error interface
func (e *BackendError) Error() string {
	if e.Severity == "" {
		return e.Message
	}
	return e.Severity + ": " + e.Message
}

// Is reports whether target is ErrBackend.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}

// OpError records the operation and large object an error came from.
type OpError struct {
	Op  string // Operation that failed
	OID OID    // Large object, if applicable
	Err error  // Underlying error
}

// Error implements the error interface
func (e *OpError) Error() string {
	if e.OID != 0 {
		return fmt.Sprintf("%s (oid=%d): %v", e.Op, e.OID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *OpError) Unwrap() error {
	return e.Err
}

// newOpError creates a new OpError
func newOpError(op string, oid OID, err error) *OpError {
	return &OpError{Op: op, OID: oid, Err: err}
}

// wrapIO joins ErrIO, a message, and the server-side cause.
func wrapIO(msg string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrIO, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrIO, msg, cause)
}

package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Kind classifies a core operation failure so façades can map it to an
// exit code or a protocol error code without string matching.
type Kind string

const (
	// KindValidation means an input violated a documented constraint.
	KindValidation Kind = "validation"
	// KindNotFound means the referenced queue or task does not exist.
	KindNotFound Kind = "not_found"
	// KindConflict means a create collided with an existing unique name.
	KindConflict Kind = "conflict"
	// KindCheckout means a checkout lost a race or targeted a non-pending task.
	KindCheckout Kind = "checkout"
	// KindDatabase means a lower-level storage fault occurred.
	KindDatabase Kind = "database"
)

// Error is the typed failure returned by every core operation.
type Error struct {
	Kind Kind
	Op   string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s %q: %v", e.Op, e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

func validationErr(op, id string, err error) error { return newErr(KindValidation, op, id, err) }
func notFoundErr(op, id string) error {
	return newErr(KindNotFound, op, id, errors.New("not found"))
}
func conflictErr(op, id string) error {
	return newErr(KindConflict, op, id, errors.New("already exists"))
}
func checkoutErr(op, id string, err error) error { return newErr(KindCheckout, op, id, err) }

// wrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows into a typed NotFound failure so callers never have to
// special-case the raw driver sentinel.
func wrapDBError(op, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr(op, id)
	}
	return newErr(KindDatabase, op, id, err)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Package apperr defines the error taxonomy shared by the document pipeline:
// validation failures, storage/integration failures, expected not-found misses
// and optimistic concurrency conflicts.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindIntegration
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindIntegration:
		return "integration"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a lifecycle transition is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadySigned is returned when signing a document that is already signed.
	ErrAlreadySigned = errors.New("document already signed")
	// ErrVersionConflict is returned when a row changed between read and write.
	ErrVersionConflict = errors.New("document was modified concurrently")
)

// Error carries a Kind plus the operation and, for validation errors, the
// offending field.
type Error struct {
	Kind  Kind
	Op    string
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(op, field, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Msg: msg}
}

func Integration(op string, err error) *Error {
	return &Error{Kind: KindIntegration, Op: op, Err: err}
}

func NotFound(op, msg string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg, Err: ErrNotFound}
}

func Conflict(op string, err error) *Error {
	return &Error{Kind: KindConflict, Op: op, Err: err}
}

// KindOf reports the Kind of err. Bare sentinels are classified too so callers
// can return them without wrapping.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAlreadySigned), errors.Is(err, ErrVersionConflict):
		return KindConflict
	}
	return KindUnknown
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }

// FieldOf returns the field attached to a validation error, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindIntegration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

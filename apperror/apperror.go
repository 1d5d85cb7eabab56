package apperror

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuth          Kind = "auth"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindConsistency   Kind = "consistency"
	KindPersistence   Kind = "persistence"
	KindInternal      Kind = "internal"
)

// FieldError attributes a message to one input field. Type holds the field name.
type FieldError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string, fields ...FieldError) *Error {
	return &Error{Kind: kind, Message: msg, Fields: fields}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string, fields ...FieldError) *Error {
	return New(KindValidation, msg, fields...)
}

func Auth(msg string, fields ...FieldError) *Error {
	return New(KindAuth, msg, fields...)
}

func Forbidden(msg string, fields ...FieldError) *Error {
	return New(KindAuthorization, msg, fields...)
}

func NotFound(msg string, fields ...FieldError) *Error {
	return New(KindNotFound, msg, fields...)
}

func Conflict(msg string, fields ...FieldError) *Error {
	return New(KindConflict, msg, fields...)
}

func Consistency(msg string) *Error {
	return New(KindConsistency, msg)
}

func Persistence(msg string, err error) *Error {
	return Wrap(KindPersistence, msg, err)
}

// Field is shorthand for a single FieldError.
func Field(field, msg string) FieldError {
	return FieldError{Message: msg, Type: field}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode maps a kind to the HTTP status the boundary answers with.
func StatusCode(kind Kind) int {
	switch kind {
	case KindValidation, KindConflict:
		return http.StatusUnprocessableEntity
	case KindAuth, KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

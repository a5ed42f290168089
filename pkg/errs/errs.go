// Package errs defines the error kinds the scenario engine raises, so
// that callers can branch on what went wrong (errors.Is) instead of
// parsing messages. The teacher repo wraps plain fmt.Errorf everywhere;
// this package exists because spec.md's testable properties require
// distinguishing Permission from Locked from Conflict, which a bare
// wrapped string cannot do.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories from spec.md §7.
type Kind string

const (
	NotFound        Kind = "not_found"
	Permission      Kind = "permission"
	Conflict        Kind = "conflict"
	Locked          Kind = "locked"
	CrossNetwork    Kind = "cross_network"
	InvalidDataType Kind = "invalid_data_type"
	InvalidInput    Kind = "invalid_input"
)

// Error is a Kind-tagged error. Two Errors are errors.Is-equal when
// their Kinds match, regardless of message, so callers can do
// `errors.Is(err, errs.New(errs.Locked, ""))` or more conveniently
// `errs.Is(err, errs.Locked)`.
type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind, keeping err reachable via
// errors.Unwrap for %w-style chains.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), err: err}
}

// Is reports whether err is (or wraps) an Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindForbidden    ErrorKind = "forbidden"
	KindInvalidInput ErrorKind = "invalid_input"
	KindInvalidState ErrorKind = "invalid_state"
)

// Error is the error type returned by the services. Reason is safe to show to
// callers; State is set only for KindInvalidState.
type Error struct {
	Kind   ErrorKind
	Reason string
	State  TurnState
}

func (e *Error) Error() string {
	if e.State != "" {
		return fmt.Sprintf("%s (state: %s)", e.Reason, e.State)
	}
	return e.Reason
}

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, &Error{Kind: KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Reason: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Reason: fmt.Sprintf(format, args...)}
}

func InvalidInput(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Reason: fmt.Sprintf(format, args...)}
}

func InvalidState(reason string, state TurnState) error {
	return &Error{Kind: KindInvalidState, Reason: reason, State: state}
}

// KindOf returns the kind of err, or "" when err is not a *Error.
func KindOf(err error) ErrorKind {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Kind
	}
	return ""
}

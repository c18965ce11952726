package apperr

import (
	"errors"
	"fmt"
)

// Kind groups error codes into the categories clients react to.
type Kind string

const (
	KindNotFound          Kind = "not-found"
	KindConflict          Kind = "conflict"
	KindForbidden         Kind = "forbidden"
	KindInsufficientFunds Kind = "insufficient-funds"
	KindInvalidState      Kind = "invalid-state"
	KindInvalidInput      Kind = "invalid-input"
	KindTransportLost     Kind = "transport-lost"
	KindInternal          Kind = "internal"
)

// Error is a taxonomy error. Its string form is "CODE: message", the same
// shape the websocket error replies carry.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so a sentinel still matches after
// WithMessage or Wrap.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a copy of e with err attached as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: err}
}

// KindOf reports the kind of err, KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the code of err, "INTERNAL_ERROR" for errors outside the taxonomy.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL_ERROR"
}

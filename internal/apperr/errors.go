package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindInvalidArgument Kind = "invalid_argument"
	KindConflict        Kind = "conflict"
	KindStorage         Kind = "storage_failure"
	KindUnauthorized    Kind = "unauthorized"
	KindForbidden       Kind = "forbidden"
)

var (
	ErrStudentNotFound  = New(KindNotFound, "student not found")
	ErrTeacherNotFound  = New(KindNotFound, "teacher not found")
	ErrQuestionNotFound = New(KindNotFound, "question not found")
	ErrSessionNotFound  = New(KindUnauthorized, "session not found or expired")
	ErrBadCredentials   = New(KindUnauthorized, "invalid credentials")
)

// Error carries a Kind so callers can classify failures without string matching.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind and Msg, so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Storage wraps a driver/transaction error. A nil err stays nil, and an error
// that already carries a Kind is returned unchanged.
func Storage(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindStorage, Msg: msg, Err: err}
}

// KindOf reports the Kind of err. Unclassified errors are storage failures.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindStorage
}

func IsNotFound(err error) bool { return err != nil && KindOf(err) == KindNotFound }

func IsInvalid(err error) bool { return err != nil && KindOf(err) == KindInvalidArgument }

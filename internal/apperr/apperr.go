// Package apperr defines the typed error kinds surfaced by deskctl and the
// process exit codes they map to.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error. The numeric value of a Kind is the exit code
// used when the error reaches the top of the command tree.
type Kind int

const (
	Internal         Kind = 2
	SessionNotFound  Kind = 3
	UnknownType      Kind = 4
	IncompleteType   Kind = 5
	UnverifiedType   Kind = 6
	InvalidSetting   Kind = 7
	SessionOperation Kind = 8
	TypeOperation    Kind = 9
	Interrupted      Kind = 10
	Timeout          Kind = 11
)

var kindNames = map[Kind]string{
	Internal:         "internal",
	SessionNotFound:  "session not found",
	UnknownType:      "unknown desktop type",
	IncompleteType:   "incomplete desktop type",
	UnverifiedType:   "unverified desktop type",
	InvalidSetting:   "invalid setting",
	SessionOperation: "session operation",
	TypeOperation:    "type operation",
	Interrupted:      "interrupted",
	Timeout:          "timeout",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure carrying a user-facing message and an
// optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether any error in err's chain is an *Error of kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ExitCode maps err to a process exit status. Untyped errors exit 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return int(e.Kind)
	}
	return 1
}

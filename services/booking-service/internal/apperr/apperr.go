// Package apperr classifies booking-service failures so callers (HTTP, gRPC, tests)
// can branch on the kind of failure without string matching.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindInternal covers store and transport failures. It is the zero value so
	// that any unclassified error is treated as unrecoverable.
	KindInternal Kind = iota
	KindInvalidInput
	KindInvalidOperation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindInvalidOperation:
		return "invalid_operation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error carries a human-readable reason suitable for client display.
// Rule names the violated rule or field when there is one.
type Error struct {
	Kind Kind
	Rule string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Rule != "" {
		return e.Rule + ": " + e.Msg
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func InvalidInput(rule, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Rule: rule, Msg: fmt.Sprintf(format, args...)}
}

func InvalidOperation(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidOperation, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Rule: entity, Msg: fmt.Sprintf("%s %q not found", entity, id)}
}

// Conflict reports a race lost at commit time: the rules passed but a
// concurrent writer got there first.
func Conflict(err error, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...), Err: err}
}

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

// RuleOf returns the rule name carried by err, or "" when err is not an *Error.
func RuleOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Rule
	}
	return ""
}

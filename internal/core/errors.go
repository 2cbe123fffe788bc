package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so transports can map them without string matching.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindNotFound       ErrorKind = "not_found"
	KindConflict       ErrorKind = "conflict"
	KindDuplicate      ErrorKind = "duplicate"
	KindExceedsBalance ErrorKind = "exceeds_balance"
	KindUnavailable    ErrorKind = "unavailable"
	KindInternal       ErrorKind = "internal"
)

// Error is the typed error carried across the service boundary.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain.
// Field validation sentinels count as validation errors; anything else is internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, s := range validationSentinels {
		if errors.Is(err, s) {
			return KindValidation
		}
	}
	return KindInternal
}

// MessageOf returns a message suitable for API clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if KindOf(err) == KindValidation {
		return err.Error()
	}
	return "internal error"
}

func Validation(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Message: err.Error(), Err: err}
}

func NotFound(op, what, id string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %s not found", what, id)}
}

func Conflict(op, msg string) error {
	return &Error{Kind: KindConflict, Op: op, Message: msg}
}

func Duplicate(op, msg string) error {
	return &Error{Kind: KindDuplicate, Op: op, Message: msg}
}

func ExceedsBalance(op, msg string) error {
	return &Error{Kind: KindExceedsBalance, Op: op, Message: msg}
}

func Unavailable(op string, err error) error {
	return &Error{Kind: KindUnavailable, Op: op, Message: "service temporarily unavailable", Err: err}
}

package gcp

import (
	"errors"
	"fmt"
)

// Kind classifies failures talking to Google APIs.
type Kind string

const (
	KindAuth      Kind = "auth"
	KindTransport Kind = "transport"
	KindNotFound  Kind = "not_found"
	KindShape     Kind = "shape"
	KindDecode    Kind = "decode"
	// KindInvalid marks a request the store was never asked to serve.
	KindInvalid Kind = "invalid_argument"
)

// Error is the tagged error returned by the token provider and the document stores.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds an Error without an underlying cause.
func NewError(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// WrapError tags err with kind. An err that is already an *Error keeps its original kind.
func WrapError(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return err
	}

	return &Error{Kind: kind, Op: op, Message: message, Cause: err}
}

// IsKind checks whether the first *Error in the chain has the provided kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first *Error in the chain, or "" for untagged errors.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return ""
}

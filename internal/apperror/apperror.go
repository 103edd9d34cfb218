// Package apperror classifies domain errors into the categories callers
// branch on. Domain packages declare their own sentinels with New and keep
// using errors.Is against them; callers that only care about the category
// use IsKind.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind string

const (
	KindValidation              Kind = "validation"
	KindInsufficientBalance     Kind = "insufficient_balance"
	KindReceiptSequenceConflict Kind = "receipt_sequence_conflict"
	KindNotFound                Kind = "not_found"
	KindConflict                Kind = "conflict"
	KindInternal                Kind = "internal"
)

// Error carries a Kind, a stable machine code and an optional cause.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// New declares a sentinel of the given kind.
func New(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

func Validation(code string) *Error          { return New(KindValidation, code) }
func InsufficientBalance(code string) *Error { return New(KindInsufficientBalance, code) }
func NotFound(code string) *Error            { return New(KindNotFound, code) }
func Conflict(code string) *Error            { return New(KindConflict, code) }

// ErrReceiptSequenceConflict is retried inside the receipt sequencer and
// only escapes it wrapped in an internal error.
var ErrReceiptSequenceConflict = New(KindReceiptSequenceConflict, "receipt_sequence_conflict")

// Internal wraps a storage or transport failure. Errors that already carry
// a kind are returned untouched.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: KindInternal, Code: "internal_error", Err: err}
}

// Wrap attaches context to a sentinel while keeping errors.Is on it.
func Wrap(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

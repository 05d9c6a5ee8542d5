package apperr

import (
	"errors"
	"fmt"
)

// Code is a stable, caller-facing identifier for an error variant. Codes
// never change meaning once shipped; a new failure mode gets a new code
// rather than reusing one.
type Code string

const (
	CodeValidation Code = "validation"
	CodeNotFound   Code = "not_found"
	CodeConflict   Code = "conflict"
	CodeResource   Code = "resource"
	CodeCorruption Code = "corruption"
	CodeInternal   Code = "internal"
)

// Error is the tagged variant every public API in this module returns on
// failure. The message is safe to show to a caller for Validation/NotFound/
// Conflict/Resource; Corruption and Internal messages are logged in full by
// the originating package and should be shown to callers only in their
// generic, opaque form (use Opaque()).
type Error struct {
	code    Code
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.err }

// Code returns the stable taxonomy code for this error.
func (e *Error) Code() Code { return e.code }

// Opaque collapses a Corruption or Internal error into the single opaque
// code callers are allowed to see, per the §7 propagation rule. Other
// variants are returned unchanged since they are already safe to surface.
func (e *Error) Opaque() *Error {
	if e.code == CodeCorruption || e.code == CodeInternal {
		return &Error{code: CodeInternal, message: "internal error"}
	}
	return e
}

func newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func wrapf(code Code, err error, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...), err: err}
}

func Validation(format string, args ...any) *Error { return newf(CodeValidation, format, args...) }

func NotFound(format string, args ...any) *Error { return newf(CodeNotFound, format, args...) }

func Conflict(format string, args ...any) *Error { return newf(CodeConflict, format, args...) }

func Resource(format string, args ...any) *Error { return newf(CodeResource, format, args...) }

// Corruption wraps a hard, non-recoverable structural failure: a codec
// decode error, a checksum/magic mismatch, or an invariant violated at read.
func Corruption(err error, format string, args ...any) *Error {
	return wrapf(CodeCorruption, err, format, args...)
}

// Internal wraps any other unexpected failure (tokenizer panic recovered at
// a boundary, worker pool failure, …).
func Internal(err error, format string, args ...any) *Error {
	return wrapf(CodeInternal, err, format, args...)
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.code == code
	}
	return false
}

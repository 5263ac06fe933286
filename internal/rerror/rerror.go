// Package rerror defines the typed error taxonomy shared by every pipeline
// component: config, IO, parse, type, FFI, database, build/probe and the
// assert-like "unexpected" bucket. Each error carries a Kind tag and an
// optional wrapped cause so callers can errors.Is/errors.As their way to the
// root without losing the human-readable chain.
package rerror

import (
	"errors"
	"fmt"
)

// Kind tags the broad category of a failure, matching spec section 7.
type Kind string

const (
	KindConfig     Kind = "config"
	KindIO         Kind = "io"
	KindParse      Kind = "parse"
	KindType       Kind = "type"
	KindFFI        Kind = "ffi"
	KindDatabase   Kind = "database"
	KindProbe      Kind = "probe"
	KindUnexpected Kind = "unexpected"
)

// Error is the common shape for every typed failure in the pipeline.
type Error struct {
	Kind    Kind
	Code    string // short machine-stable code, e.g. "RValueReference"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, rerror.New(KindType, "RValueReference", "")) to
// match on Kind+Code alone, ignoring Message/Cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Code == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// New constructs a typed error with no cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap constructs a typed error chaining an underlying cause.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// WithContext chains an additional message onto an existing error the way
// the teacher's errorfmt helpers compose diagnostic context at every
// boundary, without discarding the original Kind/Code for errors.Is checks.
func WithContext(context string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Code: e.Code, Message: context + ": " + e.Message, Cause: e.Cause}
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Well-known sentinel constructors used across components (spec section 7).

func InvalidName(msg string) *Error   { return New(KindType, "InvalidName", msg) }
func RValueReference(msg string) *Error {
	return New(KindType, "RValueReference", msg)
}
func QFlagsInvalidIndirection(msg string) *Error {
	return New(KindType, "QFlagsInvalidIndirection", msg)
}
func TemplateParameterToFFIAttempt(msg string) *Error {
	return New(KindType, "TemplateParameterToFFIAttempt", msg)
}
func VoidNotExpectedHere(msg string) *Error {
	return New(KindUnexpected, "VoidNotExpectedHere", msg)
}
func FfiNameCollision(msg string) *Error {
	return New(KindFFI, "FfiNameCollision", msg)
}
func ReturnValueArgumentMissing(msg string) *Error {
	return New(KindFFI, "ReturnValueArgumentMissing", msg)
}
func ThisArgumentMissing(msg string) *Error {
	return New(KindFFI, "ThisArgumentMissing", msg)
}
func DatabaseVersionMismatch(msg string) *Error {
	return New(KindDatabase, "DatabaseVersionMismatch", msg)
}
func TemplateInstantiationCycle(msg string) *Error {
	return New(KindType, "TemplateInstantiationCycle", msg)
}
func ToolchainUnusable(msg string) *Error {
	return New(KindProbe, "ToolchainUnusable", msg)
}
func ParseFailed(msg string) *Error {
	return New(KindParse, "ParseFailed", msg)
}
func InvalidWorkspace(msg string) *Error {
	return New(KindConfig, "InvalidWorkspace", msg)
}
func InvalidCrateName(msg string) *Error {
	return New(KindConfig, "InvalidCrateName", msg)
}

// Package fserrors defines the error vocabulary shared by every package in
// this module. It mirrors the DriverError/DiskoError split used throughout
// the pack this module was built from: a small set of named error kinds that
// implement error directly, plus a wrapper that lets callers attach context
// without losing errors.Is/errors.Unwrap compatibility.
package fserrors

import "fmt"

// Kind is a named error category. Every engine-level failure boils down to
// one of these.
type Kind string

const (
	NotFat32           Kind = "not a FAT32 volume"
	UnknownImageFormat Kind = "unknown image format"
	UnknownPath        Kind = "unknown partition or path"
	NotFound           Kind = "no such file or directory"
	CreateFailed       Kind = "directory or FAT allocation failed"
	UsageError         Kind = "usage error"
	HostIoError        Kind = "host I/O error"
	NotADirectory      Kind = "not a directory"
	IsADirectory       Kind = "is a directory"
	AlreadyExists      Kind = "already exists"
	DiskFull           Kind = "no free clusters"
	BadChain           Kind = "cluster chain did not terminate within budget"
)

// Error implements error for a bare Kind so it can be returned or compared
// with errors.Is without ever being wrapped.
func (k Kind) Error() string { return string(k) }

// WithMessage attaches a caller-supplied detail string to a Kind, returning
// an Error whose Unwrap chain still reaches the original Kind.
func (k Kind) WithMessage(message string) *Error {
	return &Error{kind: k, message: message}
}

// Wrap attaches an underlying cause to a Kind. errors.Is(result, k) and
// errors.Is(result, err) both hold.
func (k Kind) Wrap(err error) *Error {
	return &Error{kind: k, cause: err, message: err.Error()}
}

// Error is a Kind decorated with a message and/or an underlying cause.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.message == "" {
		return string(e.kind)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Unwrap lets errors.Is(err, fserrors.NotFound) match through a wrapped
// *Error, and lets errors.As reach a wrapped cause.
func (e *Error) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return e.kind
}

// Is reports whether target is the same Kind this Error carries, so
// errors.Is(err, fserrors.NotFound) works without an explicit Unwrap hop.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.kind
}

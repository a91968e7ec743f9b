// Package errors provides error handling for factgate.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for operator-facing messages
//
// Usage:
//
//	// Wrap with context
//	if err := reg.AddAlias(ctx, id, name); err != nil {
//	    return errors.Wrap(err, "register alias")
//	}
//
//	// Mark a validation failure (CLI exits with code 2)
//	return errors.NewInvalidRequestError("schema %s has no entities", path)
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	Mark          = crdb.Mark
	CombineErrors = crdb.CombineErrors
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// GetStack returns the reportable stack trace attached to err, if any.
var GetStack = crdb.GetReportableStackTrace

// Sentinel errors. Wrap these with errors.Wrap() to add context while
// preserving identity for errors.Is().
var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest marks validation failures: bad arguments, unreadable
	// schema, missing input files, invalid configuration.
	ErrInvalidRequest = New("invalid request")

	// ErrConflict indicates a uniqueness claim was refused
	ErrConflict = New("resource conflict")

	// ErrServiceUnavailable indicates a required store is not available
	ErrServiceUnavailable = New("service unavailable")
)

// Process exit codes shared by every CLI entry point.
const (
	ExitOK         = 0
	ExitInternal   = 1
	ExitValidation = 2
)

// ExitCode maps an error to the CLI exit code convention:
// nil is success, validation failures are 2, anything else is 1.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case Is(err, ErrInvalidRequest):
		return ExitValidation
	default:
		return ExitInternal
	}
}

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// WrapInvalidRequest marks err as a validation failure with context.
// The original error stays reachable through errors.Is.
func WrapInvalidRequest(err error, context string) error {
	if err == nil {
		return nil
	}
	return Wrap(Mark(err, ErrInvalidRequest), context)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

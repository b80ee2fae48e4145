// Package errors provides the coded errors DropIt surfaces to its stores and UI.
//
// Every failure that leaves the remote access layer is one of a small set of
// classes. Callers match classes with errors.Is against the sentinels:
//
//	if errors.Is(err, errors.ErrUnreachable) {
//	    ui.Notify("server offline")
//	}
//
// or inspect the Code and HTTP status:
//
//	var appErr *errors.Error
//	if errors.As(err, &appErr) && appErr.Status == http.StatusNotFound {
//	    ...
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	New    = errors.New
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code identifies an error class.
type Code string

// Error classes.
const (
	CodeUnreachable      Code = "UNREACHABLE"
	CodeHTTP             Code = "HTTP"
	CodeAuthExpired      Code = "AUTH_EXPIRED"
	CodeNotAuthenticated Code = "NOT_AUTHENTICATED"
	CodeValidation       Code = "VALIDATION"
	CodeStorage          Code = "STORAGE"
	CodeNotReady         Code = "NOT_READY"
	CodeDecode           Code = "DECODE"
	CodeRejected         Code = "REJECTED"
)

// Error is a classified error with a human readable message.
type Error struct {
	Code    Code
	Message string
	// Status is the HTTP status for CodeHTTP errors, zero otherwise.
	Status int
	// Details carries per-field validation messages.
	Details map[string]string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	dup := *e
	dup.cause = err
	return &dup
}

// Sentinels for errors.Is.
var (
	ErrUnreachable      = &Error{Code: CodeUnreachable, Message: "cannot reach the DropIt server; check that the backend is running"}
	ErrHTTP             = &Error{Code: CodeHTTP, Message: "request failed"}
	ErrAuthExpired      = &Error{Code: CodeAuthExpired, Message: "authentication expired, please log in again"}
	ErrNotAuthenticated = &Error{Code: CodeNotAuthenticated, Message: "not logged in"}
	ErrValidation       = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrStorage          = &Error{Code: CodeStorage, Message: "local storage failure"}
	ErrNotReady         = &Error{Code: CodeNotReady, Message: "map is not ready"}
	ErrDecode           = &Error{Code: CodeDecode, Message: "malformed server response"}
	ErrRejected         = &Error{Code: CodeRejected, Message: "the server rejected the request"}
)

// Unreachable wraps a transport failure.
func Unreachable(cause error) *Error {
	return ErrUnreachable.WithCause(cause)
}

// HTTP builds an HTTP status error. An empty message becomes "HTTP {status}".
func HTTP(status int, msg string) *Error {
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return &Error{Code: CodeHTTP, Message: msg, Status: status}
}

// Rejected builds the error for an envelope whose success flag is false.
func Rejected(msg string) *Error {
	if msg == "" {
		msg = ErrRejected.Message
	}
	return &Error{Code: CodeRejected, Message: msg}
}

// AuthExpired wraps the failure that ended the session.
func AuthExpired(cause error) *Error {
	return ErrAuthExpired.WithCause(cause)
}

// Validation builds a validation error with per-field details.
func Validation(msg string, details map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Storage wraps a local storage failure.
func Storage(op string, cause error) *Error {
	return &Error{Code: CodeStorage, Message: op, cause: cause}
}

// Decode wraps a response decoding failure.
func Decode(cause error) *Error {
	return ErrDecode.WithCause(cause)
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// Message returns the human readable message of err without its cause chain.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

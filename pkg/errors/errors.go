// Package errors carries the typed error codes shared by the HTTP layer, the
// assignment engine and the workers. Each code maps to an HTTP status, a
// public message and a retry hint.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// CodeNoEligibleCandidate marks a branch with nobody to receive a lead.
	CodeNoEligibleCandidate Code = "NO_ELIGIBLE_CANDIDATE"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

type flag uint8

const (
	retryable flag = 1 << iota
	withDetails
)

func meta(status int, msg string, flags flag) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  msg,
		Retryable:      flags&retryable != 0,
		DetailsAllowed: flags&withDetails != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:          meta(http.StatusBadRequest, "validation failed", withDetails),
	CodeUnauthorized:        meta(http.StatusUnauthorized, "authentication required", 0),
	CodeForbidden:           meta(http.StatusForbidden, "access denied", 0),
	CodeNotFound:            meta(http.StatusNotFound, "resource not found", 0),
	CodeConflict:            meta(http.StatusConflict, "conflict detected", 0),
	CodeStateConflict:       meta(http.StatusUnprocessableEntity, "state transition disallowed", withDetails),
	CodeIdempotency:         meta(http.StatusConflict, "idempotency key reused", withDetails),
	CodeRateLimit:           meta(http.StatusTooManyRequests, "rate limit exceeded", 0),
	CodeInternal:            meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:          meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|withDetails),
	CodeNoEligibleCandidate: meta(http.StatusUnprocessableEntity, "no eligible employee found; please assign manually", withDetails),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error. The message is caller-facing for codes whose
// metadata allows it; the cause is only ever logged.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches cause to a new coded error; a nil cause behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Code is CodeInternal on a nil receiver.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsCode reports whether the first typed error in err's chain carries code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

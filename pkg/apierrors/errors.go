// Package apierrors defines the error kinds shared by the stores, the
// authorization engine and the HTTP handlers.
//
// Every layer returns either an *Error carrying one of the Kinds below or a
// plain wrapped error. Handlers translate an *Error into its HTTP status and
// treat anything else as an internal failure that is logged but never shown
// to the client.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and HTTP mapping
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindDuplicateEmail     Kind = "duplicate_email"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUnauthenticated    Kind = "unauthenticated"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindInvalidRole        Kind = "invalid_role"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal_error"
)

// InternalMessage is the only text clients ever see for internal failures
const InternalMessage = "Internal server error"

// Error is a classified error with a client-safe message
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
// This lets callers write errors.Is(err, apierrors.ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons by kind
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrDuplicateEmail     = &Error{Kind: KindDuplicateEmail}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidRole        = &Error{Kind: KindInvalidRole}
	ErrRateLimited        = &Error{Kind: KindRateLimited}
	ErrInternal           = &Error{Kind: KindInternal}
)

// New creates a classified error
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a classified error that keeps err as its cause
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation creates a 400 validation error
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// DuplicateEmail creates the duplicate-registration error
func DuplicateEmail() *Error {
	return New(KindDuplicateEmail, "Email already registered")
}

// InvalidCredentials creates the generic login failure.
// The same message is used for unknown emails and wrong passwords.
func InvalidCredentials() *Error {
	return New(KindInvalidCredentials, "Invalid email or password")
}

// Unauthenticated creates a 401 error
func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, message)
}

// Forbidden creates a 403 error
func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// NotFound creates a 404 error
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// InvalidRole creates the role validation error
func InvalidRole() *Error {
	return New(KindInvalidRole, "Role must be either 'user' or 'admin'")
}

// Internal wraps an unexpected failure
func Internal(err error) *Error {
	return Wrap(KindInternal, InternalMessage, err)
}

// KindOf returns the kind of err, or KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPStatus maps a kind to its response status
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindDuplicateEmail, KindInvalidCredentials, KindInvalidRole:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Status returns the HTTP status and client-safe message for any error.
// Unclassified errors and KindInternal never expose their cause.
func Status(err error) (int, string) {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return http.StatusInternalServerError, InternalMessage
	}
	return e.Kind.HTTPStatus(), e.Message
}

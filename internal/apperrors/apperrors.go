// Package apperrors carries the error taxonomy surfaced by the API.
// Every failure a request can hit maps onto one Kind; the HTTP layer
// translates kinds to status codes and never leaks internal detail.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a request failure.
type Kind string

const (
	ValidationFailed           Kind = "validation_failed"
	Unauthenticated            Kind = "unauthenticated"
	InvalidCredential          Kind = "invalid_credential"
	Forbidden                  Kind = "forbidden"
	LastSuperadminViolation    Kind = "last_superadmin_violation"
	SuperadminCeilingViolation Kind = "superadmin_ceiling_violation"
	UnknownParticipant         Kind = "unknown_participant"
	EmptyGroup                 Kind = "empty_group"
	DuplicateGroupName         Kind = "duplicate_group_name"
	NotFound                   Kind = "not_found"
	StoreUnavailable           Kind = "store_unavailable"
)

// Error is a classified, user-presentable failure.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error with a fixed detail message.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Newf builds an Error with a formatted detail message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and detail to an underlying error.
func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the Kind from err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// DetailOf extracts the user-presentable detail from err. Unclassified
// errors yield a generic message so internals stay behind the trust
// boundary.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return "internal error"
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a kind onto the response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case ValidationFailed:
		return http.StatusBadRequest
	case Unauthenticated, InvalidCredential:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case LastSuperadminViolation, SuperadminCeilingViolation, DuplicateGroupName:
		return http.StatusConflict
	case UnknownParticipant, EmptyGroup:
		return http.StatusUnprocessableEntity
	case StoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Package apperr provides standardized domain error types for the application.
// Domain services return these typed errors, and the HTTP layer
// maps them to appropriate HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a record does not exist or is soft-deleted.
	KindNotFound
	// KindValidation indicates malformed or out-of-range input, detected before any store access.
	KindValidation
	// KindInvalidReference indicates a referenced catalog entry (strain, substrate, code) does not exist.
	KindInvalidReference
	// KindInvalidTransition indicates a status change that is not an edge of the lifecycle graph,
	// or a caller whose expected status is stale.
	KindInvalidTransition
	// KindNoEligibleBaglets indicates a bulk operation matched zero rows.
	KindNoEligibleBaglets
	// KindStorage indicates the underlying transaction could not commit.
	KindStorage
	// KindForbidden indicates the action is not allowed for the user.
	KindForbidden
	// KindUnauthorized indicates authentication is required or failed.
	KindUnauthorized
	// KindBadRequest indicates a malformed request (transport level).
	KindBadRequest
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

// String returns the taxonomy name used in logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "invalid_input"
	case KindInvalidReference:
		return "invalid_reference"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindNoEligibleBaglets:
		return "no_eligible_baglets"
	case KindStorage:
		return "storage_failure"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string      // Operation that failed (optional)
	Err     error       // Underlying error (optional)
	Details interface{} // Additional details for response (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindInvalidReference:
		return http.StatusUnprocessableEntity
	case KindInvalidTransition, KindNoEligibleBaglets:
		return http.StatusConflict
	case KindStorage:
		return http.StatusServiceUnavailable
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails returns the error with additional details.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Convenience constructors for common error types.

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates an invalid input error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// InvalidReference creates an error for a missing catalog reference.
func InvalidReference(message string) *Error {
	return New(KindInvalidReference, message)
}

// TransitionDetails is attached to InvalidTransition errors so callers can
// render which move was refused.
type TransitionDetails struct {
	CurrentStatus   string `json:"currentStatus"`
	RequestedStatus string `json:"requestedStatus"`
}

// InvalidTransition creates an error for a refused status change.
func InvalidTransition(current, requested string) *Error {
	return New(KindInvalidTransition, fmt.Sprintf("cannot transition from %s to %s", current, requested)).
		WithDetails(TransitionDetails{CurrentStatus: current, RequestedStatus: requested})
}

// NoEligibleBaglets creates an error for an empty bulk cohort.
func NoEligibleBaglets(message string) *Error {
	return New(KindNoEligibleBaglets, message)
}

// Storage wraps a store failure. The original error stays reachable through Unwrap.
func Storage(op string, err error) *Error {
	return Wrap(KindStorage, "storage failure", err).WithOp(op)
}

// Forbidden creates a forbidden error.
func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// BadRequest creates a bad request error.
func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

// Internal creates an internal server error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// GetKind extracts the error kind from an error chain.
// Returns KindUnknown if no *Error is found.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err is an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// AsStorage passes typed errors through and converts anything else into a
// KindStorage error, so service boundaries raise exactly one taxonomy kind.
func AsStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Storage(op, err)
}

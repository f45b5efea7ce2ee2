package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spec-kit/returnflow/internal/repository"
	"github.com/spec-kit/returnflow/internal/session"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewTooManyRequests(message string) error {
	return NewDomainError("TOO_MANY_REQUESTS", message, http.StatusTooManyRequests, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts errors from the lower layers to a DomainError.
// Unrecognised errors become INTERNAL_ERROR.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var dup *repository.DuplicateReturnError
	switch {
	case errors.As(err, &dup):
		return wrap(NewConflict("an open return already exists for this item", map[string]any{"return_id": dup.ReturnID}), err)
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, session.ErrNotFound):
		return wrap(NewNotFound("resource", nil), err)
	case errors.Is(err, repository.ErrInvalidTransition):
		return wrap(NewConflict("status transition not allowed", nil), err)
	case errors.Is(err, repository.ErrConflict), errors.Is(err, session.ErrVersionConflict):
		return wrap(NewConflict("resource was modified concurrently", nil), err)
	}
	return NewInternalError(err).(*DomainError)
}

func wrap(err error, cause error) *DomainError {
	de := err.(*DomainError)
	de.Err = cause
	return de
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	return ToDomainError(err)
}

package app

import (
	"errors"
	"fmt"
	"net/http"

	"lexdesk/api/internal/auth"
	"lexdesk/api/internal/damages"
	"lexdesk/api/internal/drafts"
	"lexdesk/api/internal/export"
	"lexdesk/api/internal/intake"
	"lexdesk/api/internal/session"
	"lexdesk/api/internal/store"
)

const (
	codeNotFound          = "NOT_FOUND"
	codeIllegalTransition = "ILLEGAL_TRANSITION"
	codeValidation        = "VALIDATION_FAILED"
	codeExternal          = "EXTERNAL_DEPENDENCY_FAILED"
	codeUnauthorized      = "UNAUTHORIZED"
	codeForbidden         = "FORBIDDEN"
	codeConflict          = "CONFLICT"
	codeInvalidBody       = "INVALID_BODY"
	codeServerError       = "SERVER_ERROR"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFoundError(what string) *DomainError {
	return domainError(http.StatusNotFound, codeNotFound, what+" not found", nil)
}

func validationError(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, codeValidation, message, details)
}

// mapError translates service errors to status, code, message and details.
// Unknown errors become a generic 500 so internals never reach the client.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var transitionErr *intake.TransitionError
	if errors.As(err, &transitionErr) {
		return http.StatusConflict, codeIllegalTransition, transitionErr.Error(), map[string]any{
			"from": transitionErr.From,
			"to":   transitionErr.To,
		}
	}
	var leadErr *intake.LeadValidationError
	if errors.As(err, &leadErr) {
		return http.StatusUnprocessableEntity, codeValidation, leadErr.Error(), map[string]any{"missing": leadErr.Missing}
	}
	var inputErr *damages.InputError
	if errors.As(err, &inputErr) {
		return http.StatusUnprocessableEntity, codeValidation, "Invalid input", map[string]any{"fields": inputErr.Fields}
	}

	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, drafts.ErrVersionNotFound):
		return http.StatusNotFound, codeNotFound, "Not found", nil
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, codeConflict, "Already exists", nil
	case errors.Is(err, store.ErrInvalidCursor):
		return http.StatusBadRequest, codeValidation, "Invalid cursor", nil
	case errors.Is(err, intake.ErrIllegalTransition):
		return http.StatusConflict, codeIllegalTransition, err.Error(), nil
	case errors.Is(err, intake.ErrLeadFieldsMissing),
		errors.Is(err, intake.ErrInvalidStatus),
		errors.Is(err, intake.ErrInvalidPayload),
		errors.Is(err, damages.ErrInvalidInput),
		errors.Is(err, auth.ErrWeakPassword):
		return http.StatusUnprocessableEntity, codeValidation, err.Error(), nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, codeValidation, err.Error(), nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, codeExternal, err.Error(), nil
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, session.ErrSessionNotFound):
		return http.StatusUnauthorized, codeUnauthorized, "Unauthorized", nil
	}
	return http.StatusInternalServerError, codeServerError, "Server error", nil
}

// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package) and the translation of
// service-layer errors into those responses. The codes give clients a stable,
// machine-readable taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common
//     HTTP status semantics to aid interoperability.
//   - invalid_state marks operations that are not valid for the resource's
//     current state-machine position (cancel on a non-indexing project,
//     an illegal billing transition, indexing without a mailbox).
//   - All error responses carry both an HTTP status and one of these codes.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "message": "share already exists"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitewise/go-project-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeInvalidState     = "invalid_state"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeUnavailable      = "service_unavailable"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// failFromService translates a service-layer error into the standard HTTP
// envelope. Handlers call it after any service method; errors outside the
// service taxonomy fall through to a 500.
func failFromService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrChatNotFound),
		errors.Is(err, services.ErrMessageNotFound),
		errors.Is(err, services.ErrShareNotFound),
		errors.Is(err, services.ErrOfferingNotFound),
		errors.Is(err, services.ErrQuoteNotFound),
		errors.Is(err, services.ErrLeadNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())

	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())

	case errors.Is(err, services.ErrInvalidSegment),
		errors.Is(err, services.ErrInvalidSize),
		errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrTooLong),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidPermission),
		errors.Is(err, services.ErrInvalidProvider),
		errors.Is(err, services.ErrInvalidOffering),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrProjectNotIndexed):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())

	case errors.Is(err, services.ErrNoMailboxConnection):
		fail(c, http.StatusPreconditionFailed, ErrCodeInvalidState, err.Error())

	case errors.Is(err, services.ErrIndexingInProgress),
		errors.Is(err, services.ErrDuplicateShare),
		errors.Is(err, services.ErrDuplicateOffering):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())

	case errors.Is(err, services.ErrNotIndexing),
		errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidState, err.Error())

	case errors.Is(err, services.ErrServiceUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())

	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response utilities shared by every endpoint: the
// structured error envelope, consistent JSON serialization, and helpers for
// the common success shapes. Every failure a client can observe goes through
// fail(), so the envelope and its logging behavior stay uniform whether the
// error came from request validation, a service sentinel, or a panic.
//
// Conventions:
//   - All error responses return an ErrorResponse with a stable `code`.
//   - `fail()` centralizes formatting and logs 5xx responses with request
//     context; 4xx responses are the client's problem and are logged only by
//     the access log.
//   - `ok()` and `noContent()` write the success shapes.
//   - The one exception is the search stream: once SSE output is committed,
//     failures become terminal stream events instead of envelopes (see
//     SearchProjectStream).
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "project not found"
//	}
//
// Example success response:
//
//	HTTP/1.1 200 OK
//	{ "id": "abc123", "name": "Maple Street Duplex" }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitewise/go-project-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// Fields:
//   - RequestID: correlation ID echoed from the X-Request-ID header, used to
//     tie a client-side failure to its server logs.
//   - Code: a stable, machine-readable string (see errors.go constants).
//   - Message: a human-readable description, safe to display to users. Never
//     carries raw upstream or database error text.
//
// This struct is referenced by the Swagger annotations on every endpoint.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"project not found"`
}

// fail aborts the request with a structured error envelope.
//
// Server errors (>= 500) are logged through the request-scoped logger with
// the matched route for triage. A 503 additionally carries Retry-After: the
// only source of 503s here is an AI backend outage, which is transient, and
// well-behaved clients should back off briefly rather than hammer a route
// that cannot succeed yet.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("route", c.FullPath()).
			Str("message", msg).
			Msg("api error")
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "5")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(). The router's NoRoute/NoMethod
// handlers use it so unmatched requests share the envelope without reaching
// into unexported helpers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response with the given status code.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response, used by deletes and
// other operations with nothing to return.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

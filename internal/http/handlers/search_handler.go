// Search HTTP handlers.
//
//   - POST /projects/{id}/search         (synchronous question answering)
//   - POST /projects/{id}/search/stream  (server-sent event stream)
//
// Both endpoints proxy the indexing backend's retrieval pipeline. The stream
// variant relays backend events token by token; the SSE response is only
// committed once the first event arrives, so access and state errors still
// reach the client as ordinary JSON.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitewise/go-project-backend/internal/aiclient"
	"github.com/sitewise/go-project-backend/internal/http/middleware"
	"github.com/sitewise/go-project-backend/internal/sse"
)

//
// Service contracts (context-aware)
//

// SearchService answers questions against a project's indexed content.
type SearchService interface {
	// Search runs a blocking retrieval query and returns the full answer.
	Search(ctx context.Context, userID, email, projectID, question string, topK int) (*aiclient.SearchResult, error)
	// SearchStream relays backend stream events through onEvent. A non-nil
	// return from onEvent aborts the relay.
	SearchStream(ctx context.Context, userID, email, projectID, question string, topK int, onEvent func(event string, data []byte) error) error
}

//
// DTOs
//

// SearchRequest is the JSON payload for both search endpoints.
type SearchRequest struct {
	// Question in natural language. Required.
	Question string `json:"question" binding:"required" example:"What did the electrician quote for the panel upgrade?"`
	// TopK caps the number of retrieved sources. Zero selects the backend
	// default.
	TopK int `json:"top_k" example:"5"`
}

//
// Handlers
//

// SearchProject godoc
// @ID          searchProject
// @Summary     Search a project
// @Description Runs a retrieval query against the project's indexed content and returns the answer with its sources and timing breakdown.
// @Tags        Search
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Project ID (UUID)"  format(uuid)
// @Param       body  body  handlers.SearchRequest  true  "Search payload"
//
// @Success     200  {object}  aiclient.SearchResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or project never indexed"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Search backend unavailable"
// @Router      /projects/{id}/search [post]
func (h *Handlers) SearchProject(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := uuid.Parse(projectID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project id must be a UUID")
		return
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question required")
		return
	}

	uid, email := principal(c)
	res, err := h.search.Search(c.Request.Context(), uid, email, projectID, req.Question, req.TopK)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// SearchProjectStream godoc
// @ID          searchProjectStream
// @Summary     Search a project over SSE
// @Description Streams the retrieval pipeline as server-sent events: thinking updates, one sources event, answer chunks, then a terminal done or error event. Errors raised before the first event produce a plain JSON error response instead of a stream.
// @Tags        Search
// @Accept      json
// @Produce     text/event-stream
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Project ID (UUID)"  format(uuid)
// @Param       body  body  handlers.SearchRequest  true  "Search payload"
//
// @Success     200  {string}  string  "event stream"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or project never indexed"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Search backend unavailable"
// @Router      /projects/{id}/search/stream [post]
func (h *Handlers) SearchProjectStream(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := uuid.Parse(projectID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project id must be a UUID")
		return
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question required")
		return
	}

	uid, email := principal(c)

	// The writer is created on the first event. Until then the response is
	// uncommitted and failures can use the normal JSON envelope.
	var (
		sw       *sse.Writer
		terminal bool
	)
	defer func() {
		if sw != nil {
			middleware.StreamClosed()
		}
	}()

	relay := func(event string, data []byte) error {
		if sw == nil {
			w, err := sse.NewWriter(c.Writer)
			if err != nil {
				return err
			}
			sw = w
			middleware.StreamOpened()
		}
		if event == sse.EventDone || event == sse.EventError {
			terminal = true
		}
		return sw.Send(event, data)
	}

	err := h.search.SearchStream(c.Request.Context(), uid, email, projectID, req.Question, req.TopK, relay)
	if err == nil {
		return
	}
	if sw == nil {
		failFromService(c, err)
		return
	}
	// The stream is already committed. Clients expect exactly one terminal
	// event, so synthesize one unless the backend already sent it or the
	// client went away.
	middleware.LoggerFrom(c).Error().
		Err(err).
		Str("project_id", projectID).
		Msg("search stream aborted")
	if !terminal && c.Request.Context().Err() == nil {
		_ = sw.SendJSON(sse.EventError, sse.ErrorData{Message: "stream interrupted"})
	}
}

// Indexing HTTP handlers.
//
//   - POST /projects/{id}/index         (start a run)
//   - GET  /projects/{id}/index/status  (poll progress)
//   - POST /projects/{id}/index/cancel  (request cancellation)
//
// Indexing is asynchronous: POST returns 202 with the project snapshot and the
// caller polls the status endpoint. Cancel is advisory only, the backend may
// already have finished.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// IndexingService drives content indexing runs for a project.
type IndexingService interface {
	// Start launches an indexing run. Requires a connected mailbox.
	Start(ctx context.Context, userID, email, projectID string) (*domain.Project, error)
	// Status reports the live progress of the current or last run.
	Status(ctx context.Context, userID, email, projectID string) (*services.IndexingSnapshot, error)
	// Cancel asks the backend to stop the in-flight run.
	Cancel(ctx context.Context, userID, email, projectID string) (*services.CancelResult, error)
}

//
// Handlers
//

// StartIndexing godoc
// @ID          startIndexing
// @Summary     Start indexing a project
// @Description Launches an asynchronous indexing run over the caller's connected mailbox. Returns the project with the run already marked in progress.
// @Tags        Indexing
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Project ID (UUID)"  format(uuid)
//
// @Success     202  {object}  domain.Project
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Indexing already in progress"
// @Failure     412  {object}  handlers.ErrorResponse  "No mailbox connection"
// @Failure     503  {object}  handlers.ErrorResponse  "Indexing backend unavailable"
// @Router      /projects/{id}/index [post]
func (h *Handlers) StartIndexing(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := uuid.Parse(projectID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project id must be a UUID")
		return
	}

	uid, email := principal(c)
	p, err := h.indexing.Start(c.Request.Context(), uid, email, projectID)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusAccepted, p)
}

// IndexingStatus godoc
// @ID          indexingStatus
// @Summary     Poll indexing progress
// @Description Returns the progress snapshot of the current or most recent indexing run. While a run is active this reflects the backend's live state.
// @Tags        Indexing
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Project ID (UUID)"  format(uuid)
//
// @Success     200  {object}  services.IndexingSnapshot
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Router      /projects/{id}/index/status [get]
func (h *Handlers) IndexingStatus(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := uuid.Parse(projectID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project id must be a UUID")
		return
	}

	uid, email := principal(c)
	snap, err := h.indexing.Status(c.Request.Context(), uid, email, projectID)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// CancelIndexing godoc
// @ID          cancelIndexing
// @Summary     Cancel an indexing run
// @Description Requests cancellation of the in-flight run. Cancellation is advisory: the run may complete before the backend honors it.
// @Tags        Indexing
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Project ID (UUID)"  format(uuid)
//
// @Success     202  {object}  services.CancelResult
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Project is not indexing"
// @Router      /projects/{id}/index/cancel [post]
func (h *Handlers) CancelIndexing(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := uuid.Parse(projectID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project id must be a UUID")
		return
	}

	uid, email := principal(c)
	res, err := h.indexing.Cancel(c.Request.Context(), uid, email, projectID)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusAccepted, res)
}

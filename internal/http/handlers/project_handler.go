// Project HTTP handlers.
//
// This file exposes REST endpoints for project resources:
//   - POST   /projects       (create)
//   - GET    /projects       (own + shared with the caller)
//   - GET    /projects/{id}  (owner or any share)
//   - PUT    /projects/{id}  (owner or edit share)
//   - DELETE /projects/{id}  (owner only)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
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

// ProjectService defines project lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ProjectService interface {
	// Create inserts a project owned by the caller.
	Create(ctx context.Context, userID, email string, in services.ProjectInput) (*domain.Project, error)
	// List returns the caller's own projects, newest first.
	List(ctx context.Context, userID string) ([]domain.Project, error)
	// ListSharedWith returns the projects shared with the caller's email.
	ListSharedWith(ctx context.Context, email string) ([]domain.Project, error)
	// Get returns one project the caller owns or that is shared with them.
	Get(ctx context.Context, userID, email, projectID string) (*domain.Project, error)
	// Update applies a partial update for the owner or an edit-level share.
	Update(ctx context.Context, userID, email, projectID string, upd services.ProjectUpdate) (*domain.Project, error)
	// Delete soft-deletes an owned project.
	Delete(ctx context.Context, userID, projectID string) error
}

//
// DTOs
//

// CreateProjectRequest is the JSON payload for creating a project.
type CreateProjectRequest struct {
	// Name is the human-readable project name. Required.
	Name string `json:"name" binding:"required,min=1,max=255" example:"Maple Street Duplex"`
	// Street..PostalCode describe the project address; Region and Country
	// drive vendor matching. Country defaults to CA when omitted.
	Street     string `json:"street" example:"412 Maple St"`
	City       string `json:"city" example:"Toronto"`
	Region     string `json:"region" example:"ON"`
	Country    string `json:"country" example:"CA"`
	PostalCode string `json:"postal_code" example:"M4E 2V6"`
	// SquareFeet may be zero for projects sized later, never negative.
	SquareFeet float64 `json:"square_feet" example:"2400"`
}

// UpdateProjectRequest is the JSON payload for a partial project update.
// Absent fields are left unchanged.
type UpdateProjectRequest struct {
	Name       *string  `json:"name,omitempty"`
	Street     *string  `json:"street,omitempty"`
	City       *string  `json:"city,omitempty"`
	Region     *string  `json:"region,omitempty"`
	Country    *string  `json:"country,omitempty"`
	PostalCode *string  `json:"postal_code,omitempty"`
	SquareFeet *float64 `json:"square_feet,omitempty"`
}

// ListProjectsResponse contains the caller's own projects and the projects
// other owners have shared with them.
type ListProjectsResponse struct {
	Projects     []domain.Project `json:"projects"`
	SharedWithMe []domain.Project `json:"shared_with_me"`
}

//
// Handlers
//

// CreateProject godoc
// @ID          createProject
// @Summary     Create a new project
// @Description Creates a project owned by the current user and returns the project resource.
// @Tags        Projects
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.CreateProjectRequest  true  "Create project payload"
//
// @Success     201  {object}  domain.Project
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /projects [post]
func (h *Handlers) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		return
	}

	uid, email := principal(c)
	p, err := h.projects.Create(c.Request.Context(), uid, email, services.ProjectInput{
		Name:       req.Name,
		Street:     req.Street,
		City:       req.City,
		Region:     req.Region,
		Country:    req.Country,
		PostalCode: req.PostalCode,
		SquareFeet: req.SquareFeet,
	})
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// ListProjects godoc
// @ID          listProjects
// @Summary     List projects
// @Description Returns the caller's own projects and the projects shared with them.
// @Tags        Projects
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  handlers.ListProjectsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /projects [get]
func (h *Handlers) ListProjects(c *gin.Context) {
	ctx := c.Request.Context()
	uid, email := principal(c)

	own, err := h.projects.List(ctx, uid)
	if err != nil {
		failFromService(c, err)
		return
	}
	shared, err := h.projects.ListSharedWith(ctx, email)
	if err != nil {
		failFromService(c, err)
		return
	}
	if own == nil {
		own = []domain.Project{}
	}
	if shared == nil {
		shared = []domain.Project{}
	}
	ok(c, http.StatusOK, ListProjectsResponse{Projects: own, SharedWithMe: shared})
}

// GetProject godoc
// @ID          getProject
// @Summary     Get a project
// @Description Returns one project the caller owns or that is shared with them.
// @Tags        Projects
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Project ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Project
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Router      /projects/{id} [get]
func (h *Handlers) GetProject(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := uuid.Parse(projectID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project id must be a UUID")
		return
	}

	uid, email := principal(c)
	p, err := h.projects.Get(c.Request.Context(), uid, email, projectID)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdateProject godoc
// @ID          updateProject
// @Summary     Update a project
// @Description Applies a partial update. Requires ownership or an edit-level share.
// @Tags        Projects
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Project ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateProjectRequest  true  "Fields to update"
//
// @Success     200  {object}  domain.Project
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Router      /projects/{id} [put]
func (h *Handlers) UpdateProject(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := uuid.Parse(projectID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project id must be a UUID")
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	uid, email := principal(c)
	p, err := h.projects.Update(c.Request.Context(), uid, email, projectID, services.ProjectUpdate{
		Name:       req.Name,
		Street:     req.Street,
		City:       req.City,
		Region:     req.Region,
		Country:    req.Country,
		PostalCode: req.PostalCode,
		SquareFeet: req.SquareFeet,
	})
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// DeleteProject godoc
// @ID          deleteProject
// @Summary     Delete a project
// @Description Soft-deletes an owned project. The backend namespace is removed best effort.
// @Tags        Projects
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Project ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Router      /projects/{id} [delete]
func (h *Handlers) DeleteProject(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := uuid.Parse(projectID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project id must be a UUID")
		return
	}

	uid, _ := principal(c)
	if err := h.projects.Delete(c.Request.Context(), uid, projectID); err != nil {
		failFromService(c, err)
		return
	}
	noContent(c)
}

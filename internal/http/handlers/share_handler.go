// Project share HTTP handlers.
//
//   - POST   /projects/{id}/shares            (grant access)
//   - GET    /projects/{id}/shares            (list grants)
//   - DELETE /projects/{id}/shares/{shareID}  (revoke)
//
// Only the project owner manages shares. Grantees are identified by email so
// a project can be shared before the recipient ever signs in.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitewise/go-project-backend/internal/domain"
)

//
// Service contracts (context-aware)
//

// ShareService manages access grants on a project.
type ShareService interface {
	// Share grants view or edit access to an email address.
	Share(ctx context.Context, userID, projectID, shareEmail, permission string) (*domain.ProjectShare, error)
	// ListShares returns the grants on an owned project.
	ListShares(ctx context.Context, userID, projectID string) ([]domain.ProjectShare, error)
	// Unshare revokes a grant by its id.
	Unshare(ctx context.Context, userID, projectID, shareID string) error
}

//
// DTOs
//

// CreateShareRequest is the JSON payload for granting project access.
type CreateShareRequest struct {
	// Email of the grantee. Stored lowercased.
	Email string `json:"email" binding:"required" example:"partner@example.com"`
	// Permission is "view" or "edit". Defaults to "view" when omitted.
	Permission string `json:"permission" example:"view"`
}

// ListSharesResponse wraps the grants on a project.
type ListSharesResponse struct {
	Shares []domain.ProjectShare `json:"shares"`
}

//
// Handlers
//

// CreateShare godoc
// @ID          createShare
// @Summary     Share a project
// @Description Grants view or edit access on an owned project to an email address.
// @Tags        Shares
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Project ID (UUID)"  format(uuid)
// @Param       body  body  handlers.CreateShareRequest  true  "Share payload"
//
// @Success     201  {object}  domain.ProjectShare
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Share already exists"
// @Router      /projects/{id}/shares [post]
func (h *Handlers) CreateShare(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := uuid.Parse(projectID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project id must be a UUID")
		return
	}

	var req CreateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email required")
		return
	}
	if req.Permission == "" {
		req.Permission = domain.PermissionView
	}

	uid, _ := principal(c)
	share, err := h.shares.Share(c.Request.Context(), uid, projectID, req.Email, req.Permission)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, share)
}

// ListShares godoc
// @ID          listShares
// @Summary     List project shares
// @Description Returns the access grants on an owned project.
// @Tags        Shares
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Project ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.ListSharesResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Router      /projects/{id}/shares [get]
func (h *Handlers) ListShares(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := uuid.Parse(projectID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project id must be a UUID")
		return
	}

	uid, _ := principal(c)
	shares, err := h.shares.ListShares(c.Request.Context(), uid, projectID)
	if err != nil {
		failFromService(c, err)
		return
	}
	if shares == nil {
		shares = []domain.ProjectShare{}
	}
	ok(c, http.StatusOK, ListSharesResponse{Shares: shares})
}

// DeleteShare godoc
// @ID          deleteShare
// @Summary     Revoke a project share
// @Description Removes an access grant from an owned project.
// @Tags        Shares
// @Produce     json
// @Security    BearerAuth
//
// @Param       id       path  string  true  "Project ID (UUID)"  format(uuid)
// @Param       shareID  path  string  true  "Share ID (UUID)"    format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Share not found"
// @Router      /projects/{id}/shares/{shareID} [delete]
func (h *Handlers) DeleteShare(c *gin.Context) {
	projectID := c.Param("id")
	shareID := c.Param("shareID")
	if _, err := uuid.Parse(projectID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project id must be a UUID")
		return
	}
	if _, err := uuid.Parse(shareID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "share id must be a UUID")
		return
	}

	uid, _ := principal(c)
	if err := h.shares.Unshare(c.Request.Context(), uid, projectID, shareID); err != nil {
		failFromService(c, err)
		return
	}
	noContent(c)
}

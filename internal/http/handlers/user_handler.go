// User profile HTTP handlers.
//
//   - GET    /user/info                      (profile + connection flags)
//   - PUT    /user/info                      (partial profile update)
//   - POST   /user/connections/{provider}    (store a mailbox credential)
//   - DELETE /user/connections/{provider}    (drop a mailbox credential)
//
// Credentials are write-only: responses expose boolean connection flags but
// never the stored secrets. Every mutation returns the refreshed profile.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// UserService manages the caller's profile and mailbox connections.
type UserService interface {
	// Profile returns the caller's profile, creating an empty row on first
	// access.
	Profile(ctx context.Context, userID, email string) (*domain.UserInfo, error)
	// UpdateProfile applies a partial profile update.
	UpdateProfile(ctx context.Context, userID, email string, upd services.ProfileUpdate) (*domain.UserInfo, error)
	// ConnectMailbox stores a credential for "gmail" or "outlook".
	ConnectMailbox(ctx context.Context, userID, email, provider, credential string) (*domain.UserInfo, error)
	// DisconnectMailbox drops the stored credential for a provider.
	DisconnectMailbox(ctx context.Context, userID, email, provider string) (*domain.UserInfo, error)
}

//
// DTOs
//

// UpdateProfileRequest is the JSON payload for a partial profile update.
// Absent fields are left unchanged.
type UpdateProfileRequest struct {
	FullName    *string `json:"full_name,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}

// ConnectMailboxRequest is the JSON payload for storing a mailbox credential.
type ConnectMailboxRequest struct {
	// Credential is the provider token as issued by the OAuth flow. Stored
	// verbatim, never echoed back.
	Credential string `json:"credential" binding:"required"`
}

//
// Handlers
//

// GetUserInfo godoc
// @ID          getUserInfo
// @Summary     Get the caller's profile
// @Description Returns the profile row with its mailbox connection flags. A first call creates an empty profile.
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  domain.UserInfo
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /user/info [get]
func (h *Handlers) GetUserInfo(c *gin.Context) {
	uid, email := principal(c)
	u, err := h.users.Profile(c.Request.Context(), uid, email)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateUserInfo godoc
// @ID          updateUserInfo
// @Summary     Update the caller's profile
// @Description Applies a partial update to the profile and returns the refreshed row.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.UpdateProfileRequest  true  "Fields to update"
//
// @Success     200  {object}  domain.UserInfo
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /user/info [put]
func (h *Handlers) UpdateUserInfo(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	uid, email := principal(c)
	u, err := h.users.UpdateProfile(c.Request.Context(), uid, email, services.ProfileUpdate{
		FullName:    req.FullName,
		CompanyName: req.CompanyName,
		Phone:       req.Phone,
	})
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// ConnectMailbox godoc
// @ID          connectMailbox
// @Summary     Connect a mailbox
// @Description Stores a mailbox credential for gmail or outlook, enabling content indexing over that account.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       provider  path  string  true  "Mailbox provider"  Enums(gmail, outlook)
// @Param       body      body  handlers.ConnectMailboxRequest  true  "Provider credential"
//
// @Success     200  {object}  domain.UserInfo
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown provider or missing credential"
// @Router      /user/connections/{provider} [post]
func (h *Handlers) ConnectMailbox(c *gin.Context) {
	var req ConnectMailboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "credential required")
		return
	}

	uid, email := principal(c)
	u, err := h.users.ConnectMailbox(c.Request.Context(), uid, email, c.Param("provider"), req.Credential)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// DisconnectMailbox godoc
// @ID          disconnectMailbox
// @Summary     Disconnect a mailbox
// @Description Drops the stored credential for a provider. Projects indexed from it keep their indexes.
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
//
// @Param       provider  path  string  true  "Mailbox provider"  Enums(gmail, outlook)
//
// @Success     200  {object}  domain.UserInfo
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown provider"
// @Router      /user/connections/{provider} [delete]
func (h *Handlers) DisconnectMailbox(c *gin.Context) {
	uid, email := principal(c)
	u, err := h.users.DisconnectMailbox(c.Request.Context(), uid, email, c.Param("provider"))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

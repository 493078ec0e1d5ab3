// Chat HTTP handlers.
//
//   - POST   /chats               (create, optionally bound to a project)
//   - GET    /chats               (paginated, or filtered by project)
//   - GET    /chats/{id}          (one chat)
//   - PUT    /chats/{id}/title    (rename)
//   - DELETE /chats/{id}          (soft delete)
//   - GET    /chats/{id}/context  (summary + recent window for generation)
//   - POST   /chats/{id}/summary  (force a summary refresh)
//
// Chats are private to their owner. A chat bound to a project additionally
// requires view access to that project at creation and listing time.
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

// ChatService defines chat lifecycle operations consumed by HTTP handlers.
type ChatService interface {
	// Create inserts a chat, normalizing the title and checking project
	// access when projectID is set.
	Create(ctx context.Context, userID, email, title string, projectID *string) (*domain.Chat, error)
	// ListPage returns one page of the caller's chats plus the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error)
	// ListByProject returns the caller's chats bound to one project.
	ListByProject(ctx context.Context, userID, email, projectID string) ([]domain.Chat, error)
	// Get returns a chat owned by the caller.
	Get(ctx context.Context, userID, chatID string) (*domain.Chat, error)
	// UpdateTitle renames an owned chat.
	UpdateTitle(ctx context.Context, userID, chatID, title string) error
	// Delete soft-deletes an owned chat.
	Delete(ctx context.Context, userID, chatID string) error
	// Context assembles the summary, recent window, and project linkage.
	Context(ctx context.Context, userID, chatID string) (*services.ChatContext, error)
	// Resummarize refreshes the rolling summary, unconditionally when force
	// is set.
	Resummarize(ctx context.Context, userID, chatID string, force bool) (*domain.Chat, error)
}

//
// DTOs
//

// CreateChatRequest is the JSON payload for creating a chat.
type CreateChatRequest struct {
	// Title may be blank; a default is applied.
	Title string `json:"title" example:"Panel upgrade questions"`
	// ProjectID optionally binds the chat to a project the caller can view.
	ProjectID *string `json:"project_id,omitempty"`
}

// UpdateChatTitleRequest is the JSON payload for renaming a chat.
type UpdateChatTitleRequest struct {
	Title string `json:"title" binding:"required" example:"Framing quotes"`
}

// ListChatsResponse is a page of chats with pagination metadata. Filtered
// listings come back as a single page.
type ListChatsResponse struct {
	Chats      []domain.Chat `json:"chats"`
	Pagination Pagination    `json:"pagination"`
}

//
// Handlers
//

// CreateChat godoc
// @ID          createChat
// @Summary     Create a chat
// @Description Creates a chat owned by the current user, optionally bound to a project the caller can view.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.CreateChatRequest  true  "Create chat payload"
//
// @Success     201  {object}  domain.Chat
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Router      /chats [post]
func (h *Handlers) CreateChat(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.ProjectID != nil {
		if _, err := uuid.Parse(*req.ProjectID); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project_id must be a UUID")
			return
		}
	}

	uid, email := principal(c)
	ch, err := h.chats.Create(c.Request.Context(), uid, email, req.Title, req.ProjectID)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, ch)
}

// ListChats godoc
// @ID          listChats
// @Summary     List chats
// @Description Returns the caller's chats newest first. Without a filter the listing is paginated; with project_id it returns every chat bound to that project as a single page.
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
//
// @Param       page        query  int     false  "Page number (default 1)"
// @Param       page_size   query  int     false  "Page size (default 20, max 100)"
// @Param       project_id  query  string  false  "Filter to chats bound to this project"  format(uuid)
//
// @Success     200  {object}  handlers.ListChatsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Router      /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	uid, email := principal(c)

	if projectID := c.Query("project_id"); projectID != "" {
		if _, err := uuid.Parse(projectID); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project_id must be a UUID")
			return
		}
		chats, err := h.chats.ListByProject(c.Request.Context(), uid, email, projectID)
		if err != nil {
			failFromService(c, err)
			return
		}
		if chats == nil {
			chats = []domain.Chat{}
		}
		ok(c, http.StatusOK, ListChatsResponse{
			Chats: chats,
			Pagination: Pagination{
				Page:       1,
				PageSize:   len(chats),
				Total:      int64(len(chats)),
				TotalPages: 1,
			},
		})
		return
	}

	page, pageSize := clampPagination(c)
	chats, total, err := h.chats.ListPage(c.Request.Context(), uid, page, pageSize)
	if err != nil {
		failFromService(c, err)
		return
	}
	if chats == nil {
		chats = []domain.Chat{}
	}
	ok(c, http.StatusOK, ListChatsResponse{Chats: chats, Pagination: pageMeta(page, pageSize, total)})
}

// GetChat godoc
// @ID          getChat
// @Summary     Get a chat
// @Description Returns one chat owned by the current user.
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Chat ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Chat
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Router      /chats/{id} [get]
func (h *Handlers) GetChat(c *gin.Context) {
	chatID := c.Param("id")
	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	uid, _ := principal(c)
	ch, err := h.chats.Get(c.Request.Context(), uid, chatID)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, ch)
}

// UpdateChatTitle godoc
// @ID          updateChatTitle
// @Summary     Rename a chat
// @Description Updates the chat title. Blank titles fall back to a default.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Chat ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateChatTitleRequest  true  "New title"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Router      /chats/{id}/title [put]
func (h *Handlers) UpdateChatTitle(c *gin.Context) {
	chatID := c.Param("id")
	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	var req UpdateChatTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required")
		return
	}

	uid, _ := principal(c)
	if err := h.chats.UpdateTitle(c.Request.Context(), uid, chatID, req.Title); err != nil {
		failFromService(c, err)
		return
	}
	noContent(c)
}

// DeleteChat godoc
// @ID          deleteChat
// @Summary     Delete a chat
// @Description Soft-deletes a chat owned by the current user.
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Chat ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Router      /chats/{id} [delete]
func (h *Handlers) DeleteChat(c *gin.Context) {
	chatID := c.Param("id")
	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	uid, _ := principal(c)
	if err := h.chats.Delete(c.Request.Context(), uid, chatID); err != nil {
		failFromService(c, err)
		return
	}
	noContent(c)
}

// ChatContext godoc
// @ID          chatContext
// @Summary     Get a chat's generation context
// @Description Returns the rolling summary, the recent message window, the live message count, and the project linkage used to ground answers.
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Chat ID (UUID)"  format(uuid)
//
// @Success     200  {object}  services.ChatContext
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Router      /chats/{id}/context [get]
func (h *Handlers) ChatContext(c *gin.Context) {
	chatID := c.Param("id")
	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	uid, _ := principal(c)
	cc, err := h.chats.Context(c.Request.Context(), uid, chatID)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, cc)
}

// SummarizeChat godoc
// @ID          summarizeChat
// @Summary     Refresh a chat's summary
// @Description Forces a summary refresh over the unsummarized tail and returns the updated chat.
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Chat ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Chat
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Summary backend unavailable"
// @Router      /chats/{id}/summary [post]
func (h *Handlers) SummarizeChat(c *gin.Context) {
	chatID := c.Param("id")
	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	uid, _ := principal(c)
	ch, err := h.chats.Resummarize(c.Request.Context(), uid, chatID, true)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, ch)
}

// Message HTTP handlers.
//
//   - POST /chats/{id}/messages  (append one message to the transcript)
//   - GET  /chats/{id}/messages  (list paginated messages)
//
// The transcript is append-only: clients post the user turn, run the search
// endpoints for the answer, then post the assistant turn with its sources.
// Content is normalized at the edge (line endings, excessive blank lines)
// before the service applies its own length guard.
package handlers

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitewise/go-project-backend/internal/domain"
)

//
// Service contracts (context-aware)
//

// MessageService appends to and reads a chat transcript.
type MessageService interface {
	// Append stores one message. Role must be a recognized transcript role;
	// sources only accompany assistant turns.
	Append(ctx context.Context, userID, chatID, role, content string, sources []domain.Source) (*domain.Message, error)
	// ListPage returns one page of the transcript, oldest first, plus the
	// total count.
	ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error)
}

//
// DTOs
//

// PostMessageRequest is the JSON payload for appending a message.
type PostMessageRequest struct {
	// Role is "user", "assistant", or "system". Defaults to "user".
	Role string `json:"role" example:"user"`
	// Content is the message body. It must be non-empty after normalization.
	Content string `json:"content" binding:"required,min=1" example:"What did the electrician quote for the panel upgrade?"`
	// Sources cite the retrieval passages behind an assistant turn.
	Sources []domain.Source `json:"sources,omitempty"`
}

// MessageView is a message with its serialized sources column decoded.
type MessageView struct {
	*domain.Message
	Sources []domain.Source `json:"sources,omitempty"`
}

// PostMessageResponse is the JSON envelope for a newly appended message.
type PostMessageResponse struct {
	Message *MessageView `json:"message"`
}

// ListMessagesResponse contains a page of chat messages and pagination
// metadata.
type ListMessagesResponse struct {
	Messages   []MessageView `json:"messages"`
	Pagination Pagination    `json:"pagination"`
}

func newMessageView(m *domain.Message) (*MessageView, error) {
	srcs, err := m.SourceList()
	if err != nil {
		return nil, err
	}
	return &MessageView{Message: m, Sources: srcs}, nil
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Append a message
// @Description Appends one message to the chat transcript. The first user message auto-titles an untitled chat; assistant turns may carry retrieval sources.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Chat ID (UUID)"  format(uuid)
// @Param       body  body  handlers.PostMessageRequest  true  "Message payload"
//
// @Success     201  {object}  handlers.PostMessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Empty content, unknown role, or content too long"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	chatID := c.Param("id")
	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	content := sanitizeContent(req.Content)
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}

	uid, _ := principal(c)
	m, err := h.messages.Append(c.Request.Context(), uid, chatID, role, content, req.Sources)
	if err != nil {
		failFromService(c, err)
		return
	}
	view, err := newMessageView(m)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "corrupt message payload")
		return
	}
	ok(c, http.StatusCreated, PostMessageResponse{Message: view})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a chat
// @Description Returns a paginated page of the transcript, oldest first.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
//
// @Param       id         path   string  true  "Chat ID (UUID)"  format(uuid)
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListMessagesResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Router      /chats/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	chatID := c.Param("id")
	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	page, pageSize := clampPagination(c)

	uid, _ := principal(c)
	items, total, err := h.messages.ListPage(c.Request.Context(), uid, chatID, page, pageSize)
	if err != nil {
		failFromService(c, err)
		return
	}

	views := make([]MessageView, 0, len(items))
	for i := range items {
		v, err := newMessageView(&items[i])
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "corrupt message payload")
			return
		}
		views = append(views, *v)
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: views, Pagination: pageMeta(page, pageSize, total)})
}

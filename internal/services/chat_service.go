// Package services – ChatService
//
// This file implements the ChatService, which manages the lifecycle of chats
// and the rolling summary each chat carries. Chats are personal: every
// operation is scoped to the owning user, and binding a chat to a project is
// validated once at creation. The summary is the compressed memory of the
// conversation; it refreshes after a fixed number of unsummarized messages
// accumulate, and the count it covered is stored next to it so the trigger
// can measure what is new.
//
// Service-level errors (e.g., ErrChatNotFound) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/aiclient"
	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/repo"
)

// ChatRepo defines the repository contract required by ChatService.
// Implementations are responsible for persistence of chat aggregates.
type ChatRepo interface {
	// CreateChat inserts a new chat row for the given user, optionally bound
	// to a project.
	CreateChat(ctx context.Context, db *gorm.DB, userID string, projectID *string, title string) (*domain.Chat, error)

	// ListChats returns all chats belonging to the user (non-paginated).
	ListChats(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error)

	// ListChatsByProject returns the user's chats bound to one project.
	ListChatsByProject(ctx context.Context, db *gorm.DB, userID, projectID string) ([]domain.Chat, error)

	// GetChat fetches a chat by ID. Ownership is the service's check.
	GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error)

	// UpdateChatTitle updates a chat's title.
	UpdateChatTitle(ctx context.Context, db *gorm.DB, id, title string) error

	// UpdateChatSummary stores a regenerated summary and the message count
	// it covered.
	UpdateChatSummary(ctx context.Context, db *gorm.DB, id, summary string, at time.Time, countAtSummary int) error

	// DeleteChat soft-deletes a chat.
	DeleteChat(ctx context.Context, db *gorm.DB, id string) error

	// CountChats returns the total number of chats for pagination.
	CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error)

	// ListChatsPage returns a page of chats belonging to the user.
	ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error)
}

// Summarizer condenses a conversation into a rolling summary. Implemented
// by *aiclient.Client.
type Summarizer interface {
	SummarizeChat(ctx context.Context, messages []aiclient.SummaryMessage, existingSummary, projectName string) (*aiclient.ChatSummary, error)
}

// ChatService provides chat-level operations such as creating, listing, and
// updating chat metadata, and owns the rolling-summary policy. It enforces
// title rules and ownership constraints.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the chat repository used by this service.
	Repo ChatRepo
	// AI produces summaries. May be nil; summarization is then disabled.
	AI Summarizer

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// RecentWindow is how many trailing messages Context returns.
	RecentWindow int
	// SummaryEvery is how many unsummarized messages trigger a refresh.
	SummaryEvery int
}

// NewChatService constructs a ChatService with the default title, context
// window, and summary cadence settings.
func NewChatService(db *gorm.DB, r ChatRepo, ai Summarizer) *ChatService {
	return &ChatService{
		DB:           db,
		Repo:         r,
		AI:           ai,
		TitleMaxLen:  60,
		RecentWindow: 10,
		SummaryEvery: 8,
	}
}

// ChatContext is the assembled conversational state handed to answer
// generation: the rolling summary plus the trailing message window, and the
// project linkage when the chat is project-bound.
type ChatContext struct {
	ChatID            string           `json:"chat_id"`
	ProjectID         *string          `json:"project_id,omitempty"`
	AIProjectID       string           `json:"ai_project_id,omitempty"`
	ProjectName       string           `json:"project_name,omitempty"`
	Summary           string           `json:"summary,omitempty"`
	RecentMessages    []domain.Message `json:"recent_messages"`
	MessageCount      int64            `json:"message_count"`
	ShouldResummarize bool             `json:"should_resummarize"`
}

// Create inserts a new chat owned by userID with the provided title.
// Titles are normalized, trimmed, clipped, and a default fallback is
// applied. A project binding requires view access to the project and is
// fixed for the chat's lifetime.
func (s *ChatService) Create(ctx context.Context, userID, email, title string, projectID *string) (*domain.Chat, error) {
	if projectID != nil {
		if _, err := projectForUser(ctx, s.DB, *projectID, userID, email, domain.PermissionView); err != nil {
			return nil, err
		}
	}
	title = normalizeTitle(title)
	if title == "" {
		title = "New chat"
	}
	return s.Repo.CreateChat(ctx, s.DB, userID, projectID, s.clip(title))
}

// List returns all chats for a user (non-paginated).
// Prefer ListPage for scalability on large datasets.
func (s *ChatService) List(ctx context.Context, userID string) ([]domain.Chat, error) {
	return s.Repo.ListChats(ctx, s.DB, userID)
}

// ListByProject returns the user's chats bound to one project. Requires
// view access so a revoked share also hides the chat listing.
func (s *ChatService) ListByProject(ctx context.Context, userID, email, projectID string) ([]domain.Chat, error) {
	if _, err := projectForUser(ctx, s.DB, projectID, userID, email, domain.PermissionView); err != nil {
		return nil, err
	}
	return s.Repo.ListChatsByProject(ctx, s.DB, userID, projectID)
}

// ListPage returns a page of chats for a user (paginated).
// It applies defaults for invalid page/pageSize and returns total count.
func (s *ChatService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountChats(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Chat{}, 0, nil
	}

	items, err := s.Repo.ListChatsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Get returns one chat owned by userID, or ErrChatNotFound.
func (s *ChatService) Get(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	return s.ownedChat(ctx, userID, chatID)
}

// UpdateTitle updates a chat's title, ensuring the chat exists and
// belongs to the given user. Falls back to "Untitled" if title is blank.
func (s *ChatService) UpdateTitle(ctx context.Context, userID, chatID, title string) error {
	title = normalizeTitle(title)
	if title == "" {
		title = "Untitled"
	}
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return err
	}
	return s.Repo.UpdateChatTitle(ctx, s.DB, chatID, s.clip(title))
}

// Delete soft-deletes a chat owned by userID. Its messages stay behind the
// deletion marker.
func (s *ChatService) Delete(ctx context.Context, userID, chatID string) error {
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return err
	}
	err := s.Repo.DeleteChat(ctx, s.DB, chatID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrChatNotFound
	}
	return err
}

// Context assembles the conversational state for answer generation: the
// rolling summary, the trailing message window, the live message count, and
// the project linkage for retrieval when the chat is project-bound.
func (s *ChatService) Context(ctx context.Context, userID, chatID string) (*ChatContext, error) {
	ch, err := s.ownedChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	count, err := repo.CountMessages(db, chatID)
	if err != nil {
		return nil, err
	}
	recent, err := repo.RecentMessages(db, chatID, s.RecentWindow)
	if err != nil {
		return nil, err
	}

	out := &ChatContext{
		ChatID:            ch.ID,
		ProjectID:         ch.ProjectID,
		Summary:           ch.Summary,
		RecentMessages:    recent,
		MessageCount:      count,
		ShouldResummarize: s.summaryDue(ch, count),
	}
	if ch.ProjectID != nil {
		// A deleted project leaves the chat readable without retrieval.
		if p, err := repo.GetProject(ctx, s.DB, *ch.ProjectID); err == nil {
			out.AIProjectID = p.AIProjectID
			out.ProjectName = p.Name
		}
	}
	return out, nil
}

// Resummarize folds the unsummarized tail of the conversation into the
// rolling summary and returns the refreshed chat. Without force it is a
// no-op until the refresh cadence is due; force refreshes whenever there is
// anything new to fold in.
func (s *ChatService) Resummarize(ctx context.Context, userID, chatID string, force bool) (*domain.Chat, error) {
	ch, err := s.ownedChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	count, err := repo.CountMessages(s.DB.WithContext(ctx), chatID)
	if err != nil {
		return nil, err
	}
	if !force && !s.summaryDue(ch, count) {
		return ch, nil
	}
	if err := s.refreshSummary(ctx, ch, count); err != nil {
		if errors.Is(err, aiclient.ErrUnavailable) {
			return nil, ErrServiceUnavailable
		}
		return nil, err
	}
	return s.Repo.GetChat(ctx, s.DB, chatID)
}

// maybeResummarize runs the cadence check and refresh after a message
// append. preCount is the message count before that append: the cadence is
// measured against what had accumulated when the triggering message
// arrived, and the message that crossed the threshold is folded into the
// refresh. Best effort: a failed refresh is logged and the stored counter
// is left alone, so the next append triggers again.
func (s *ChatService) maybeResummarize(ctx context.Context, chatID string, preCount int64) {
	ch, err := s.Repo.GetChat(ctx, s.DB, chatID)
	if err != nil {
		return
	}
	if !s.summaryDue(ch, preCount) {
		return
	}
	count, err := repo.CountMessages(s.DB.WithContext(ctx), chatID)
	if err != nil {
		return
	}
	if err := s.refreshSummary(ctx, ch, count); err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("summary refresh failed")
	}
}

// summaryDue reports whether enough unsummarized messages accumulated.
func (s *ChatService) summaryDue(ch *domain.Chat, count int64) bool {
	if s.AI == nil || s.SummaryEvery <= 0 {
		return false
	}
	return count-int64(ch.MessageCountAtSummary) >= int64(s.SummaryEvery)
}

// refreshSummary sends the unsummarized tail and the existing summary
// upstream, then stores the result together with the count it covered. The
// counter only advances on success.
func (s *ChatService) refreshSummary(ctx context.Context, ch *domain.Chat, count int64) error {
	tail, err := repo.ListMessagesPage(s.DB.WithContext(ctx), ch.ID, ch.MessageCountAtSummary, int(count)-ch.MessageCountAtSummary)
	if err != nil {
		return err
	}
	if len(tail) == 0 {
		return nil
	}
	msgs := make([]aiclient.SummaryMessage, 0, len(tail))
	for i := range tail {
		msgs = append(msgs, aiclient.SummaryMessage{Role: tail[i].Role, Content: tail[i].Content})
	}

	projectName := ""
	if ch.ProjectID != nil {
		if p, err := repo.GetProject(ctx, s.DB, *ch.ProjectID); err == nil {
			projectName = p.Name
		}
	}

	res, err := s.AI.SummarizeChat(ctx, msgs, ch.Summary, projectName)
	if err != nil {
		return err
	}
	return s.Repo.UpdateChatSummary(ctx, s.DB, ch.ID, res.Summary, time.Now().UTC(), int(count))
}

// ownedChat loads a chat and enforces ownership. Chats of other users
// report ErrChatNotFound rather than a permission error.
func (s *ChatService) ownedChat(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	ch, err := s.Repo.GetChat(ctx, s.DB, chatID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	if ch.UserID != userID {
		return nil, ErrChatNotFound
	}
	return ch, nil
}

// clip truncates a chat title to the configured maximum rune length.
func (s *ChatService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	return s
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

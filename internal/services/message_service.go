// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns the lifecycle of chat messages. Answers are produced upstream by the
// AI backend and appended by the caller alongside the user prompt, so the
// service validates roles and content, enforces chat ownership, and keeps
// chat metadata moving: the first user message titles the chat, every
// append bumps the activity clock, and the rolling summary refreshes once
// enough unsummarized messages accumulate.
//
// Service-level errors (ErrInvalidRole, ErrEmptyContent, ErrTooLong,
// ErrChatNotFound) cover the predictable failures; handlers map them to
// HTTP results.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/repo"
)

// Placeholder titles that auto-titling is allowed to replace.
const (
	defaultTitleNew      = "New chat"
	defaultTitleUntitled = "Untitled"
)

// MessageService appends and reads chat messages. Chats delegates the
// ownership check and the summary cadence; both services share one policy.
type MessageService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Chats resolves chat ownership and owns the summary refresh.
	Chats *ChatService

	// MaxContentRunes caps message content by rune length. Zero disables
	// the cap.
	MaxContentRunes int
	// TitleMaxLen caps auto-generated titles by rune length.
	TitleMaxLen int
	// TitleLocale selects the casing rules for auto-generated titles.
	TitleLocale language.Tag
}

// Append validates and persists one message on a chat the user owns. The
// first user message replaces a placeholder title with one derived from the
// content, and the chat's activity clock is bumped in the same transaction.
// After a successful append the rolling summary is refreshed when due; that
// refresh is best effort and never fails the append.
func (s *MessageService) Append(ctx context.Context, userID, chatID, role, content string, sources []domain.Source) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", userID),
			attribute.String("role", role),
		),
	)
	defer span.End()

	if !domain.ValidRole(role) {
		return nil, ErrInvalidRole
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrTooLong
	}

	ch, err := s.Chats.ownedChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	preCount, err := repo.CountMessages(s.DB.WithContext(ctx), chatID)
	if err != nil {
		return nil, err
	}

	var msg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(tx, chatID, role, content, sources)
		if err != nil {
			return err
		}
		msg = m

		// Auto-title on the first user message if the title is still a
		// placeholder.
		if role == domain.RoleUser && preCount == 0 && shouldAutoTitle(ch.Title) {
			if gen := s.generateTitleFromContent(content); gen != "" {
				// Best effort; an append never fails on a title update.
				_ = repo.UpdateChatTitle(ctx, tx, chatID, s.clipTitle(gen))
			}
		}
		return repo.TouchChat(ctx, tx, chatID, m.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	if s.Chats != nil {
		s.Chats.maybeResummarize(ctx, chatID, preCount)
	}
	return msg, nil
}

// ListPage returns paginated messages for a chat the user owns, oldest
// first.
func (s *MessageService) ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if _, err := s.Chats.ownedChat(ctx, userID, chatID); err != nil {
		return nil, 0, err
	}

	total, err := repo.CountMessages(s.DB.WithContext(ctx), chatID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(s.DB.WithContext(ctx), chatID, offset, pageSize)
	return items, total, err
}

// Get returns one message from a chat the user owns. Messages of other
// users' chats report ErrMessageNotFound.
func (s *MessageService) Get(ctx context.Context, userID, messageID string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("message.id", messageID)),
	)
	defer span.End()

	m, err := repo.GetMessage(s.DB.WithContext(ctx), messageID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if _, err := s.Chats.ownedChat(ctx, userID, m.ChatID); err != nil {
		return nil, ErrMessageNotFound
	}
	return m, nil
}

// shouldAutoTitle reports whether the current title is a placeholder.
func shouldAutoTitle(current string) bool {
	t := strings.TrimSpace(strings.ToLower(current))
	return t == "" || t == strings.ToLower(defaultTitleNew) || t == strings.ToLower(defaultTitleUntitled)
}

// generateTitleFromContent derives a concise title from message content.
func (s *MessageService) generateTitleFromContent(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	toks := titleWordRE.FindAllString(strings.ToLower(content), -1)
	if len(toks) == 0 {
		return ""
	}

	titleCaser := cases.Title(s.titleLocaleOrDefault())
	out := make([]string, 0, 8)

	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, titleCaser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, " ")
}

// clipTitle truncates a generated title to the configured maximum rune length.
func (s *MessageService) clipTitle(title string) string {
	max := s.TitleMaxLen
	if max <= 0 {
		max = 60
	}
	if utf8.RuneCountInString(title) > max {
		return string([]rune(title)[:max])
	}
	return title
}

// titleLocaleOrDefault returns the configured locale for casing or English
// if unset.
func (s *MessageService) titleLocaleOrDefault() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

// --- Title generation helpers ---

// Extract Unicode letters with optional trailing numbers (e.g., "lot2025").
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// Minimal English stop-words set for compact titles.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
}

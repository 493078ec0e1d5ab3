// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a chat is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateChat(ctx, db, userID, projectID, title) -> *domain.Chat, error
//     Inserts a new Chat row with UUID primary key and UTC timestamp.
//     projectID may be nil for a general (project-less) chat.
//
//   - ListChats(ctx, db, userID) -> []domain.Chat, error
//     Returns all chats for a user, ordered by last update descending.
//
//   - CountChats(ctx, db, userID) -> (int64, error)
//     Returns the total number of chats owned by the user.
//
//   - ListChatsPage(ctx, db, userID, offset, limit) -> []domain.Chat, error
//     Returns a paginated slice of chats for a user.
//
//   - ListChatsByProject(ctx, db, userID, projectID) -> []domain.Chat, error
//     Returns the user's chats bound to one project.
//
//   - GetChat(ctx, db, id) -> *domain.Chat, error
//     Fetches a single chat by ID, or ErrNotFound if missing. Whether the
//     caller may see it (owner, or project access for project-bound chats)
//     is decided in the service layer.
//
//   - UpdateChatTitle(ctx, db, id, title) -> error
//     Updates the title of a chat. Returns ErrNotFound if the chat is gone.
//
//   - UpdateChatSummary(ctx, db, id, summary, at, countAtSummary) -> error
//     Stores a regenerated summary together with the message count it
//     covered, so the refresh trigger can measure what is unsummarized.
//
//   - TouchChat(ctx, db, id, at) -> error
//     Bumps UpdatedAt so chat listings order by recent activity.
//
//   - DeleteChat(ctx, db, id) -> error
//     Soft-deletes a chat; messages cascade at the DB level on hard delete
//     and stay hidden behind the chat's deletion marker otherwise.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.ChatService) which enforces access rules and summary
// regeneration policy.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
)

// CreateChat inserts a new Chat row owned by userID with the given title,
// optionally bound to a project. The chat ID is a randomly generated UUID
// (string), and CreatedAt is set to UTC.
//
// On success, it returns the persisted Chat. On failure, it returns a DB error.
func CreateChat(ctx context.Context, db *gorm.DB, userID string, projectID *string, title string) (*domain.Chat, error) {
	c := &domain.Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProjectID: projectID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListChats returns all chats belonging to userID, ordered by last activity
// descending (most recently touched first). It returns an empty slice if the
// user has no chats. On DB error, it returns the error.
func ListChats(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}

// CountChats returns the total number of chats owned by userID.
// On DB error, it returns the error.
func CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListChatsPage returns a paginated slice of chats for userID, ordered by
// last activity descending. Use CountChats to obtain the total for pagination
// metadata. On DB error, it returns the error.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListChatsByProject returns the user's chats bound to one project, ordered
// by last activity descending. Chats are personal even when project-bound,
// so the user filter always applies.
func ListChatsByProject(ctx context.Context, db *gorm.DB, userID, projectID string) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}

// GetChat fetches a single chat by its ID. If the record does not exist,
// it returns ErrNotFound. On other DB errors, the raw error is returned.
func GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateChatTitle updates the title of the chat identified by id. If no rows
// are affected (chat missing or soft-deleted), it returns ErrNotFound. On DB
// error, the raw error is returned.
func UpdateChatTitle(ctx context.Context, db *gorm.DB, id, title string) error {
	res := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", id).
		Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateChatSummary stores a regenerated summary. countAtSummary must be the
// message count the summary covered; the regeneration trigger compares the
// live count against it.
func UpdateChatSummary(ctx context.Context, db *gorm.DB, id, summary string, at time.Time, countAtSummary int) error {
	res := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"summary":                  summary,
			"summary_updated_at":       at,
			"message_count_at_summary": countAtSummary,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TouchChat bumps the chat's UpdatedAt to at. Used on message append so the
// chat list orders by recent activity.
func TouchChat(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
}

// DeleteChat soft-deletes the chat identified by id. ErrNotFound when no row
// matched.
func DeleteChat(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Chat{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

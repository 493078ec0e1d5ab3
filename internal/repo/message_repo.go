// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
)

// CreateMessage inserts a new message row. sources may be nil; it is
// serialized into the JSON citation column.
func CreateMessage(db *gorm.DB, chatID, role, content string, sources []domain.Source) (*domain.Message, error) {
	m := &domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.SetSourceList(sources); err != nil {
		return nil, err
	}
	return m, db.Create(m).Error
}

// ListMessages returns messages ordered deterministically (CreatedAt ASC, ID ASC).
func ListMessages(db *gorm.DB, chatID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.Where("chat_id = ?", chatID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error (as tests expect).
func CountMessages(db *gorm.DB, chatID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM messages WHERE chat_id = ? AND deleted_at IS NULL", chatID).Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListMessagesPage(db *gorm.DB, chatID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// RecentMessages returns the newest n messages in chronological order.
// It selects descending with a limit, then reverses in place.
func RecentMessages(db *gorm.DB, chatID string, n int) ([]domain.Message, error) {
	if n <= 0 {
		return []domain.Message{}, nil
	}
	var out []domain.Message
	err := db.
		Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// GetMessage fetches a message by ID.
func GetMessage(db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

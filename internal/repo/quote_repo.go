// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// QuoteRequest model. Status strings are written exactly as given; the
// orchestrator validates transitions against the domain tables before
// persisting.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
)

// CreateQuoteRequest inserts a quote request. A blank ID is replaced with a
// random UUID; a blank status starts the machine at matching_vendors.
func CreateQuoteRequest(ctx context.Context, db *gorm.DB, q *domain.QuoteRequest) (*domain.QuoteRequest, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	if q.Status == "" {
		q.Status = domain.QuoteMatchingVendors
	}
	if err := db.WithContext(ctx).Create(q).Error; err != nil {
		return nil, err
	}
	return q, nil
}

// GetQuoteRequest fetches one quote request by id, or ErrNotFound.
func GetQuoteRequest(ctx context.Context, db *gorm.DB, id string) (*domain.QuoteRequest, error) {
	var q domain.QuoteRequest
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQuoteRequests returns all quote requests for a project, newest first.
func ListQuoteRequests(ctx context.Context, db *gorm.DB, projectID string) ([]domain.QuoteRequest, error) {
	var out []domain.QuoteRequest
	err := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// UpdateQuoteRequestFields applies a column map to the quote request
// identified by id. ErrNotFound when no row matched.
func UpdateQuoteRequestFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.QuoteRequest{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

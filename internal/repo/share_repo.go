// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ProjectShare model. Emails are stored exactly as given; the service layer
// lowercases them before calling in, so equality here is a plain match.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
)

// CreateShare inserts a grant for (projectID, email). The unique index on
// that pair makes a second grant fail; such failures surface as ErrDuplicate.
func CreateShare(ctx context.Context, db *gorm.DB, projectID, email, permission, createdBy string) (*domain.ProjectShare, error) {
	s := &domain.ProjectShare{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		Email:      email,
		Permission: permission,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return s, nil
}

// ListShares returns all grants on a project, oldest first.
func ListShares(ctx context.Context, db *gorm.DB, projectID string) ([]domain.ProjectShare, error) {
	var out []domain.ProjectShare
	err := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// GetShareByEmail fetches the grant for (projectID, email), or ErrNotFound.
func GetShareByEmail(ctx context.Context, db *gorm.DB, projectID, email string) (*domain.ProjectShare, error) {
	var s domain.ProjectShare
	err := db.WithContext(ctx).
		Where("project_id = ? AND email = ?", projectID, email).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteShare removes a grant by id, scoped to the project so a grant id
// from another project cannot be revoked through the wrong URL. ErrNotFound
// when no row matched.
func DeleteShare(ctx context.Context, db *gorm.DB, id, projectID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		Delete(&domain.ProjectShare{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the
// QuoteImpression ledger. Recording relies on the unique index over
// (project_id, segment_id, vendor_offering_id): the insert is attempted
// unconditionally and a violation is reported as ErrDuplicate, never probed
// with a prior read.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
)

// ErrDuplicate indicates that a row already exists for a unique key, e.g. an
// impression for the same (project, segment, vendor offering) triple.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation reports whether err is a unique-constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	low := strings.ToLower(err.Error())
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// CreateImpression inserts a ledger row and returns ErrDuplicate when the
// triple already exists. Callers treat ErrDuplicate as "already recorded"
// and read the existing row back with GetImpressionByTriple.
func CreateImpression(ctx context.Context, db *gorm.DB, imp *domain.QuoteImpression) (*domain.QuoteImpression, error) {
	if imp.ID == "" {
		imp.ID = uuid.NewString()
	}
	if imp.CreatedAt.IsZero() {
		imp.CreatedAt = time.Now().UTC()
	}
	if imp.BillingStatus == "" {
		imp.BillingStatus = domain.BillingPending
	}
	if imp.EmailStatus == "" {
		imp.EmailStatus = domain.EmailPending
	}
	if err := db.WithContext(ctx).Create(imp).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return imp, nil
}

// GetImpression fetches one ledger row by id, or ErrNotFound.
func GetImpression(ctx context.Context, db *gorm.DB, id string) (*domain.QuoteImpression, error) {
	var imp domain.QuoteImpression
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&imp).Error
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

// GetImpressionByTriple fetches the ledger row for one
// (project, segment, vendor offering) triple, or ErrNotFound.
func GetImpressionByTriple(ctx context.Context, db *gorm.DB, projectID, segmentID, offeringID string) (*domain.QuoteImpression, error) {
	var imp domain.QuoteImpression
	err := db.WithContext(ctx).
		Where("project_id = ? AND segment_id = ? AND vendor_offering_id = ?", projectID, segmentID, offeringID).
		First(&imp).Error
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

// ListImpressionsByVendor returns the ledger rows addressed to a vendor's
// email, newest first, optionally filtered to one billing status.
func ListImpressionsByVendor(ctx context.Context, db *gorm.DB, vendorEmail string, status *domain.BillingStatus) ([]domain.QuoteImpression, error) {
	q := db.WithContext(ctx).
		Where("vendor_email = ?", vendorEmail).
		Order("created_at desc")
	if status != nil {
		q = q.Where("billing_status = ?", *status)
	}
	var out []domain.QuoteImpression
	err := q.Find(&out).Error
	return out, err
}

// ListImpressionsByProject returns the ledger rows for one project, newest
// first. This is the customer-side view.
func ListImpressionsByProject(ctx context.Context, db *gorm.DB, projectID string) ([]domain.QuoteImpression, error) {
	var out []domain.QuoteImpression
	err := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// UpdateImpressionBillingStatus advances the billing state, guarded on the
// expected current value so two racing updates cannot both apply.
// ErrNotFound when no row matched the (id, from) pair.
func UpdateImpressionBillingStatus(ctx context.Context, db *gorm.DB, id string, from, to domain.BillingStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.QuoteImpression{}).
		Where("id = ? AND billing_status = ?", id, from).
		Update("billing_status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkImpressionEmailStatus records the outcome of the lead notification,
// guarded on the pending state so the dispatcher never overwrites a result.
func MarkImpressionEmailStatus(ctx context.Context, db *gorm.DB, id string, to domain.EmailStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.QuoteImpression{}).
		Where("id = ? AND email_status = ?", id, domain.EmailPending).
		Update("email_status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListPendingEmailImpressions returns up to limit ledger rows whose lead
// notification has not been attempted yet, oldest first.
func ListPendingEmailImpressions(ctx context.Context, db *gorm.DB, limit int) ([]domain.QuoteImpression, error) {
	q := db.WithContext(ctx).
		Where("email_status = ?", domain.EmailPending).
		Order("created_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.QuoteImpression
	err := q.Find(&out).Error
	return out, err
}

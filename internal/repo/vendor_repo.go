// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// VendorOffering model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
)

// CreateOffering inserts a vendor offering. A blank ID is replaced with a
// random UUID. The unique index on (vendor_id, segment_id) rejects a second
// offering for the same trade; that surfaces as ErrDuplicate.
func CreateOffering(ctx context.Context, db *gorm.DB, o *domain.VendorOffering) (*domain.VendorOffering, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return o, nil
}

// GetOffering fetches one offering by id, or ErrNotFound.
func GetOffering(ctx context.Context, db *gorm.DB, id string) (*domain.VendorOffering, error) {
	var o domain.VendorOffering
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOfferingsByVendor returns all offerings registered by vendorID,
// ordered by creation time ascending.
func ListOfferingsByVendor(ctx context.Context, db *gorm.DB, vendorID string) ([]domain.VendorOffering, error) {
	var out []domain.VendorOffering
	err := db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ListActiveOfferingsBySegment returns every active offering for a segment
// in the deterministic match order (company name, then id). Geographic
// filtering happens in the service layer because the served sets are stored
// as CSV columns.
func ListActiveOfferingsBySegment(ctx context.Context, db *gorm.DB, segmentID string) ([]domain.VendorOffering, error) {
	var out []domain.VendorOffering
	err := db.WithContext(ctx).
		Where("segment_id = ? AND active = ?", segmentID, true).
		Order("company_name asc, id asc").
		Find(&out).Error
	return out, err
}

// UpdateOfferingFields applies a column map to the offering identified by id,
// scoped to its owning vendor. ErrNotFound when no row matched.
func UpdateOfferingFields(ctx context.Context, db *gorm.DB, id, vendorID string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.VendorOffering{}).
		Where("id = ? AND vendor_id = ?", id, vendorID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteOffering removes an offering by id, scoped to its owning vendor.
// Offerings have no soft delete; past impressions keep their own snapshot of
// the vendor. ErrNotFound when no row matched.
func DeleteOffering(ctx context.Context, db *gorm.DB, id, vendorID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND vendor_id = ?", id, vendorID).
		Delete(&domain.VendorOffering{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

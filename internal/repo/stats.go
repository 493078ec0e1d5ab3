// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries over the
// impression ledger used by the billing views. Each function is
// context-aware and safe to call from services or handlers.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
)

// BillingBucket is one billing-status slice of a vendor's ledger.
type BillingBucket struct {
	Status domain.BillingStatus `json:"status"`
	Count  int64                `json:"count"`
	Amount float64              `json:"amount"`
}

// VendorBillingSummary returns the vendor's ledger totals and the per-status
// breakdown, keyed by the vendor's email (the identity the ledger snapshots).
//
// It executes two lightweight queries against the quote_impressions table.
// When the vendor has no leads, the returned totals are zero and the bucket
// slice is empty.
//
// Return values:
//   - total:   number of ledger rows for the vendor
//   - amount:  sum of amount_charged over those rows
//   - buckets: per-billing-status count and amount, in status string order
//   - err:     database error, if any
func VendorBillingSummary(ctx context.Context, db *gorm.DB, vendorEmail string) (total int64, amount float64, buckets []BillingBucket, err error) {
	q := db.WithContext(ctx).Model(&domain.QuoteImpression{}).Where("vendor_email = ?", vendorEmail)

	// Count
	if err = q.Count(&total).Error; err != nil {
		return 0, 0, nil, err
	}
	if total == 0 {
		return 0, 0, []BillingBucket{}, nil
	}

	// Per-status breakdown; the grand total is summed from the buckets so
	// both numbers come from the same snapshot.
	var rows []struct {
		BillingStatus domain.BillingStatus
		Count         int64
		Amount        float64
	}
	err = db.WithContext(ctx).
		Model(&domain.QuoteImpression{}).
		Select("billing_status, COUNT(*) AS count, COALESCE(SUM(amount_charged), 0) AS amount").
		Where("vendor_email = ?", vendorEmail).
		Group("billing_status").
		Order("billing_status ASC").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, nil, err
	}

	buckets = make([]BillingBucket, 0, len(rows))
	for _, r := range rows {
		buckets = append(buckets, BillingBucket{Status: r.BillingStatus, Count: r.Count, Amount: r.Amount})
		amount += r.Amount
	}
	return total, amount, buckets, nil
}

// ProjectImpressionCount returns the number of ledger rows recorded against
// one project. Used by the customer-side views.
func ProjectImpressionCount(ctx context.Context, db *gorm.DB, projectID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.QuoteImpression{}).
		Where("project_id = ?", projectID).
		Count(&total).Error
	return total, err
}

// Package services – BillingService
//
// This file implements the BillingService, the owner of the quote-impression
// ledger. An impression is recorded the moment a vendor's quote is shown to
// a customer and is the unit the platform bills vendors for. The ledger is
// append-only: recording relies on the store's unique constraint for
// exactly-once semantics, and after creation only the billing and email
// states may advance, each along its own transition table.
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/repo"
)

// BillingService records and reads quote impressions. LeadPrice is the flat
// amount charged per impression, applied at recording time.
type BillingService struct {
	DB        *gorm.DB
	LeadPrice float64
}

// BillingSummary is a vendor's ledger rollup.
type BillingSummary struct {
	TotalLeads  int64                `json:"total_leads"`
	TotalAmount float64              `json:"total_amount"`
	ByStatus    []repo.BillingBucket `json:"by_status"`
}

// RecordImpression writes one ledger row for the snapshot the caller
// assembled. The caller never checks for an existing row first: the insert
// races straight into the unique (project, segment, vendor offering)
// constraint, and on a duplicate the existing row is read back unchanged.
// The second return value reports whether this call created the row.
func (s *BillingService) RecordImpression(ctx context.Context, imp *domain.QuoteImpression) (*domain.QuoteImpression, bool, error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "RecordImpression",
		trace.WithAttributes(
			attribute.String("project.id", imp.ProjectID),
			attribute.String("segment.id", imp.SegmentID),
			attribute.String("offering.id", imp.VendorOfferingID),
		))
	defer span.End()

	imp.AmountCharged = s.LeadPrice
	created, err := repo.CreateImpression(ctx, s.DB, imp)
	if err == nil {
		span.SetAttributes(attribute.Bool("created", true))
		return created, true, nil
	}
	if !errors.Is(err, repo.ErrDuplicate) {
		return nil, false, err
	}
	impressionDedups.Inc()
	existing, err := repo.GetImpressionByTriple(ctx, s.DB, imp.ProjectID, imp.SegmentID, imp.VendorOfferingID)
	if err != nil {
		return nil, false, err
	}
	span.SetAttributes(attribute.Bool("created", false))
	return existing, false, nil
}

// VendorLeads returns the ledger rows addressed to the vendor's email,
// newest first, optionally filtered to one billing status. Vendors only ever
// see their own rows.
func (s *BillingService) VendorLeads(ctx context.Context, vendorEmail string, status *domain.BillingStatus) ([]domain.QuoteImpression, error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "VendorLeads")
	defer span.End()

	if status != nil && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return repo.ListImpressionsByVendor(ctx, s.DB, normalizeEmail(vendorEmail), status)
}

// VendorSummary returns the vendor's ledger totals with the per-status
// breakdown.
func (s *BillingService) VendorSummary(ctx context.Context, vendorEmail string) (*BillingSummary, error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "VendorSummary")
	defer span.End()

	total, amount, buckets, err := repo.VendorBillingSummary(ctx, s.DB, normalizeEmail(vendorEmail))
	if err != nil {
		return nil, err
	}
	return &BillingSummary{TotalLeads: total, TotalAmount: amount, ByStatus: buckets}, nil
}

// UpdateLeadStatus advances the billing state of one of the vendor's own
// leads and returns the refreshed row. Rows of other vendors report
// ErrLeadNotFound; steps outside the transition table, including a lost race
// against a concurrent update, report ErrInvalidTransition.
func (s *BillingService) UpdateLeadStatus(ctx context.Context, vendorEmail, impressionID string, to domain.BillingStatus) (*domain.QuoteImpression, error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "UpdateLeadStatus",
		trace.WithAttributes(
			attribute.String("impression.id", impressionID),
			attribute.String("to", string(to)),
		))
	defer span.End()

	if !to.Valid() {
		return nil, ErrInvalidStatus
	}
	imp, err := repo.GetImpression(ctx, s.DB, impressionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}
	if imp.VendorEmail != normalizeEmail(vendorEmail) {
		return nil, ErrLeadNotFound
	}
	if !imp.BillingStatus.CanTransition(to) {
		return nil, ErrInvalidTransition
	}
	if err := repo.UpdateImpressionBillingStatus(ctx, s.DB, impressionID, imp.BillingStatus, to); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return repo.GetImpression(ctx, s.DB, impressionID)
}

// ProjectImpressions returns the ledger rows recorded against one project,
// for anyone who can view the project. This is the customer-side view of
// which vendors have seen their request.
func (s *BillingService) ProjectImpressions(ctx context.Context, userID, email, projectID string) ([]domain.QuoteImpression, error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "ProjectImpressions",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	if _, err := projectForUser(ctx, s.DB, projectID, userID, email, domain.PermissionView); err != nil {
		return nil, err
	}
	return repo.ListImpressionsByProject(ctx, s.DB, projectID)
}

// PendingEmailLeads returns up to limit leads whose notification email has
// not been attempted, oldest first. Used by the dispatch loop.
func (s *BillingService) PendingEmailLeads(ctx context.Context, limit int) ([]domain.QuoteImpression, error) {
	return repo.ListPendingEmailImpressions(ctx, s.DB, limit)
}

// MarkLeadEmail records the outcome of a lead notification attempt. Only
// sent and failed are outcomes; a row that is no longer pending reports
// ErrLeadNotFound and is left untouched.
func (s *BillingService) MarkLeadEmail(ctx context.Context, impressionID string, to domain.EmailStatus) error {
	if !to.Valid() || to == domain.EmailPending {
		return ErrInvalidStatus
	}
	err := repo.MarkImpressionEmailStatus(ctx, s.DB, impressionID, to)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrLeadNotFound
	}
	return err
}

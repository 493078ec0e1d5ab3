// Package services – VendorService
//
// This file implements the VendorService, which manages vendor offerings and
// answers the matching question at the heart of quote generation: which
// active offerings serve a given segment at a given location. Offerings are
// vendor-scoped for every mutation; matching reads across all vendors.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/repo"
)

// VendorService manages the offerings a vendor registers per segment and
// resolves which offerings match a quote request.
type VendorService struct {
	DB      *gorm.DB
	Catalog *CatalogService
}

// OfferingInput carries the caller-supplied fields for a new offering.
// Countries defaults to CA when empty; Regions empty means every region of
// the served countries. Active nil defaults to true.
type OfferingInput struct {
	SegmentID    string
	CompanyName  string
	Countries    []string
	Regions      []string
	LeadTimeDays int
	PricingNotes string
	Active       *bool
}

// OfferingUpdate carries a partial update. Nil fields are left unchanged; a
// non-nil empty Regions slice clears the set back to "all regions".
type OfferingUpdate struct {
	CompanyName  *string
	Countries    []string
	Regions      []string
	LeadTimeDays *int
	PricingNotes *string
	Active       *bool
}

// CreateOffering registers an offering for vendorID on a catalog segment.
// The company name falls back to the vendor's stored profile when blank, and
// a blank profile is backfilled from the offering so later offerings can omit
// it. One offering per (vendor, segment); a second returns
// ErrDuplicateOffering.
func (s *VendorService) CreateOffering(ctx context.Context, vendorID, vendorEmail string, in OfferingInput) (*domain.VendorOffering, error) {
	tr := otel.Tracer("services/VendorService")
	ctx, span := tr.Start(ctx, "CreateOffering",
		trace.WithAttributes(
			attribute.String("vendor.id", vendorID),
			attribute.String("segment.id", in.SegmentID),
		))
	defer span.End()

	if _, err := s.Catalog.Segment(in.SegmentID); err != nil {
		return nil, err
	}
	if in.LeadTimeDays < 0 {
		return nil, ErrInvalidOffering
	}

	info, err := repo.GetOrCreateUserInfo(ctx, s.DB, vendorID, vendorEmail)
	if err != nil {
		return nil, err
	}
	company := strings.TrimSpace(in.CompanyName)
	if company == "" {
		company = strings.TrimSpace(info.CompanyName)
	}
	if company == "" {
		return nil, ErrInvalidOffering
	}

	countries := domain.JoinSet(in.Countries)
	if countries == "" {
		countries = "CA"
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}

	o := &domain.VendorOffering{
		VendorID:        vendorID,
		VendorEmail:     normalizeEmail(vendorEmail),
		CompanyName:     company,
		SegmentID:       in.SegmentID,
		CountriesServed: countries,
		RegionsServed:   domain.JoinSet(in.Regions),
		LeadTimeDays:    in.LeadTimeDays,
		PricingNotes:    strings.TrimSpace(in.PricingNotes),
		Active:          active,
	}
	created, err := repo.CreateOffering(ctx, s.DB, o)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateOffering
		}
		return nil, err
	}

	if strings.TrimSpace(info.CompanyName) == "" {
		if err := repo.UpdateUserInfoFields(ctx, s.DB, vendorID, map[string]any{"company_name": company}); err != nil {
			log.Warn().Err(err).Str("vendor_id", vendorID).Msg("company name backfill failed")
		}
	}
	return created, nil
}

// ListOfferings returns the vendor's own offerings, oldest first.
func (s *VendorService) ListOfferings(ctx context.Context, vendorID string) ([]domain.VendorOffering, error) {
	tr := otel.Tracer("services/VendorService")
	ctx, span := tr.Start(ctx, "ListOfferings",
		trace.WithAttributes(attribute.String("vendor.id", vendorID)))
	defer span.End()

	return repo.ListOfferingsByVendor(ctx, s.DB, vendorID)
}

// GetOffering fetches one offering scoped to its owning vendor. Offerings of
// other vendors report ErrOfferingNotFound rather than a permission error.
func (s *VendorService) GetOffering(ctx context.Context, vendorID, offeringID string) (*domain.VendorOffering, error) {
	tr := otel.Tracer("services/VendorService")
	ctx, span := tr.Start(ctx, "GetOffering",
		trace.WithAttributes(attribute.String("offering.id", offeringID)))
	defer span.End()

	o, err := repo.GetOffering(ctx, s.DB, offeringID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOfferingNotFound
		}
		return nil, err
	}
	if o.VendorID != vendorID {
		return nil, ErrOfferingNotFound
	}
	return o, nil
}

// UpdateOffering applies a partial update to the vendor's own offering and
// returns the refreshed row. The segment of an offering is fixed at creation;
// registering another trade means creating another offering.
func (s *VendorService) UpdateOffering(ctx context.Context, vendorID, offeringID string, upd OfferingUpdate) (*domain.VendorOffering, error) {
	tr := otel.Tracer("services/VendorService")
	ctx, span := tr.Start(ctx, "UpdateOffering",
		trace.WithAttributes(
			attribute.String("vendor.id", vendorID),
			attribute.String("offering.id", offeringID),
		))
	defer span.End()

	fields := map[string]any{}
	if upd.CompanyName != nil {
		name := strings.TrimSpace(*upd.CompanyName)
		if name == "" {
			return nil, ErrInvalidOffering
		}
		fields["company_name"] = name
	}
	if upd.Countries != nil {
		countries := domain.JoinSet(upd.Countries)
		if countries == "" {
			return nil, ErrInvalidOffering
		}
		fields["countries_served"] = countries
	}
	if upd.Regions != nil {
		fields["regions_served"] = domain.JoinSet(upd.Regions)
	}
	if upd.LeadTimeDays != nil {
		if *upd.LeadTimeDays < 0 {
			return nil, ErrInvalidOffering
		}
		fields["lead_time_days"] = *upd.LeadTimeDays
	}
	if upd.PricingNotes != nil {
		fields["pricing_notes"] = strings.TrimSpace(*upd.PricingNotes)
	}
	if upd.Active != nil {
		fields["active"] = *upd.Active
	}

	if len(fields) == 0 {
		return s.GetOffering(ctx, vendorID, offeringID)
	}
	if err := repo.UpdateOfferingFields(ctx, s.DB, offeringID, vendorID, fields); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOfferingNotFound
		}
		return nil, err
	}
	return s.GetOffering(ctx, vendorID, offeringID)
}

// DeleteOffering removes the vendor's own offering. Recorded impressions keep
// their billing rows; only future matching is affected.
func (s *VendorService) DeleteOffering(ctx context.Context, vendorID, offeringID string) error {
	tr := otel.Tracer("services/VendorService")
	ctx, span := tr.Start(ctx, "DeleteOffering",
		trace.WithAttributes(
			attribute.String("vendor.id", vendorID),
			attribute.String("offering.id", offeringID),
		))
	defer span.End()

	err := repo.DeleteOffering(ctx, s.DB, offeringID, vendorID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrOfferingNotFound
	}
	return err
}

// Match returns the active offerings that serve segmentID at the given
// location, in the deterministic company-name order the repository yields.
// An offering matches when it serves the country and either serves the
// region or serves all regions. An empty result is a valid outcome, not an
// error; only an unknown segment is rejected.
func (s *VendorService) Match(ctx context.Context, segmentID, country, region string) ([]domain.VendorOffering, error) {
	tr := otel.Tracer("services/VendorService")
	ctx, span := tr.Start(ctx, "Match",
		trace.WithAttributes(
			attribute.String("segment.id", segmentID),
			attribute.String("country", country),
			attribute.String("region", region),
		))
	defer span.End()

	if _, err := s.Catalog.Segment(segmentID); err != nil {
		return nil, err
	}
	offerings, err := repo.ListActiveOfferingsBySegment(ctx, s.DB, segmentID)
	if err != nil {
		return nil, err
	}
	matched := make([]domain.VendorOffering, 0, len(offerings))
	for i := range offerings {
		o := &offerings[i]
		if !o.ServesCountry(country) || !o.ServesRegion(region) {
			continue
		}
		matched = append(matched, *o)
	}
	span.SetAttributes(attribute.Int("matched", len(matched)))
	return matched, nil
}

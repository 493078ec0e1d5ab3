// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Segment
// reference catalog, including the seed applied at process start.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sitewise/go-project-backend/internal/domain"
)

// defaultSegments is the built-in trade catalog: per-unit benchmark ranges
// in dollars per square foot, grouped into build phases. Existing rows are
// never overwritten by seeding, so operator edits survive restarts.
var defaultSegments = []domain.Segment{
	{ID: "excavation_grading", Name: "Excavation & Grading", Phase: "Site & Foundation", PhaseOrder: 1, BenchmarkLow: 4, BenchmarkHigh: 9, Unit: "sqft"},
	{ID: "foundation_concrete", Name: "Foundation & Concrete", Phase: "Site & Foundation", PhaseOrder: 1, BenchmarkLow: 8, BenchmarkHigh: 16, Unit: "sqft"},
	{ID: "framing", Name: "Framing", Phase: "Structure", PhaseOrder: 2, BenchmarkLow: 12, BenchmarkHigh: 22, Unit: "sqft"},
	{ID: "structural_steel", Name: "Structural Steel", Phase: "Structure", PhaseOrder: 2, BenchmarkLow: 14, BenchmarkHigh: 28, Unit: "sqft"},
	{ID: "roofing", Name: "Roofing", Phase: "Envelope", PhaseOrder: 3, BenchmarkLow: 6, BenchmarkHigh: 12, Unit: "sqft"},
	{ID: "siding_exterior_finish", Name: "Siding & Exterior Finish", Phase: "Envelope", PhaseOrder: 3, BenchmarkLow: 7, BenchmarkHigh: 14, Unit: "sqft"},
	{ID: "windows_exterior_doors", Name: "Windows & Exterior Doors", Phase: "Envelope", PhaseOrder: 3, BenchmarkLow: 5, BenchmarkHigh: 11, Unit: "sqft"},
	{ID: "electrical", Name: "Electrical", Phase: "Mechanical & Electrical", PhaseOrder: 4, BenchmarkLow: 9, BenchmarkHigh: 15, Unit: "sqft"},
	{ID: "plumbing", Name: "Plumbing", Phase: "Mechanical & Electrical", PhaseOrder: 4, BenchmarkLow: 8, BenchmarkHigh: 14, Unit: "sqft"},
	{ID: "hvac", Name: "HVAC", Phase: "Mechanical & Electrical", PhaseOrder: 4, BenchmarkLow: 10, BenchmarkHigh: 18, Unit: "sqft"},
	{ID: "drywall_insulation", Name: "Drywall & Insulation", Phase: "Interior Finishes", PhaseOrder: 5, BenchmarkLow: 6, BenchmarkHigh: 10, Unit: "sqft"},
	{ID: "flooring", Name: "Flooring", Phase: "Interior Finishes", PhaseOrder: 5, BenchmarkLow: 5, BenchmarkHigh: 12, Unit: "sqft"},
	{ID: "interior_painting", Name: "Interior Painting", Phase: "Interior Finishes", PhaseOrder: 5, BenchmarkLow: 2, BenchmarkHigh: 5, Unit: "sqft"},
	{ID: "kitchen_bath_millwork", Name: "Kitchen, Bath & Millwork", Phase: "Interior Finishes", PhaseOrder: 5, BenchmarkLow: 9, BenchmarkHigh: 20, Unit: "sqft"},
}

// SeedSegments inserts the built-in catalog, skipping rows that already
// exist. Call once after AutoMigrate.
func SeedSegments(ctx context.Context, db *gorm.DB) error {
	segs := make([]domain.Segment, len(defaultSegments))
	copy(segs, defaultSegments)
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&segs).Error
}

// ListSegments returns the full catalog ordered for grouped display:
// phase order first, then name.
func ListSegments(ctx context.Context, db *gorm.DB) ([]domain.Segment, error) {
	var out []domain.Segment
	err := db.WithContext(ctx).
		Order("phase_order asc, name asc").
		Find(&out).Error
	return out, err
}

// GetSegment fetches one catalog entry by slug id, or ErrNotFound.
func GetSegment(ctx context.Context, db *gorm.DB, id string) (*domain.Segment, error) {
	var s domain.Segment
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

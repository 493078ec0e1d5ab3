// Package services – CatalogService
//
// The segment catalog is static reference data: construction trades with
// their phase ordering and benchmark price ranges. It is read from the store
// once at startup and held immutable for the process lifetime; estimation is
// pure arithmetic over that snapshot.
package services

import (
	"context"
	"math"

	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/repo"
)

// CatalogService answers segment lookups and benchmark estimates from an
// in-memory snapshot of the reference catalog.
type CatalogService struct {
	segments []domain.Segment
	byID     map[string]domain.Segment
}

// NewCatalogService loads the catalog snapshot. Call after seeding.
func NewCatalogService(ctx context.Context, db *gorm.DB) (*CatalogService, error) {
	segs, err := repo.ListSegments(ctx, db)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Segment, len(segs))
	for _, sg := range segs {
		byID[sg.ID] = sg
	}
	return &CatalogService{segments: segs, byID: byID}, nil
}

// Segments returns the catalog in phase order.
func (s *CatalogService) Segments() []domain.Segment {
	return s.segments
}

// PhaseGroup is a construction phase with its segments, used by the public
// catalog listing.
type PhaseGroup struct {
	Phase      string           `json:"phase"`
	PhaseOrder int              `json:"phase_order"`
	Segments   []domain.Segment `json:"segments"`
}

// PhaseGroups returns the catalog grouped by construction phase, phases and
// segments both in catalog order.
func (s *CatalogService) PhaseGroups() []PhaseGroup {
	var groups []PhaseGroup
	for _, sg := range s.segments {
		if n := len(groups); n == 0 || groups[n-1].Phase != sg.Phase {
			groups = append(groups, PhaseGroup{Phase: sg.Phase, PhaseOrder: sg.PhaseOrder})
		}
		g := &groups[len(groups)-1]
		g.Segments = append(g.Segments, sg)
	}
	return groups
}

// Segment returns one catalog entry or ErrInvalidSegment.
func (s *CatalogService) Segment(id string) (*domain.Segment, error) {
	sg, ok := s.byID[id]
	if !ok {
		return nil, ErrInvalidSegment
	}
	return &sg, nil
}

// Benchmark is an expected price range for a segment at a given size.
type Benchmark struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
	Unit string  `json:"unit"`
}

// Benchmark scales the segment's reference range by size. Unknown segments
// fail with ErrInvalidSegment, non-positive sizes with ErrInvalidSize.
func (s *CatalogService) Benchmark(segmentID string, size float64) (*Benchmark, error) {
	sg, err := s.Segment(segmentID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	return &Benchmark{
		Low:  round2(sg.BenchmarkLow * size),
		High: round2(sg.BenchmarkHigh * size),
		Unit: sg.Unit,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

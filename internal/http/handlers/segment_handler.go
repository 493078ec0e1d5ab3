// Segment catalog HTTP handlers.
//
//   - GET /segments                 (catalog grouped by construction phase)
//   - GET /segments/{id}            (one catalog entry)
//   - GET /segments/{id}/benchmark  (price range estimate for a size)
//
// The catalog is public reference data; these routes sit outside the
// authenticated group so landing pages can render it without a token.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/services"
)

//
// Service contracts
//

// CatalogService serves the static segment catalog. The snapshot is loaded at
// startup, so lookups take no context.
type CatalogService interface {
	// Segments returns the catalog in phase order.
	Segments() []domain.Segment
	// PhaseGroups returns the catalog grouped by construction phase.
	PhaseGroups() []services.PhaseGroup
	// Segment returns one catalog entry or services.ErrInvalidSegment.
	Segment(id string) (*domain.Segment, error)
	// Benchmark scales the segment's reference range by size.
	Benchmark(segmentID string, size float64) (*services.Benchmark, error)
}

//
// DTOs
//

// ListSegmentsResponse is the catalog grouped by construction phase.
type ListSegmentsResponse struct {
	Phases []services.PhaseGroup `json:"phases"`
}

// BenchmarkResponse is a price range estimate for a segment at a size.
type BenchmarkResponse struct {
	SegmentID  string  `json:"segment_id" example:"framing"`
	SquareFeet float64 `json:"square_feet" example:"2400"`
	*services.Benchmark
}

//
// Handlers
//

// ListSegments godoc
// @ID          listSegments
// @Summary     List the segment catalog
// @Description Returns every service segment grouped by construction phase, both in build order.
// @Tags        Segments
// @Produce     json
//
// @Success     200  {object}  handlers.ListSegmentsResponse
// @Router      /segments [get]
func (h *Handlers) ListSegments(c *gin.Context) {
	groups := h.catalog.PhaseGroups()
	if groups == nil {
		groups = []services.PhaseGroup{}
	}
	ok(c, http.StatusOK, ListSegmentsResponse{Phases: groups})
}

// GetSegment godoc
// @ID          getSegment
// @Summary     Get a segment
// @Description Returns one catalog entry by its stable identifier.
// @Tags        Segments
// @Produce     json
//
// @Param       id  path  string  true  "Segment ID"  example(framing)
//
// @Success     200  {object}  domain.Segment
// @Failure     404  {object}  handlers.ErrorResponse  "Segment not found"
// @Router      /segments/{id} [get]
func (h *Handlers) GetSegment(c *gin.Context) {
	sg, err := h.catalog.Segment(c.Param("id"))
	if err != nil {
		// An unknown id on the catalog's own routes is a missing resource,
		// not a malformed request.
		fail(c, http.StatusNotFound, ErrCodeNotFound, "segment not found")
		return
	}
	ok(c, http.StatusOK, sg)
}

// SegmentBenchmark godoc
// @ID          segmentBenchmark
// @Summary     Estimate a segment price range
// @Description Scales the segment's benchmark unit prices by the given square footage and returns the expected low/high range.
// @Tags        Segments
// @Produce     json
//
// @Param       id    path   string  true  "Segment ID"  example(framing)
// @Param       sqft  query  number  true  "Project size in square feet"  example(2400)
//
// @Success     200  {object}  handlers.BenchmarkResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing or non-positive sqft"
// @Failure     404  {object}  handlers.ErrorResponse  "Segment not found"
// @Router      /segments/{id}/benchmark [get]
func (h *Handlers) SegmentBenchmark(c *gin.Context) {
	segmentID := c.Param("id")
	if _, err := h.catalog.Segment(segmentID); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "segment not found")
		return
	}

	sqft, err := strconv.ParseFloat(c.Query("sqft"), 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sqft must be a number")
		return
	}

	b, err := h.catalog.Benchmark(segmentID, sqft)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, BenchmarkResponse{SegmentID: segmentID, SquareFeet: sqft, Benchmark: b})
}

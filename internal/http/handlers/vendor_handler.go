// Vendor offering HTTP handlers.
//
//   - POST   /vendor-services       (register an offering)
//   - GET    /vendor-services       (caller's offerings)
//   - PUT    /vendor-services/{id}  (update)
//   - DELETE /vendor-services/{id}  (retire)
//
// An offering enrolls the calling vendor in quote matching for one catalog
// segment. Matching itself runs inside quote generation; there is no public
// route for it.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// VendorService manages the caller's segment offerings.
type VendorService interface {
	// CreateOffering registers an offering on a catalog segment. One per
	// (vendor, segment).
	CreateOffering(ctx context.Context, vendorID, vendorEmail string, in services.OfferingInput) (*domain.VendorOffering, error)
	// ListOfferings returns the caller's offerings, newest first.
	ListOfferings(ctx context.Context, vendorID string) ([]domain.VendorOffering, error)
	// UpdateOffering applies a partial update to an owned offering.
	UpdateOffering(ctx context.Context, vendorID, offeringID string, upd services.OfferingUpdate) (*domain.VendorOffering, error)
	// DeleteOffering retires an owned offering.
	DeleteOffering(ctx context.Context, vendorID, offeringID string) error
}

//
// DTOs
//

// CreateOfferingRequest is the JSON payload for registering an offering.
type CreateOfferingRequest struct {
	// SegmentID references the catalog. Required.
	SegmentID string `json:"segment_id" binding:"required" example:"framing"`
	// CompanyName falls back to the vendor's stored profile when blank.
	CompanyName string `json:"company_name" example:"Northside Framing Ltd"`
	// Countries and Regions limit where the offering matches. Empty means
	// everywhere.
	Countries []string `json:"countries" example:"CA"`
	Regions   []string `json:"regions" example:"ON,QC"`
	// LeadTimeDays is the vendor's quoted mobilization time.
	LeadTimeDays int    `json:"lead_time_days" example:"10"`
	PricingNotes string `json:"pricing_notes" example:"Volume discount over 3000 sqft"`
	// Active defaults to true when omitted.
	Active *bool `json:"active,omitempty"`
}

// UpdateOfferingRequest is the JSON payload for a partial offering update.
// Absent fields are left unchanged; an empty regions array clears the filter.
type UpdateOfferingRequest struct {
	CompanyName  *string  `json:"company_name,omitempty"`
	Countries    []string `json:"countries,omitempty"`
	Regions      []string `json:"regions,omitempty"`
	LeadTimeDays *int     `json:"lead_time_days,omitempty"`
	PricingNotes *string  `json:"pricing_notes,omitempty"`
	Active       *bool    `json:"active,omitempty"`
}

// ListOfferingsResponse wraps the caller's offerings.
type ListOfferingsResponse struct {
	Offerings []domain.VendorOffering `json:"offerings"`
}

//
// Handlers
//

// CreateOffering godoc
// @ID          createOffering
// @Summary     Register a vendor offering
// @Description Enrolls the caller in quote matching for one catalog segment. A vendor can hold at most one offering per segment.
// @Tags        Vendors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.CreateOfferingRequest  true  "Offering payload"
//
// @Success     201  {object}  domain.VendorOffering
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown segment or bad payload"
// @Failure     409  {object}  handlers.ErrorResponse  "Offering already exists for this segment"
// @Router      /vendor-services [post]
func (h *Handlers) CreateOffering(c *gin.Context) {
	var req CreateOfferingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "segment_id required")
		return
	}

	uid, email := principal(c)
	off, err := h.vendors.CreateOffering(c.Request.Context(), uid, email, services.OfferingInput{
		SegmentID:    req.SegmentID,
		CompanyName:  req.CompanyName,
		Countries:    req.Countries,
		Regions:      req.Regions,
		LeadTimeDays: req.LeadTimeDays,
		PricingNotes: req.PricingNotes,
		Active:       req.Active,
	})
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, off)
}

// ListOfferings godoc
// @ID          listOfferings
// @Summary     List the caller's offerings
// @Description Returns every offering registered by the current vendor, newest first.
// @Tags        Vendors
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  handlers.ListOfferingsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /vendor-services [get]
func (h *Handlers) ListOfferings(c *gin.Context) {
	uid, _ := principal(c)
	offs, err := h.vendors.ListOfferings(c.Request.Context(), uid)
	if err != nil {
		failFromService(c, err)
		return
	}
	if offs == nil {
		offs = []domain.VendorOffering{}
	}
	ok(c, http.StatusOK, ListOfferingsResponse{Offerings: offs})
}

// UpdateOffering godoc
// @ID          updateOffering
// @Summary     Update an offering
// @Description Applies a partial update to an owned offering. Deactivated offerings stop matching immediately.
// @Tags        Vendors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Offering ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateOfferingRequest  true  "Fields to update"
//
// @Success     200  {object}  domain.VendorOffering
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Offering not found"
// @Router      /vendor-services/{id} [put]
func (h *Handlers) UpdateOffering(c *gin.Context) {
	offeringID := c.Param("id")
	if _, err := uuid.Parse(offeringID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "offering id must be a UUID")
		return
	}

	var req UpdateOfferingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	uid, _ := principal(c)
	off, err := h.vendors.UpdateOffering(c.Request.Context(), uid, offeringID, services.OfferingUpdate{
		CompanyName:  req.CompanyName,
		Countries:    req.Countries,
		Regions:      req.Regions,
		LeadTimeDays: req.LeadTimeDays,
		PricingNotes: req.PricingNotes,
		Active:       req.Active,
	})
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, off)
}

// DeleteOffering godoc
// @ID          deleteOffering
// @Summary     Retire an offering
// @Description Removes an owned offering from matching. Existing leads keep their snapshot of it.
// @Tags        Vendors
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Offering ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Offering not found"
// @Router      /vendor-services/{id} [delete]
func (h *Handlers) DeleteOffering(c *gin.Context) {
	offeringID := c.Param("id")
	if _, err := uuid.Parse(offeringID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "offering id must be a UUID")
		return
	}

	uid, _ := principal(c)
	if err := h.vendors.DeleteOffering(c.Request.Context(), uid, offeringID); err != nil {
		failFromService(c, err)
		return
	}
	noContent(c)
}

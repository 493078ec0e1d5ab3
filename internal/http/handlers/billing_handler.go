// Billing HTTP handlers.
//
//   - GET   /billing/leads                   (vendor's lead ledger)
//   - GET   /billing/summary                 (vendor's billing totals)
//   - PATCH /billing/leads/{id}/status       (advance a lead)
//   - GET   /projects/{id}/impressions       (owner-side view of the ledger)
//
// A lead is one vendor impression on a generated quote. Vendors work their
// ledger through the /billing routes; project members read the same rows from
// the project side, amounts included.
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

// BillingService exposes the quote impression ledger.
type BillingService interface {
	// VendorLeads returns the caller's leads, optionally filtered by status.
	VendorLeads(ctx context.Context, vendorEmail string, status *domain.BillingStatus) ([]domain.QuoteImpression, error)
	// VendorSummary aggregates the caller's ledger.
	VendorSummary(ctx context.Context, vendorEmail string) (*services.BillingSummary, error)
	// UpdateLeadStatus advances one lead along pending -> invoiced -> paid,
	// or to waived from any non-paid state.
	UpdateLeadStatus(ctx context.Context, vendorEmail, impressionID string, to domain.BillingStatus) (*domain.QuoteImpression, error)
	// ProjectImpressions returns the ledger rows for a project the caller
	// can view.
	ProjectImpressions(ctx context.Context, userID, email, projectID string) ([]domain.QuoteImpression, error)
}

//
// DTOs
//

// UpdateLeadStatusRequest is the JSON payload for advancing a lead.
type UpdateLeadStatusRequest struct {
	// Status is the target state: pending, invoiced, paid, or waived.
	Status string `json:"status" binding:"required" example:"invoiced"`
}

// ListLeadsResponse wraps a vendor's leads.
type ListLeadsResponse struct {
	Leads []domain.QuoteImpression `json:"leads"`
}

// ListImpressionsResponse wraps a project's ledger rows.
type ListImpressionsResponse struct {
	Impressions []domain.QuoteImpression `json:"impressions"`
}

//
// Handlers
//

// ListLeads godoc
// @ID          listLeads
// @Summary     List the caller's billing leads
// @Description Returns the vendor's quote impressions, newest first, optionally filtered by billing status.
// @Tags        Billing
// @Produce     json
// @Security    BearerAuth
//
// @Param       status  query  string  false  "Filter by billing status"  Enums(pending, invoiced, paid, waived)
//
// @Success     200  {object}  handlers.ListLeadsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown status value"
// @Router      /billing/leads [get]
func (h *Handlers) ListLeads(c *gin.Context) {
	var status *domain.BillingStatus
	if raw := c.Query("status"); raw != "" {
		st := domain.BillingStatus(raw)
		if !st.Valid() {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown billing status")
			return
		}
		status = &st
	}

	_, email := principal(c)
	leads, err := h.billing.VendorLeads(c.Request.Context(), email, status)
	if err != nil {
		failFromService(c, err)
		return
	}
	if leads == nil {
		leads = []domain.QuoteImpression{}
	}
	ok(c, http.StatusOK, ListLeadsResponse{Leads: leads})
}

// BillingSummary godoc
// @ID          billingSummary
// @Summary     Summarize the caller's ledger
// @Description Returns lead and amount totals for the vendor, broken down by billing status.
// @Tags        Billing
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  services.BillingSummary
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /billing/summary [get]
func (h *Handlers) BillingSummary(c *gin.Context) {
	_, email := principal(c)
	sum, err := h.billing.VendorSummary(c.Request.Context(), email)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, sum)
}

// UpdateLeadStatus godoc
// @ID          updateLeadStatus
// @Summary     Advance a billing lead
// @Description Moves one of the caller's leads to a new billing status. Legal moves are pending to invoiced, invoiced to paid, and any non-paid state to waived.
// @Tags        Billing
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Impression ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateLeadStatusRequest  true  "Target status"
//
// @Success     200  {object}  domain.QuoteImpression
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown status value"
// @Failure     404  {object}  handlers.ErrorResponse  "Lead not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Illegal status transition"
// @Router      /billing/leads/{id}/status [patch]
func (h *Handlers) UpdateLeadStatus(c *gin.Context) {
	impressionID := c.Param("id")
	if _, err := uuid.Parse(impressionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lead id must be a UUID")
		return
	}

	var req UpdateLeadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}

	_, email := principal(c)
	lead, err := h.billing.UpdateLeadStatus(c.Request.Context(), email, impressionID, domain.BillingStatus(req.Status))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, lead)
}

// ListImpressions godoc
// @ID          listImpressions
// @Summary     List a project's quote impressions
// @Description Returns the billing ledger rows generated by quotes on a project the caller can view.
// @Tags        Billing
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Project ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.ListImpressionsResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Router      /projects/{id}/impressions [get]
func (h *Handlers) ListImpressions(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := uuid.Parse(projectID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project id must be a UUID")
		return
	}

	uid, email := principal(c)
	rows, err := h.billing.ProjectImpressions(c.Request.Context(), uid, email, projectID)
	if err != nil {
		failFromService(c, err)
		return
	}
	if rows == nil {
		rows = []domain.QuoteImpression{}
	}
	ok(c, http.StatusOK, ListImpressionsResponse{Impressions: rows})
}

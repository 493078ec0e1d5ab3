// Quote HTTP handlers.
//
//   - POST /projects/{id}/quotes  (generate quotes for a segment)
//   - GET  /projects/{id}/quotes  (quotes on a project)
//   - GET  /quotes/{id}           (one quote request)
//
// Quote generation matches active vendor offerings against the project's
// location, collects per-vendor quotes from the pricing backend, and opens a
// billing lead per matched vendor. The stored row keeps quotes and matches as
// serialized columns; responses decode them into structured fields.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitewise/go-project-backend/internal/domain"
)

//
// Service contracts (context-aware)
//

// QuoteService generates and reads vendor quote requests.
type QuoteService interface {
	// Generate matches vendors and collects quotes for one segment. A zero
	// squareFeet falls back to the project's stored size.
	Generate(ctx context.Context, userID, email, projectID, segmentID string, squareFeet float64) (*domain.QuoteRequest, error)
	// Get returns one quote request on a project the caller can view.
	Get(ctx context.Context, userID, email, quoteID string) (*domain.QuoteRequest, error)
	// List returns the quote requests on a project, newest first.
	List(ctx context.Context, userID, email, projectID string) ([]domain.QuoteRequest, error)
}

//
// DTOs
//

// GenerateQuoteRequest is the JSON payload for quote generation.
type GenerateQuoteRequest struct {
	// SegmentID references the catalog. Required.
	SegmentID string `json:"segment_id" binding:"required" example:"framing"`
	// SquareFeet overrides the project's stored size. Zero uses the stored
	// size.
	SquareFeet float64 `json:"square_feet" example:"2400"`
}

// QuoteResponse is a quote request with its serialized columns decoded. The
// outer fields shadow the raw storage columns of the embedded row.
type QuoteResponse struct {
	*domain.QuoteRequest
	MatchedVendorIDs []string             `json:"matched_vendor_ids"`
	VendorQuotes     []domain.VendorQuote `json:"vendor_quotes"`
}

// ListQuotesResponse wraps the quote requests on a project.
type ListQuotesResponse struct {
	Quotes []QuoteResponse `json:"quotes"`
}

func newQuoteResponse(q *domain.QuoteRequest) (*QuoteResponse, error) {
	matched, err := q.MatchedVendors()
	if err != nil {
		return nil, err
	}
	quotes, err := q.QuoteList()
	if err != nil {
		return nil, err
	}
	return &QuoteResponse{QuoteRequest: q, MatchedVendorIDs: matched, VendorQuotes: quotes}, nil
}

//
// Handlers
//

// GenerateQuote godoc
// @ID          generateQuote
// @Summary     Generate vendor quotes
// @Description Matches active vendor offerings against the project's location for one segment, collects a quote from each, and opens a billing lead per match. Requires edit access to the project.
// @Tags        Quotes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Project ID (UUID)"  format(uuid)
// @Param       body  body  handlers.GenerateQuoteRequest  true  "Quote payload"
//
// @Success     201  {object}  handlers.QuoteResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown segment or unusable size"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Router      /projects/{id}/quotes [post]
func (h *Handlers) GenerateQuote(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := uuid.Parse(projectID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project id must be a UUID")
		return
	}

	var req GenerateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "segment_id required")
		return
	}

	uid, email := principal(c)
	q, err := h.quotes.Generate(c.Request.Context(), uid, email, projectID, req.SegmentID, req.SquareFeet)
	if err != nil {
		failFromService(c, err)
		return
	}
	resp, err := newQuoteResponse(q)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "corrupt quote payload")
		return
	}
	ok(c, http.StatusCreated, resp)
}

// ListQuotes godoc
// @ID          listQuotes
// @Summary     List quotes on a project
// @Description Returns every quote request on a project the caller can view, newest first.
// @Tags        Quotes
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Project ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.ListQuotesResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Router      /projects/{id}/quotes [get]
func (h *Handlers) ListQuotes(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := uuid.Parse(projectID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "project id must be a UUID")
		return
	}

	uid, email := principal(c)
	quotes, err := h.quotes.List(c.Request.Context(), uid, email, projectID)
	if err != nil {
		failFromService(c, err)
		return
	}

	out := make([]QuoteResponse, 0, len(quotes))
	for i := range quotes {
		resp, err := newQuoteResponse(&quotes[i])
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "corrupt quote payload")
			return
		}
		out = append(out, *resp)
	}
	ok(c, http.StatusOK, ListQuotesResponse{Quotes: out})
}

// GetQuote godoc
// @ID          getQuote
// @Summary     Get a quote request
// @Description Returns one quote request with its decoded vendor quotes. The caller must be able to view the owning project.
// @Tags        Quotes
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Quote ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.QuoteResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Quote not found"
// @Router      /quotes/{id} [get]
func (h *Handlers) GetQuote(c *gin.Context) {
	quoteID := c.Param("id")
	if _, err := uuid.Parse(quoteID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "quote id must be a UUID")
		return
	}

	uid, email := principal(c)
	q, err := h.quotes.Get(c.Request.Context(), uid, email, quoteID)
	if err != nil {
		failFromService(c, err)
		return
	}
	resp, err := newQuoteResponse(q)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "corrupt quote payload")
		return
	}
	ok(c, http.StatusOK, resp)
}

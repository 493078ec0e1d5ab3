package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/services"
)

// ---------- stub service ----------

type stubQuoteSvc struct {
	generate func(ctx context.Context, uid, email, projectID, segmentID string, squareFeet float64) (*domain.QuoteRequest, error)
	get      func(ctx context.Context, uid, email, quoteID string) (*domain.QuoteRequest, error)
	list     func(ctx context.Context, uid, email, projectID string) ([]domain.QuoteRequest, error)
}

func (s stubQuoteSvc) Generate(ctx context.Context, uid, email, projectID, segmentID string, squareFeet float64) (*domain.QuoteRequest, error) {
	if s.generate != nil {
		return s.generate(ctx, uid, email, projectID, segmentID, squareFeet)
	}
	return &domain.QuoteRequest{ID: "q1", ProjectID: projectID, SegmentID: segmentID}, nil
}

func (s stubQuoteSvc) Get(ctx context.Context, uid, email, quoteID string) (*domain.QuoteRequest, error) {
	if s.get != nil {
		return s.get(ctx, uid, email, quoteID)
	}
	return &domain.QuoteRequest{ID: quoteID}, nil
}

func (s stubQuoteSvc) List(ctx context.Context, uid, email, projectID string) ([]domain.QuoteRequest, error) {
	if s.list != nil {
		return s.list(ctx, uid, email, projectID)
	}
	return nil, nil
}

func newQuoteRouter(svc QuoteService, uid, email string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(Deps{Quotes: svc})
	r := gin.New()
	r.Use(asUser(uid, email))
	r.POST("/projects/:id/quotes", h.GenerateQuote)
	r.GET("/projects/:id/quotes", h.ListQuotes)
	r.GET("/quotes/:id", h.GetQuote)
	return r
}

// completedQuote builds a stored row the way the quote pipeline leaves it,
// with both serialized columns populated.
func completedQuote(t *testing.T, projectID string) *domain.QuoteRequest {
	t.Helper()
	q := &domain.QuoteRequest{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		RequesterID:   "u1",
		SegmentID:     "framing",
		SquareFeet:    2400,
		Region:        "ON",
		Country:       "CA",
		Status:        domain.QuoteCompleted,
		BenchmarkLow:  28800,
		BenchmarkHigh: 48000,
	}
	if err := q.SetMatchedVendors([]string{"o1", "o2"}); err != nil {
		t.Fatalf("matched: %v", err)
	}
	if err := q.SetQuoteList([]domain.VendorQuote{
		{OfferingID: "o1", CompanyName: "Northside Framing", VendorEmail: "north@example.com", RatePerUnit: 13.5, Total: 32400, LeadTimeDays: 10},
		{OfferingID: "o2", CompanyName: "Beaver Lumber Crews", VendorEmail: "beaver@example.com", RatePerUnit: 15, Total: 36000},
	}); err != nil {
		t.Fatalf("quotes: %v", err)
	}
	return q
}

// ---------- GenerateQuote ----------

func TestGenerateQuote_Validation_Success(t *testing.T) {
	// bad UUID -> 400
	{
		r := newQuoteRouter(stubQuoteSvc{}, "u1", "u1@example.com")
		w := doJSON(r, http.MethodPost, "/projects/not-uuid/quotes", `{"segment_id":"framing"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("uuid 400 -> %d", w.Code)
		}
	}

	// missing segment_id -> 400
	{
		r := newQuoteRouter(stubQuoteSvc{}, "u1", "u1@example.com")
		w := doJSON(r, http.MethodPost, "/projects/"+uuid.NewString()+"/quotes", `{}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("missing segment -> %d", w.Code)
		}
	}

	// quote generation needs edit access
	{
		svc := stubQuoteSvc{
			generate: func(context.Context, string, string, string, string, float64) (*domain.QuoteRequest, error) {
				return nil, services.ErrForbidden
			},
		}
		r := newQuoteRouter(svc, "u1", "u1@example.com")
		w := doJSON(r, http.MethodPost, "/projects/"+uuid.NewString()+"/quotes", `{"segment_id":"framing"}`)
		if w.Code != http.StatusForbidden {
			t.Fatalf("forbidden -> %d", w.Code)
		}
	}

	// success: payload reaches the service, serialized columns come back decoded
	{
		var gotSegment string
		var gotSqft float64
		svc := stubQuoteSvc{
			generate: func(_ context.Context, _, _, projectID, segmentID string, squareFeet float64) (*domain.QuoteRequest, error) {
				gotSegment, gotSqft = segmentID, squareFeet
				return completedQuote(t, projectID), nil
			},
		}
		r := newQuoteRouter(svc, "u1", "u1@example.com")
		w := doJSON(r, http.MethodPost, "/projects/"+uuid.NewString()+"/quotes",
			`{"segment_id":"framing","square_feet":2400}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("generate -> %d body=%s", w.Code, w.Body.String())
		}
		if gotSegment != "framing" || gotSqft != 2400 {
			t.Fatalf("args mismatch: %q/%v", gotSegment, gotSqft)
		}

		var out QuoteResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if len(out.MatchedVendorIDs) != 2 || out.MatchedVendorIDs[0] != "o1" {
			t.Fatalf("matched vendors mismatch: %#v", out.MatchedVendorIDs)
		}
		if len(out.VendorQuotes) != 2 || out.VendorQuotes[0].Total != 32400 {
			t.Fatalf("vendor quotes mismatch: %#v", out.VendorQuotes)
		}
		if out.Status != domain.QuoteCompleted {
			t.Fatalf("status = %q", out.Status)
		}
		// The raw storage columns never leak into the body.
		if strings.Contains(w.Body.String(), `"[\"o1\"`) {
			t.Fatalf("raw column leaked: %s", w.Body.String())
		}
	}

	// a row with a corrupt serialized column cannot be rendered
	{
		svc := stubQuoteSvc{
			generate: func(_ context.Context, _, _, projectID, _ string, _ float64) (*domain.QuoteRequest, error) {
				return &domain.QuoteRequest{ID: "q1", ProjectID: projectID, MatchedVendorIDs: "{not-json"}, nil
			},
		}
		r := newQuoteRouter(svc, "u1", "u1@example.com")
		w := doJSON(r, http.MethodPost, "/projects/"+uuid.NewString()+"/quotes", `{"segment_id":"framing"}`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("corrupt -> %d", w.Code)
		}
		var body ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("json: %v", err)
		}
		if body.Code != ErrCodeInternal {
			t.Fatalf("code = %q", body.Code)
		}
	}
}

// ---------- ListQuotes ----------

func TestListQuotes_Empty_Decoded(t *testing.T) {
	// no quotes -> empty array, not null
	{
		r := newQuoteRouter(stubQuoteSvc{}, "u1", "u1@example.com")
		w := doJSON(r, http.MethodGet, "/projects/"+uuid.NewString()+"/quotes", "")
		if w.Code != http.StatusOK {
			t.Fatalf("list -> %d", w.Code)
		}
		if w.Body.String() != `{"quotes":[]}` {
			t.Fatalf("body = %s", w.Body.String())
		}
	}

	// every row comes back with decoded columns
	{
		pid := uuid.NewString()
		svc := stubQuoteSvc{
			list: func(_ context.Context, _, _, projectID string) ([]domain.QuoteRequest, error) {
				return []domain.QuoteRequest{*completedQuote(t, projectID), *completedQuote(t, projectID)}, nil
			},
		}
		r := newQuoteRouter(svc, "u1", "u1@example.com")
		w := doJSON(r, http.MethodGet, "/projects/"+pid+"/quotes", "")
		if w.Code != http.StatusOK {
			t.Fatalf("list -> %d body=%s", w.Code, w.Body.String())
		}
		var out ListQuotesResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if len(out.Quotes) != 2 {
			t.Fatalf("expected 2 quotes, got %d", len(out.Quotes))
		}
		for i, q := range out.Quotes {
			if len(q.MatchedVendorIDs) != 2 || len(q.VendorQuotes) != 2 {
				t.Fatalf("quote %d not decoded: %+v", i, q)
			}
		}
	}

	// project hidden from the caller -> 404
	{
		svc := stubQuoteSvc{
			list: func(context.Context, string, string, string) ([]domain.QuoteRequest, error) {
				return nil, services.ErrProjectNotFound
			},
		}
		r := newQuoteRouter(svc, "u1", "u1@example.com")
		w := doJSON(r, http.MethodGet, "/projects/"+uuid.NewString()+"/quotes", "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("not found -> %d", w.Code)
		}
	}
}

// ---------- GetQuote ----------

func TestGetQuote_UUID_NotFound_Success(t *testing.T) {
	// bad UUID -> 400
	{
		r := newQuoteRouter(stubQuoteSvc{}, "u1", "u1@example.com")
		w := doJSON(r, http.MethodGet, "/quotes/not-uuid", "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("uuid 400 -> %d", w.Code)
		}
	}

	// missing -> 404
	{
		svc := stubQuoteSvc{
			get: func(context.Context, string, string, string) (*domain.QuoteRequest, error) {
				return nil, services.ErrQuoteNotFound
			},
		}
		r := newQuoteRouter(svc, "u1", "u1@example.com")
		w := doJSON(r, http.MethodGet, "/quotes/"+uuid.NewString(), "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("not found -> %d", w.Code)
		}
	}

	// success
	{
		id := uuid.NewString()
		svc := stubQuoteSvc{
			get: func(_ context.Context, _, _, quoteID string) (*domain.QuoteRequest, error) {
				q := completedQuote(t, uuid.NewString())
				q.ID = quoteID
				return q, nil
			},
		}
		r := newQuoteRouter(svc, "u1", "u1@example.com")
		w := doJSON(r, http.MethodGet, "/quotes/"+id, "")
		if w.Code != http.StatusOK {
			t.Fatalf("get -> %d body=%s", w.Code, w.Body.String())
		}
		var out QuoteResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.ID != id || len(out.VendorQuotes) != 2 {
			t.Fatalf("quote mismatch: %+v", out)
		}
	}
}

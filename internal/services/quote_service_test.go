package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sitewise/go-project-backend/internal/aiclient"
	"github.com/sitewise/go-project-backend/internal/domain"
)

// ---------- test helpers ----------

func newQuoteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:quotesvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	err = db.AutoMigrate(
		&domain.Segment{},
		&domain.VendorOffering{},
		&domain.UserInfo{},
		&domain.Project{},
		&domain.ProjectShare{},
		&domain.QuoteRequest{},
		&domain.QuoteImpression{},
	)
	if err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakePricer prices offerings from canned per-offering tables. The mutex
// guards the call log because the orchestrator fans out one goroutine per
// offering.
type fakePricer struct {
	mu        sync.Mutex
	calls     map[string]int
	results   map[string]*aiclient.VendorQuoteResult
	errs      map[string]error
	failFirst map[string]int
	gotReqs   []aiclient.VendorQuoteRequest
}

func newFakePricer() *fakePricer {
	return &fakePricer{
		calls:     map[string]int{},
		results:   map[string]*aiclient.VendorQuoteResult{},
		errs:      map[string]error{},
		failFirst: map[string]int{},
	}
}

func (f *fakePricer) GenerateVendorQuote(_ context.Context, req aiclient.VendorQuoteRequest) (*aiclient.VendorQuoteResult, error) {
	id := req.Vendor.OfferingID
	f.mu.Lock()
	f.calls[id]++
	n := f.calls[id]
	f.gotReqs = append(f.gotReqs, req)
	f.mu.Unlock()

	if n <= f.failFirst[id] {
		return nil, fmt.Errorf("%w: connect refused", aiclient.ErrUnavailable)
	}
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	if res := f.results[id]; res != nil {
		return res, nil
	}
	return &aiclient.VendorQuoteResult{RatePerUnit: 10, Total: req.ProjectSqft * 10}, nil
}

// reqFor returns the last request the pricer saw for one offering.
func (f *fakePricer) reqFor(t *testing.T, offeringID string) aiclient.VendorQuoteRequest {
	t.Helper()
	for i := len(f.gotReqs) - 1; i >= 0; i-- {
		if f.gotReqs[i].Vendor.OfferingID == offeringID {
			return f.gotReqs[i]
		}
	}
	t.Fatalf("no pricing request for offering %s", offeringID)
	return aiclient.VendorQuoteRequest{}
}

func seedOffering(t *testing.T, db *gorm.DB, id, company, email, segmentID, regions string) *domain.VendorOffering {
	t.Helper()
	o := &domain.VendorOffering{
		ID:              id,
		VendorID:        "vnd-" + id,
		VendorEmail:     email,
		CompanyName:     company,
		SegmentID:       segmentID,
		CountriesServed: "CA",
		RegionsServed:   regions,
		LeadTimeDays:    10,
		PricingNotes:    "standard rates",
		Active:          true,
	}
	if err := db.Create(o).Error; err != nil {
		t.Fatalf("seed offering %s: %v", id, err)
	}
	return o
}

type quoteFixture struct {
	svc     *QuoteService
	db      *gorm.DB
	ai      *fakePricer
	project *domain.Project
}

func newQuoteFixture(t *testing.T) *quoteFixture {
	t.Helper()
	db := newQuoteDB(t)
	cat := seedCatalog(t, db)
	ai := newFakePricer()
	svc := &QuoteService{
		DB:      db,
		AI:      ai,
		Vendors: &VendorService{DB: db, Catalog: cat},
		Billing: &BillingService{DB: db, LeadPrice: 25},
		Catalog: cat,
	}
	p := &domain.Project{
		ID: uuid.NewString(), OwnerID: "owner", OwnerEmail: "owner@example.com", Name: "Harbor Tower",
		Street: "1 Pier Rd", City: "Toronto", Region: "ON", Country: "CA", PostalCode: "M5V 1A1",
		SquareFeet: 1000,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return &quoteFixture{svc: svc, db: db, ai: ai, project: p}
}

func (fx *quoteFixture) impressionCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := fx.db.Model(&domain.QuoteImpression{}).Count(&n).Error; err != nil {
		t.Fatalf("count impressions: %v", err)
	}
	return n
}

// ---------- Generate ----------

func TestQuoteService_Generate_CompletesWithQuotesAndImpressions(t *testing.T) {
	fx := newQuoteFixture(t)
	if err := fx.db.Create(&domain.UserInfo{ID: "owner", Email: "owner@example.com", FullName: "Olive Hart"}).Error; err != nil {
		t.Fatalf("seed user info: %v", err)
	}
	seedOffering(t, fx.db, "off-a", "Alpha Builders", "alpha@example.com", "framing", "")
	seedOffering(t, fx.db, "off-b", "Beta Construction", "beta@example.com", "framing", "ON,QC")
	fx.ai.results["off-a"] = &aiclient.VendorQuoteResult{RatePerUnit: 15, Total: 15000, Notes: "crew available in May"}
	fx.ai.results["off-b"] = &aiclient.VendorQuoteResult{RatePerUnit: 18, Total: 18000}

	q, err := fx.svc.Generate(context.Background(), "owner", "owner@example.com", fx.project.ID, "framing", 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if q.Status != domain.QuoteCompleted {
		t.Fatalf("expected completed, got %s", q.Status)
	}
	if q.SquareFeet != 1000 {
		t.Fatalf("expected the project square footage as fallback, got %v", q.SquareFeet)
	}
	if q.Street != "1 Pier Rd" || q.City != "Toronto" || q.Region != "ON" || q.Country != "CA" || q.PostalCode != "M5V 1A1" {
		t.Fatalf("expected the project address snapshot, got %+v", q)
	}
	if q.BenchmarkLow != 12000 || q.BenchmarkHigh != 20000 || q.Unit != "sqft" {
		t.Fatalf("expected benchmark (12000, 20000, sqft), got (%v, %v, %s)", q.BenchmarkLow, q.BenchmarkHigh, q.Unit)
	}

	matched, err := q.MatchedVendors()
	if err != nil {
		t.Fatalf("MatchedVendors: %v", err)
	}
	if len(matched) != 2 || matched[0] != "off-a" || matched[1] != "off-b" {
		t.Fatalf("expected matched [off-a off-b], got %v", matched)
	}

	quotes, err := q.QuoteList()
	if err != nil {
		t.Fatalf("QuoteList: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	first := quotes[0]
	if first.OfferingID != "off-a" || first.CompanyName != "Alpha Builders" || first.VendorEmail != "alpha@example.com" {
		t.Fatalf("unexpected first quote identity: %+v", first)
	}
	if first.RatePerUnit != 15 || first.Total != 15000 || first.LeadTimeDays != 10 || first.Notes != "crew available in May" {
		t.Fatalf("unexpected first quote pricing: %+v", first)
	}
	if quotes[1].OfferingID != "off-b" {
		t.Fatalf("expected matched order preserved, got %+v", quotes[1])
	}

	req := fx.ai.reqFor(t, "off-a")
	if req.Segment != "framing" || req.SegmentName != "Framing" || req.ProjectSqft != 1000 {
		t.Fatalf("unexpected pricing request: %+v", req)
	}
	if req.Country != "CA" || req.Region != "ON" || req.City != "Toronto" {
		t.Fatalf("expected the project location on the request, got %+v", req)
	}
	if req.Vendor.CompanyName != "Alpha Builders" || req.Vendor.PricingNotes != "standard rates" || req.Vendor.LeadTimeDays != 10 {
		t.Fatalf("expected the offering facts on the request, got %+v", req.Vendor)
	}

	if n := fx.impressionCount(t); n != 2 {
		t.Fatalf("expected 2 impressions, got %d", n)
	}
	var imp domain.QuoteImpression
	if err := fx.db.Where("vendor_offering_id = ?", "off-a").First(&imp).Error; err != nil {
		t.Fatalf("load impression: %v", err)
	}
	if imp.QuoteRequestID != q.ID || imp.ProjectID != fx.project.ID || imp.SegmentID != "framing" {
		t.Fatalf("unexpected impression triple: %+v", imp)
	}
	if imp.CustomerID != "owner" || imp.CustomerEmail != "owner@example.com" || imp.CustomerName != "Olive Hart" {
		t.Fatalf("unexpected customer snapshot: %+v", imp)
	}
	if imp.VendorEmail != "alpha@example.com" || imp.VendorCompanyName != "Alpha Builders" {
		t.Fatalf("unexpected vendor snapshot: %+v", imp)
	}
	if imp.ProjectName != "Harbor Tower" || imp.ProjectLocation != "Toronto, ON" || imp.ProjectSquareFeet != 1000 {
		t.Fatalf("unexpected project snapshot: %+v", imp)
	}
	if imp.QuotedRate != 15 || imp.QuotedTotal != 15000 || imp.AmountCharged != 25 {
		t.Fatalf("unexpected amounts: %+v", imp)
	}
}

func TestQuoteService_Generate_VendorFailureIsIsolated(t *testing.T) {
	fx := newQuoteFixture(t)
	seedOffering(t, fx.db, "off-a", "Alpha Builders", "alpha@example.com", "framing", "")
	seedOffering(t, fx.db, "off-b", "Beta Construction", "beta@example.com", "framing", "")
	fx.ai.errs["off-b"] = errors.New("pricing rules unparseable")

	q, err := fx.svc.Generate(context.Background(), "owner", "owner@example.com", fx.project.ID, "framing", 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if q.Status != domain.QuoteCompleted {
		t.Fatalf("expected completed, got %s", q.Status)
	}

	matched, _ := q.MatchedVendors()
	if len(matched) != 2 {
		t.Fatalf("expected both vendors matched, got %v", matched)
	}
	quotes, err := q.QuoteList()
	if err != nil {
		t.Fatalf("QuoteList: %v", err)
	}
	if len(quotes) != 1 || quotes[0].OfferingID != "off-a" {
		t.Fatalf("expected only the surviving vendor's quote, got %+v", quotes)
	}
	// Only surfaced quotes are billed.
	if n := fx.impressionCount(t); n != 1 {
		t.Fatalf("expected 1 impression, got %d", n)
	}
}

func TestQuoteService_Generate_NoMatchesCompletesEmpty(t *testing.T) {
	fx := newQuoteFixture(t)

	q, err := fx.svc.Generate(context.Background(), "owner", "owner@example.com", fx.project.ID, "roofing", 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if q.Status != domain.QuoteCompleted {
		t.Fatalf("expected completed, got %s", q.Status)
	}
	matched, err := q.MatchedVendors()
	if err != nil {
		t.Fatalf("MatchedVendors: %v", err)
	}
	quotes, err := q.QuoteList()
	if err != nil {
		t.Fatalf("QuoteList: %v", err)
	}
	if len(matched) != 0 || len(quotes) != 0 {
		t.Fatalf("expected empty lists, got %v / %+v", matched, quotes)
	}
	if n := fx.impressionCount(t); n != 0 {
		t.Fatalf("expected no impressions, got %d", n)
	}
}

func TestQuoteService_Generate_BackendDownFailsRequest(t *testing.T) {
	fx := newQuoteFixture(t)
	seedOffering(t, fx.db, "off-a", "Alpha Builders", "alpha@example.com", "framing", "")
	seedOffering(t, fx.db, "off-b", "Beta Construction", "beta@example.com", "framing", "")
	fx.ai.errs["off-a"] = fmt.Errorf("%w: dial tcp", aiclient.ErrUnavailable)
	fx.ai.errs["off-b"] = fmt.Errorf("%w: dial tcp", aiclient.ErrUnavailable)

	_, err := fx.svc.Generate(context.Background(), "owner", "owner@example.com", fx.project.ID, "framing", 0)
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}

	var rows []domain.QuoteRequest
	if err := fx.db.Find(&rows).Error; err != nil {
		t.Fatalf("load requests: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != domain.QuoteFailed {
		t.Fatalf("expected one failed request, got %+v", rows)
	}
	if rows[0].Error == nil || *rows[0].Error != "quote backend unavailable" {
		t.Fatalf("expected the failure note, got %v", rows[0].Error)
	}
	if n := fx.impressionCount(t); n != 0 {
		t.Fatalf("expected no impressions, got %d", n)
	}
}

func TestQuoteService_Generate_AllRejectedCompletesEmpty(t *testing.T) {
	fx := newQuoteFixture(t)
	seedOffering(t, fx.db, "off-a", "Alpha Builders", "alpha@example.com", "framing", "")
	seedOffering(t, fx.db, "off-b", "Beta Construction", "beta@example.com", "framing", "")
	// One vendor-specific rejection keeps the batch from counting as a
	// backend outage, even though nothing succeeded.
	fx.ai.errs["off-a"] = fmt.Errorf("%w: dial tcp", aiclient.ErrUnavailable)
	fx.ai.errs["off-b"] = errors.New("pricing rules unparseable")

	q, err := fx.svc.Generate(context.Background(), "owner", "owner@example.com", fx.project.ID, "framing", 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if q.Status != domain.QuoteCompleted {
		t.Fatalf("expected completed, got %s", q.Status)
	}
	quotes, _ := q.QuoteList()
	if len(quotes) != 0 {
		t.Fatalf("expected no quotes, got %+v", quotes)
	}
	if n := fx.impressionCount(t); n != 0 {
		t.Fatalf("expected no impressions, got %d", n)
	}
}

func TestQuoteService_Generate_RerunBillsOnce(t *testing.T) {
	fx := newQuoteFixture(t)
	seedOffering(t, fx.db, "off-a", "Alpha Builders", "alpha@example.com", "framing", "")

	ctx := context.Background()
	first, err := fx.svc.Generate(ctx, "owner", "owner@example.com", fx.project.ID, "framing", 0)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if n := fx.impressionCount(t); n != 1 {
		t.Fatalf("expected 1 impression after the first run, got %d", n)
	}

	// The customer edits the project and asks again. The new request carries
	// the fresh snapshot, the old one keeps its own, and the vendor is not
	// billed a second time for the same project segment.
	err = fx.db.Model(&domain.Project{}).Where("id = ?", fx.project.ID).
		Updates(map[string]any{"city": "Ottawa", "square_feet": 2000.0}).Error
	if err != nil {
		t.Fatalf("update project: %v", err)
	}

	second, err := fx.svc.Generate(ctx, "owner", "owner@example.com", fx.project.ID, "framing", 0)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected a new request row")
	}
	if second.Status != domain.QuoteCompleted {
		t.Fatalf("expected completed, got %s", second.Status)
	}
	if second.City != "Ottawa" || second.SquareFeet != 2000 {
		t.Fatalf("expected the fresh snapshot, got (%s, %v)", second.City, second.SquareFeet)
	}
	quotes, _ := second.QuoteList()
	if len(quotes) != 1 {
		t.Fatalf("expected the quote surfaced again, got %+v", quotes)
	}

	kept, err := fx.svc.Get(ctx, "owner", "owner@example.com", first.ID)
	if err != nil {
		t.Fatalf("Get first: %v", err)
	}
	if kept.City != "Toronto" || kept.SquareFeet != 1000 {
		t.Fatalf("expected the first snapshot frozen, got (%s, %v)", kept.City, kept.SquareFeet)
	}

	if n := fx.impressionCount(t); n != 1 {
		t.Fatalf("expected the ledger unchanged, got %d rows", n)
	}
}

func TestQuoteService_Generate_RetriesTransientFailure(t *testing.T) {
	fx := newQuoteFixture(t)
	fx.svc.Retries = 1
	seedOffering(t, fx.db, "off-a", "Alpha Builders", "alpha@example.com", "framing", "")
	fx.ai.failFirst["off-a"] = 1
	fx.ai.results["off-a"] = &aiclient.VendorQuoteResult{RatePerUnit: 15, Total: 37500}

	q, err := fx.svc.Generate(context.Background(), "owner", "owner@example.com", fx.project.ID, "framing", 2500)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if q.Status != domain.QuoteCompleted || q.SquareFeet != 2500 {
		t.Fatalf("expected completed at 2500 sqft, got (%s, %v)", q.Status, q.SquareFeet)
	}
	quotes, _ := q.QuoteList()
	if len(quotes) != 1 || quotes[0].Total != 37500 {
		t.Fatalf("expected the retried quote, got %+v", quotes)
	}
	if fx.ai.calls["off-a"] != 2 {
		t.Fatalf("expected 2 attempts, got %d", fx.ai.calls["off-a"])
	}
	if req := fx.ai.reqFor(t, "off-a"); req.ProjectSqft != 2500 {
		t.Fatalf("expected the explicit square footage priced, got %v", req.ProjectSqft)
	}
}

func TestQuoteService_Generate_AccessAndValidation(t *testing.T) {
	fx := newQuoteFixture(t)
	ctx := context.Background()
	share := &domain.ProjectShare{ID: uuid.NewString(), ProjectID: fx.project.ID, Email: "viewer@example.com", Permission: domain.PermissionView, CreatedBy: "owner"}
	if err := fx.db.Create(share).Error; err != nil {
		t.Fatalf("seed share: %v", err)
	}

	// Requesting quotes changes project state, so a view grant is not enough.
	if _, err := fx.svc.Generate(ctx, "viewer-id", "viewer@example.com", fx.project.ID, "framing", 0); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a viewer, got %v", err)
	}
	if _, err := fx.svc.Generate(ctx, "mallory", "mallory@example.com", fx.project.ID, "framing", 0); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a stranger, got %v", err)
	}
	if _, err := fx.svc.Generate(ctx, "owner", "owner@example.com", uuid.NewString(), "framing", 0); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
	if _, err := fx.svc.Generate(ctx, "owner", "owner@example.com", fx.project.ID, "landscaping", 0); !errors.Is(err, ErrInvalidSegment) {
		t.Fatalf("expected ErrInvalidSegment, got %v", err)
	}
	if _, err := fx.svc.Generate(ctx, "owner", "owner@example.com", fx.project.ID, "framing", -50); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("expected ErrInvalidSize, got %v", err)
	}

	unsized := &domain.Project{ID: uuid.NewString(), OwnerID: "owner", OwnerEmail: "owner@example.com", Name: "Sketch"}
	if err := fx.db.Create(unsized).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	if _, err := fx.svc.Generate(ctx, "owner", "owner@example.com", unsized.ID, "framing", 0); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("expected ErrInvalidSize without a square footage, got %v", err)
	}

	// None of the rejected calls may have left a request row behind.
	var n int64
	if err := fx.db.Model(&domain.QuoteRequest{}).Count(&n).Error; err != nil {
		t.Fatalf("count requests: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no request rows, got %d", n)
	}
}

// ---------- Get / List ----------

func TestQuoteService_Get_ViewAccess(t *testing.T) {
	fx := newQuoteFixture(t)
	seedOffering(t, fx.db, "off-a", "Alpha Builders", "alpha@example.com", "framing", "")
	ctx := context.Background()

	q, err := fx.svc.Generate(ctx, "owner", "owner@example.com", fx.project.ID, "framing", 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	share := &domain.ProjectShare{ID: uuid.NewString(), ProjectID: fx.project.ID, Email: "viewer@example.com", Permission: domain.PermissionView, CreatedBy: "owner"}
	if err := fx.db.Create(share).Error; err != nil {
		t.Fatalf("seed share: %v", err)
	}

	if _, err := fx.svc.Get(ctx, "owner", "owner@example.com", q.ID); err != nil {
		t.Fatalf("Get owner: %v", err)
	}
	if _, err := fx.svc.Get(ctx, "viewer-id", "Viewer@Example.com", q.ID); err != nil {
		t.Fatalf("Get viewer: %v", err)
	}
	if _, err := fx.svc.Get(ctx, "mallory", "mallory@example.com", q.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := fx.svc.Get(ctx, "owner", "owner@example.com", uuid.NewString()); !errors.Is(err, ErrQuoteNotFound) {
		t.Fatalf("expected ErrQuoteNotFound, got %v", err)
	}
}

func TestQuoteService_List_ScopedToProject(t *testing.T) {
	fx := newQuoteFixture(t)
	seedOffering(t, fx.db, "off-a", "Alpha Builders", "alpha@example.com", "framing", "")
	ctx := context.Background()

	if _, err := fx.svc.Generate(ctx, "owner", "owner@example.com", fx.project.ID, "framing", 0); err != nil {
		t.Fatalf("Generate framing: %v", err)
	}
	if _, err := fx.svc.Generate(ctx, "owner", "owner@example.com", fx.project.ID, "roofing", 0); err != nil {
		t.Fatalf("Generate roofing: %v", err)
	}

	rows, err := fx.svc.List(ctx, "owner", "owner@example.com", fx.project.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(rows))
	}
	if _, err := fx.svc.List(ctx, "mallory", "mallory@example.com", fx.project.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := fx.svc.List(ctx, "owner", "owner@example.com", uuid.NewString()); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}

// ---------- helpers ----------

func TestJoinLocation(t *testing.T) {
	cases := map[string]struct {
		city, region string
		want         string
	}{
		"both":        {"Toronto", "ON", "Toronto, ON"},
		"city only":   {"Toronto", "", "Toronto"},
		"region only": {"", "ON", "ON"},
		"neither":     {"", "  ", ""},
		"padded":      {" Toronto ", " ON ", "Toronto, ON"},
	}
	for name, tc := range cases {
		if got := joinLocation(tc.city, tc.region); got != tc.want {
			t.Errorf("%s: joinLocation(%q, %q) = %q, want %q", name, tc.city, tc.region, got, tc.want)
		}
	}
}

package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/services"
)

func newNotifyDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:notify_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&domain.Segment{}, &domain.QuoteImpression{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newNotifyCatalog(t *testing.T, db *gorm.DB) *services.CatalogService {
	t.Helper()
	seg := domain.Segment{
		ID: "roofing", Name: "Roofing", Phase: "Envelope", PhaseOrder: 3,
		BenchmarkLow: 7.5, BenchmarkHigh: 14.25, Unit: "sqft",
	}
	if err := db.Create(&seg).Error; err != nil {
		t.Fatalf("seed segment: %v", err)
	}
	cat, err := services.NewCatalogService(context.Background(), db)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return cat
}

func seedLead(t *testing.T, db *gorm.DB, id, segmentID string, created time.Time) {
	t.Helper()
	imp := domain.QuoteImpression{
		ID:                id,
		QuoteRequestID:    uuid.NewString(),
		ProjectID:         "p1",
		SegmentID:         segmentID,
		VendorOfferingID:  uuid.NewString(),
		CustomerID:        "owner",
		CustomerEmail:     "owner@example.com",
		CustomerName:      "Olive Hart",
		VendorEmail:       "vendor@example.com",
		VendorCompanyName: "Acme Roofing",
		ProjectName:       "Harbor Tower",
		ProjectLocation:   "Toronto, ON, CA",
		ProjectSquareFeet: 1200,
		QuotedRate:        7.5,
		QuotedTotal:       9000,
		AmountCharged:     25,
		BillingStatus:     domain.BillingPending,
		EmailStatus:       domain.EmailPending,
		CreatedAt:         created,
	}
	if err := db.Create(&imp).Error; err != nil {
		t.Fatalf("seed lead %s: %v", id, err)
	}
}

func leadStatus(t *testing.T, db *gorm.DB, id string) domain.EmailStatus {
	t.Helper()
	var imp domain.QuoteImpression
	if err := db.First(&imp, "id = ?", id).Error; err != nil {
		t.Fatalf("read lead %s: %v", id, err)
	}
	return imp.EmailStatus
}

// ---------- fake sender ----------

type leadCall struct {
	id      string
	vendor  string
	segment string
}

type fakeLeadSender struct {
	mu    sync.Mutex
	calls []leadCall
	errs  map[string]error
}

func (f *fakeLeadSender) SendLead(_ context.Context, lead *domain.QuoteImpression, segmentName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, leadCall{id: lead.ID, vendor: lead.VendorEmail, segment: segmentName})
	if f.errs != nil {
		return f.errs[lead.ID]
	}
	return nil
}

func newDispatcher(t *testing.T, db *gorm.DB, sender Sender, batch int) *Dispatcher {
	t.Helper()
	return &Dispatcher{
		Billing:   &services.BillingService{DB: db, LeadPrice: 25},
		Catalog:   newNotifyCatalog(t, db),
		Sender:    sender,
		BatchSize: batch,
	}
}

// ---------- dispatch passes ----------

func TestDispatcher_DrainsOldestFirstInBatches(t *testing.T) {
	db := newNotifyDB(t)
	sender := &fakeLeadSender{}
	d := newDispatcher(t, db, sender, 2)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	seedLead(t, db, "imp-1", "roofing", base)
	seedLead(t, db, "imp-2", "roofing", base.Add(time.Minute))
	seedLead(t, db, "imp-3", "roofing", base.Add(2*time.Minute))

	sent, failed, err := d.DispatchOnce(ctx)
	if err != nil {
		t.Fatalf("DispatchOnce: %v", err)
	}
	if sent != 2 || failed != 0 {
		t.Fatalf("expected (2, 0), got (%d, %d)", sent, failed)
	}
	if len(sender.calls) != 2 || sender.calls[0].id != "imp-1" || sender.calls[1].id != "imp-2" {
		t.Fatalf("expected the two oldest leads, got %+v", sender.calls)
	}
	if got := leadStatus(t, db, "imp-1"); got != domain.EmailSent {
		t.Fatalf("imp-1 status = %q, want sent", got)
	}
	if got := leadStatus(t, db, "imp-3"); got != domain.EmailPending {
		t.Fatalf("imp-3 status = %q, want still pending", got)
	}

	sent, failed, err = d.DispatchOnce(ctx)
	if err != nil || sent != 1 || failed != 0 {
		t.Fatalf("second pass: (%d, %d, %v), want (1, 0, nil)", sent, failed, err)
	}
	if got := leadStatus(t, db, "imp-3"); got != domain.EmailSent {
		t.Fatalf("imp-3 status = %q, want sent", got)
	}
}

func TestDispatcher_FailureMarksFailedOnce(t *testing.T) {
	db := newNotifyDB(t)
	sender := &fakeLeadSender{errs: map[string]error{"imp-1": errors.New("rate limited")}}
	d := newDispatcher(t, db, sender, 10)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	seedLead(t, db, "imp-1", "roofing", base)
	seedLead(t, db, "imp-2", "roofing", base.Add(time.Minute))

	sent, failed, err := d.DispatchOnce(ctx)
	if err != nil {
		t.Fatalf("DispatchOnce: %v", err)
	}
	if sent != 1 || failed != 1 {
		t.Fatalf("expected (1, 1), got (%d, %d)", sent, failed)
	}
	if got := leadStatus(t, db, "imp-1"); got != domain.EmailFailed {
		t.Fatalf("imp-1 status = %q, want failed", got)
	}
	if got := leadStatus(t, db, "imp-2"); got != domain.EmailSent {
		t.Fatalf("imp-2 status = %q, want sent", got)
	}

	// A failed row is attempted once; the next pass finds nothing.
	sent, failed, err = d.DispatchOnce(ctx)
	if err != nil || sent != 0 || failed != 0 {
		t.Fatalf("second pass: (%d, %d, %v), want (0, 0, nil)", sent, failed, err)
	}
	if len(sender.calls) != 2 {
		t.Fatalf("expected no retries, got %d calls", len(sender.calls))
	}
}

func TestDispatcher_DisabledWithoutSender(t *testing.T) {
	db := newNotifyDB(t)
	d := &Dispatcher{Billing: &services.BillingService{DB: db, LeadPrice: 25}}
	ctx := context.Background()

	seedLead(t, db, "imp-1", "roofing", time.Now().Add(-time.Hour))

	sent, failed, err := d.DispatchOnce(ctx)
	if err != nil || sent != 0 || failed != 0 {
		t.Fatalf("expected a no-op, got (%d, %d, %v)", sent, failed, err)
	}
	if got := leadStatus(t, db, "imp-1"); got != domain.EmailPending {
		t.Fatalf("imp-1 status = %q, want untouched", got)
	}

	if err := d.Start(time.Minute); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if d.cron != nil {
		t.Fatal("expected no schedule without a sender")
	}
	d.Stop()
}

func TestDispatcher_SegmentNameFromCatalog(t *testing.T) {
	db := newNotifyDB(t)
	sender := &fakeLeadSender{}
	d := newDispatcher(t, db, sender, 10)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	seedLead(t, db, "imp-1", "roofing", base)
	seedLead(t, db, "imp-2", "demolition", base.Add(time.Minute))

	if _, _, err := d.DispatchOnce(ctx); err != nil {
		t.Fatalf("DispatchOnce: %v", err)
	}
	if len(sender.calls) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sender.calls))
	}
	if sender.calls[0].segment != "Roofing" {
		t.Fatalf("expected the catalog display name, got %q", sender.calls[0].segment)
	}
	// Segments gone from the catalog fall back to the stored id.
	if sender.calls[1].segment != "demolition" {
		t.Fatalf("expected the raw segment id, got %q", sender.calls[1].segment)
	}
}

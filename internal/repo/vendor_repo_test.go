package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sitewise/go-project-backend/internal/domain"
)

func newVendorRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Segment{}, &domain.VendorOffering{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if err := db.Create(&domain.Segment{ID: "framing", Name: "Framing", Phase: "Structure", PhaseOrder: 2, BenchmarkLow: 12, BenchmarkHigh: 22, Unit: "sqft"}).Error; err != nil {
		t.Fatalf("seed segment: %v", err)
	}
	return db
}

func TestCreateOffering_DuplicatePerVendorSegment(t *testing.T) {
	db := newVendorRepoDB(t)

	o, err := CreateOffering(context.Background(), db, &domain.VendorOffering{
		VendorID: "v1", VendorEmail: "v1@example.com", CompanyName: "Acme Framing",
		SegmentID: "framing", CountriesServed: "CA",
	})
	if err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}
	if o.ID == "" || o.CreatedAt.IsZero() {
		t.Fatalf("expected assigned id/timestamp: %+v", o)
	}

	// Same vendor, same segment → duplicate.
	if _, err := CreateOffering(context.Background(), db, &domain.VendorOffering{
		VendorID: "v1", VendorEmail: "v1@example.com", CompanyName: "Acme Framing",
		SegmentID: "framing", CountriesServed: "CA",
	}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Different vendor on the same segment is fine.
	if _, err := CreateOffering(context.Background(), db, &domain.VendorOffering{
		VendorID: "v2", VendorEmail: "v2@example.com", CompanyName: "Beta Builders",
		SegmentID: "framing", CountriesServed: "CA",
	}); err != nil {
		t.Fatalf("second vendor: %v", err)
	}
}

func TestListActiveOfferingsBySegment_DeterministicOrder(t *testing.T) {
	db := newVendorRepoDB(t)

	// Insert out of alphabetical order; one inactive row must be excluded.
	seed := []domain.VendorOffering{
		{ID: "o-z", VendorID: "vz", VendorEmail: "z@x", CompanyName: "Zenith", SegmentID: "framing", CountriesServed: "CA", Active: true},
		{ID: "o-a2", VendorID: "va2", VendorEmail: "a2@x", CompanyName: "Acme", SegmentID: "framing", CountriesServed: "CA", Active: true},
		{ID: "o-a1", VendorID: "va1", VendorEmail: "a1@x", CompanyName: "Acme", SegmentID: "framing", CountriesServed: "CA", Active: true},
		{ID: "o-off", VendorID: "voff", VendorEmail: "off@x", CompanyName: "Dormant", SegmentID: "framing", CountriesServed: "CA", Active: false},
	}
	for _, o := range seed {
		if err := db.Create(&o).Error; err != nil {
			t.Fatalf("seed %s: %v", o.ID, err)
		}
	}

	list, err := ListActiveOfferingsBySegment(context.Background(), db, "framing")
	if err != nil {
		t.Fatalf("ListActiveOfferingsBySegment: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 active offerings, got %d", len(list))
	}
	// Company name asc, then id asc for the tie.
	if list[0].ID != "o-a1" || list[1].ID != "o-a2" || list[2].ID != "o-z" {
		t.Fatalf("unexpected order: %v, %v, %v", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestUpdateOfferingFields_ScopedToVendor(t *testing.T) {
	db := newVendorRepoDB(t)
	o, err := CreateOffering(context.Background(), db, &domain.VendorOffering{
		VendorID: "v1", VendorEmail: "v1@x", CompanyName: "Acme", SegmentID: "framing", CountriesServed: "CA",
	})
	if err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}

	// Another vendor cannot touch it.
	if err := UpdateOfferingFields(context.Background(), db, o.ID, "v2", map[string]any{"active": false}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign vendor, got %v", err)
	}

	if err := UpdateOfferingFields(context.Background(), db, o.ID, "v1", map[string]any{
		"active":         false,
		"lead_time_days": 21,
	}); err != nil {
		t.Fatalf("UpdateOfferingFields: %v", err)
	}
	got, err := GetOffering(context.Background(), db, o.ID)
	if err != nil || got.Active || got.LeadTimeDays != 21 {
		t.Fatalf("update not applied: err=%v got=%+v", err, got)
	}
}

func TestDeleteOffering_ScopedToVendor(t *testing.T) {
	db := newVendorRepoDB(t)
	o, err := CreateOffering(context.Background(), db, &domain.VendorOffering{
		VendorID: "v1", VendorEmail: "v1@x", CompanyName: "Acme", SegmentID: "framing", CountriesServed: "CA",
	})
	if err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}

	if err := DeleteOffering(context.Background(), db, o.ID, "v2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign vendor, got %v", err)
	}
	if err := DeleteOffering(context.Background(), db, o.ID, "v1"); err != nil {
		t.Fatalf("DeleteOffering: %v", err)
	}
	if _, err := GetOffering(context.Background(), db, o.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("offering still present after delete")
	}
}

func TestListOfferingsByVendor(t *testing.T) {
	db := newVendorRepoDB(t)
	if err := db.Create(&domain.Segment{ID: "roofing", Name: "Roofing", Phase: "Envelope", PhaseOrder: 3, BenchmarkLow: 6, BenchmarkHigh: 12, Unit: "sqft"}).Error; err != nil {
		t.Fatalf("seed segment: %v", err)
	}

	t0 := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	for i, seg := range []string{"framing", "roofing"} {
		o := domain.VendorOffering{
			ID: fmt.Sprintf("o%d", i), VendorID: "v1", VendorEmail: "v1@x", CompanyName: "Acme",
			SegmentID: seg, CountriesServed: "CA", Active: true,
			CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(&o).Error; err != nil {
			t.Fatalf("seed %s: %v", o.ID, err)
		}
	}

	list, err := ListOfferingsByVendor(context.Background(), db, "v1")
	if err != nil {
		t.Fatalf("ListOfferingsByVendor: %v", err)
	}
	if len(list) != 2 || list[0].ID != "o0" || list[1].ID != "o1" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/services"
)

// newSegmentCatalog loads a real catalog service from a seeded database, so
// these tests cover the snapshot load path as well as the handlers.
func newSegmentCatalog(t *testing.T) *services.CatalogService {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:seghandlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Segment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	segs := []domain.Segment{
		{ID: "site-prep", Name: "Site Preparation", Phase: "Pre-Construction", PhaseOrder: 1, BenchmarkLow: 1.5, BenchmarkHigh: 3, Unit: "sqft"},
		{ID: "framing", Name: "Framing", Phase: "Structure", PhaseOrder: 2, BenchmarkLow: 12, BenchmarkHigh: 20, Unit: "sqft"},
		{ID: "roofing", Name: "Roofing", Phase: "Structure", PhaseOrder: 2, BenchmarkLow: 4, BenchmarkHigh: 11, Unit: "sqft"},
	}
	if err := db.Create(&segs).Error; err != nil {
		t.Fatalf("seed segments: %v", err)
	}

	cat, err := services.NewCatalogService(context.Background(), db)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

// The catalog routes are public, so the router carries no principal.
func newSegmentRouter(cat CatalogService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(Deps{Catalog: cat})
	r := gin.New()
	r.GET("/segments", h.ListSegments)
	r.GET("/segments/:id", h.GetSegment)
	r.GET("/segments/:id/benchmark", h.SegmentBenchmark)
	return r
}

func TestListSegments_GroupedByPhase(t *testing.T) {
	r := newSegmentRouter(newSegmentCatalog(t))

	w := doJSON(r, http.MethodGet, "/segments", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d body=%s", w.Code, w.Body.String())
	}

	var out ListSegmentsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(out.Phases))
	}
	if out.Phases[0].Phase != "Pre-Construction" || out.Phases[0].PhaseOrder != 1 || len(out.Phases[0].Segments) != 1 {
		t.Fatalf("first phase mismatch: %+v", out.Phases[0])
	}
	st := out.Phases[1]
	if st.Phase != "Structure" || len(st.Segments) != 2 {
		t.Fatalf("second phase mismatch: %+v", st)
	}
	// Segments within a phase come back name-ordered.
	if st.Segments[0].ID != "framing" || st.Segments[1].ID != "roofing" {
		t.Fatalf("segment order mismatch: %s, %s", st.Segments[0].ID, st.Segments[1].ID)
	}
}

func TestGetSegment_Found_Unknown(t *testing.T) {
	r := newSegmentRouter(newSegmentCatalog(t))

	// known id
	{
		w := doJSON(r, http.MethodGet, "/segments/framing", "")
		if w.Code != http.StatusOK {
			t.Fatalf("get -> %d body=%s", w.Code, w.Body.String())
		}
		var sg domain.Segment
		if err := json.Unmarshal(w.Body.Bytes(), &sg); err != nil {
			t.Fatalf("json: %v", err)
		}
		if sg.Name != "Framing" || sg.Phase != "Structure" {
			t.Fatalf("segment mismatch: %+v", sg)
		}
	}

	// unknown id is a missing resource, not a bad request
	{
		w := doJSON(r, http.MethodGet, "/segments/plumbing", "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("unknown -> %d", w.Code)
		}
		var body ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("json: %v", err)
		}
		if body.Code != ErrCodeNotFound {
			t.Fatalf("code = %q", body.Code)
		}
	}
}

func TestSegmentBenchmark_MathAndValidation(t *testing.T) {
	r := newSegmentRouter(newSegmentCatalog(t))

	// scaled range
	{
		w := doJSON(r, http.MethodGet, "/segments/framing/benchmark?sqft=2000", "")
		if w.Code != http.StatusOK {
			t.Fatalf("benchmark -> %d body=%s", w.Code, w.Body.String())
		}
		var out BenchmarkResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.SegmentID != "framing" || out.SquareFeet != 2000 {
			t.Fatalf("echo mismatch: %+v", out)
		}
		if out.Low != 24000 || out.High != 40000 || out.Unit != "sqft" {
			t.Fatalf("range mismatch: %+v", out.Benchmark)
		}
	}

	// fractional unit price
	{
		w := doJSON(r, http.MethodGet, "/segments/site-prep/benchmark?sqft=1000", "")
		if w.Code != http.StatusOK {
			t.Fatalf("benchmark -> %d body=%s", w.Code, w.Body.String())
		}
		var out BenchmarkResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.Low != 1500 || out.High != 3000 {
			t.Fatalf("range mismatch: %+v", out.Benchmark)
		}
	}

	// missing and malformed sqft -> 400
	for _, path := range []string{
		"/segments/framing/benchmark",
		"/segments/framing/benchmark?sqft=huge",
	} {
		w := doJSON(r, http.MethodGet, path, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s -> %d", path, w.Code)
		}
	}

	// non-positive sqft -> 400
	for _, path := range []string{
		"/segments/framing/benchmark?sqft=0",
		"/segments/framing/benchmark?sqft=-50",
	} {
		w := doJSON(r, http.MethodGet, path, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s -> %d", path, w.Code)
		}
	}

	// unknown segment wins over a valid size
	{
		w := doJSON(r, http.MethodGet, "/segments/plumbing/benchmark?sqft=2000", "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("unknown segment -> %d", w.Code)
		}
	}
}

// Package domain defines the core persistence models for the application.
// This file holds the quote-matching side of the schema: the segment
// reference catalog, vendor offerings, quote requests, and the append-only
// quote impressions that drive billing.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Segment is one trade/category of construction work from the static
// reference catalog: display metadata, phase ordering for grouped listings,
// and the per-unit benchmark price range used by the estimator. Segments are
// seeded once and treated as immutable at request time.
type Segment struct {
	ID            string  `json:"id"             gorm:"type:varchar(64);primaryKey"`
	Name          string  `json:"name"           gorm:"type:varchar(128);not null"`
	Phase         string  `json:"phase"          gorm:"type:varchar(64);not null"`
	PhaseOrder    int     `json:"phase_order"    gorm:"not null;default:0"`
	BenchmarkLow  float64 `json:"benchmark_low"  gorm:"not null;check:benchmark_low >= 0"`
	BenchmarkHigh float64 `json:"benchmark_high" gorm:"not null;check:benchmark_high >= benchmark_low"`
	Unit          string  `json:"unit"           gorm:"type:varchar(16);not null;default:'sqft'"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Segment.
func (Segment) TableName() string { return "segments" }

// VendorOffering is one vendor's offering for a single segment: where they
// serve and whether they currently participate in matching. Served sets are
// stored as comma-separated code lists; an empty region set means "all
// regions of the served countries". One offering per (vendor, segment) is
// enforced by a unique index.
type VendorOffering struct {
	ID          string `json:"id"           gorm:"type:char(36);primaryKey"`
	VendorID    string `json:"vendor_id"    gorm:"type:varchar(64);not null;index;uniqueIndex:ux_offerings_vendor_segment"`
	VendorEmail string `json:"vendor_email" gorm:"type:varchar(255);not null;index"`
	CompanyName string `json:"company_name" gorm:"type:varchar(255);not null"`
	SegmentID   string `json:"segment_id"   gorm:"type:varchar(64);not null;index;uniqueIndex:ux_offerings_vendor_segment"`

	CountriesServed string `json:"countries_served" gorm:"type:text;not null;default:'CA'"`
	RegionsServed   string `json:"regions_served"   gorm:"type:text"`

	LeadTimeDays int    `json:"lead_time_days" gorm:"not null;default:0"`
	PricingNotes string `json:"pricing_notes"  gorm:"type:text"`
	// No column default: GORM drops explicit false for defaulted columns.
	Active bool `json:"active" gorm:"not null;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Segment is the offered trade. Offerings are cascade-deleted when the
	// catalog entry is removed.
	Segment Segment `json:"-" gorm:"foreignKey:SegmentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for VendorOffering.
func (VendorOffering) TableName() string { return "vendor_offerings" }

// Countries returns the served-country codes as a slice.
func (v *VendorOffering) Countries() []string { return splitSet(v.CountriesServed) }

// Regions returns the served-region codes as a slice; empty means all
// regions of the served countries.
func (v *VendorOffering) Regions() []string { return splitSet(v.RegionsServed) }

// ServesCountry reports whether the offering serves the given country code.
func (v *VendorOffering) ServesCountry(country string) bool {
	return containsFold(v.Countries(), country)
}

// ServesRegion reports whether the offering serves the given region. An
// empty region set matches every region.
func (v *VendorOffering) ServesRegion(region string) bool {
	regions := v.Regions()
	if len(regions) == 0 {
		return true
	}
	return containsFold(regions, region)
}

// JoinSet normalizes a code list into the canonical comma-separated column
// form: entries trimmed, empties dropped, duplicates removed case-insensitively
// while preserving first-seen casing and order.
func JoinSet(vals []string) string {
	seen := make(map[string]struct{}, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return strings.Join(out, ",")
}

func splitSet(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// QuoteRequest is one customer request for vendor quotes on a project
// segment. The address columns are a snapshot frozen at creation time and
// never re-read from the live project. MatchedVendorIDs and VendorQuotes are
// JSON columns whose order follows the matched-vendor order, so repeated
// reads of a completed request are stable.
//
// Status follows the closed QuoteStatus enumeration: matching_vendors →
// generating_quotes → completed/failed, with a direct matching_vendors →
// completed shortcut when no vendor matches.
type QuoteRequest struct {
	ID          string `json:"id"           gorm:"type:char(36);primaryKey"`
	ProjectID   string `json:"project_id"   gorm:"type:char(36);not null;index"`
	RequesterID string `json:"requester_id" gorm:"type:varchar(64);not null;index"`
	SegmentID   string `json:"segment_id"   gorm:"type:varchar(64);not null;index"`
	SquareFeet  float64 `json:"square_feet" gorm:"not null"`

	Street     string `json:"street"      gorm:"type:varchar(255)"`
	City       string `json:"city"        gorm:"type:varchar(128)"`
	Region     string `json:"region"      gorm:"type:varchar(128)"`
	Country    string `json:"country"     gorm:"type:varchar(2)"`
	PostalCode string `json:"postal_code" gorm:"type:varchar(16)"`

	Status           QuoteStatus `json:"status" gorm:"type:varchar(24);not null;default:'matching_vendors';check:status IN ('matching_vendors','generating_quotes','completed','failed')"`
	MatchedVendorIDs string      `json:"-"      gorm:"type:text"`
	VendorQuotes     string      `json:"-"      gorm:"type:text"`

	BenchmarkLow  float64 `json:"benchmark_low"  gorm:"not null;default:0"`
	BenchmarkHigh float64 `json:"benchmark_high" gorm:"not null;default:0"`
	Unit          string  `json:"unit"           gorm:"type:varchar(16)"`

	Error *string `json:"error,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Project Project `json:"-" gorm:"foreignKey:ProjectID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Segment Segment `json:"-" gorm:"foreignKey:SegmentID;references:ID"`
}

// TableName returns the database table name for QuoteRequest.
func (QuoteRequest) TableName() string { return "quote_requests" }

// VendorQuote is one vendor's generated quote as persisted on a QuoteRequest.
type VendorQuote struct {
	OfferingID   string  `json:"offering_id"`
	CompanyName  string  `json:"company_name"`
	VendorEmail  string  `json:"vendor_email"`
	RatePerUnit  float64 `json:"rate_per_unit"`
	Total        float64 `json:"total"`
	LeadTimeDays int     `json:"lead_time_days,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

// QuoteList decodes the persisted vendor quotes. Empty column yields an
// empty slice.
func (q *QuoteRequest) QuoteList() ([]VendorQuote, error) {
	if strings.TrimSpace(q.VendorQuotes) == "" {
		return []VendorQuote{}, nil
	}
	var out []VendorQuote
	if err := json.Unmarshal([]byte(q.VendorQuotes), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetQuoteList encodes vendor quotes into the VendorQuotes column,
// preserving the given order.
func (q *QuoteRequest) SetQuoteList(quotes []VendorQuote) error {
	if len(quotes) == 0 {
		q.VendorQuotes = "[]"
		return nil
	}
	b, err := json.Marshal(quotes)
	if err != nil {
		return err
	}
	q.VendorQuotes = string(b)
	return nil
}

// MatchedVendors decodes the matched offering id list.
func (q *QuoteRequest) MatchedVendors() ([]string, error) {
	if strings.TrimSpace(q.MatchedVendorIDs) == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(q.MatchedVendorIDs), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetMatchedVendors encodes the matched offering id list in match order.
func (q *QuoteRequest) SetMatchedVendors(ids []string) error {
	if len(ids) == 0 {
		q.MatchedVendorIDs = "[]"
		return nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	q.MatchedVendorIDs = string(b)
	return nil
}

// QuoteImpression is the append-only billing record created the instant a
// vendor's quote is surfaced to a customer. Exactly one impression may exist
// per (project, segment, vendor offering), enforced by the unique index.
// Creation under that constraint is the system's sole concurrency-sensitive
// write. All quoted/project fields are snapshots at display time; after
// creation only BillingStatus and EmailStatus may change, each following its
// closed transition table.
type QuoteImpression struct {
	ID               string `json:"id"                 gorm:"type:char(36);primaryKey"`
	QuoteRequestID   string `json:"quote_request_id"   gorm:"type:char(36);not null;index"`
	ProjectID        string `json:"project_id"         gorm:"type:char(36);not null;index;uniqueIndex:ux_impressions_project_segment_vendor"`
	SegmentID        string `json:"segment_id"         gorm:"type:varchar(64);not null;uniqueIndex:ux_impressions_project_segment_vendor"`
	VendorOfferingID string `json:"vendor_offering_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_impressions_project_segment_vendor"`

	CustomerID    string `json:"customer_id"    gorm:"type:varchar(64);not null;index"`
	CustomerEmail string `json:"customer_email" gorm:"type:varchar(255);not null"`
	CustomerName  string `json:"customer_name"  gorm:"type:varchar(255)"`

	VendorEmail       string `json:"vendor_email"        gorm:"type:varchar(255);not null;index"`
	VendorCompanyName string `json:"vendor_company_name" gorm:"type:varchar(255);not null"`

	ProjectName       string  `json:"project_name"        gorm:"type:varchar(255);not null"`
	ProjectLocation   string  `json:"project_location"    gorm:"type:varchar(255)"`
	ProjectSquareFeet float64 `json:"project_square_feet" gorm:"not null;default:0"`

	QuotedRate    float64 `json:"quoted_rate"    gorm:"not null;default:0"`
	QuotedTotal   float64 `json:"quoted_total"   gorm:"not null;default:0"`
	AmountCharged float64 `json:"amount_charged" gorm:"not null;default:0"`

	BillingStatus BillingStatus `json:"billing_status" gorm:"type:varchar(16);not null;default:'pending';index;check:billing_status IN ('pending','invoiced','paid','waived')"`
	EmailStatus   EmailStatus   `json:"email_status"   gorm:"type:varchar(16);not null;default:'pending';index;check:email_status IN ('pending','sent','failed')"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for QuoteImpression.
func (QuoteImpression) TableName() string { return "quote_impressions" }

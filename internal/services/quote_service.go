// Package services – QuoteService
//
// This file implements the QuoteService, which orchestrates a quote request
// end to end: freeze the project snapshot, match eligible vendor offerings,
// fan out to the AI backend for one generated quote per vendor, record a
// billing impression for every quote that will be surfaced, and persist the
// completed request. The request row moves through the closed QuoteStatus
// machine; a vendor whose generation fails is omitted from the result
// without failing the batch.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/aiclient"
	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/repo"
)

// QuotePricer generates a single vendor's quote for a project. Implemented
// by *aiclient.Client.
type QuotePricer interface {
	GenerateVendorQuote(ctx context.Context, req aiclient.VendorQuoteRequest) (*aiclient.VendorQuoteResult, error)
}

// QuoteService runs the quote pipeline for a project segment.
//
// Retries is the number of extra generation attempts per vendor after the
// first; zero means one attempt.
type QuoteService struct {
	DB      *gorm.DB
	AI      QuotePricer
	Vendors *VendorService
	Billing *BillingService
	Catalog *CatalogService
	Retries int
}

// Generate runs one quote request synchronously and returns the terminal
// row.
//
// The project address and square footage are frozen onto the request at
// creation; later project edits never change an issued quote. Matching no
// vendors is a valid outcome and completes the request with an empty quote
// list. Individual generation failures drop that vendor from the result;
// the request only fails as a whole when every matched vendor failed and
// every failure was the backend being unreachable. One billing impression is
// recorded per surfaced quote, in matched-vendor order, deduplicated by the
// ledger itself.
func (s *QuoteService) Generate(ctx context.Context, userID, email, projectID, segmentID string, squareFeet float64) (*domain.QuoteRequest, error) {
	tr := otel.Tracer("services/QuoteService")
	ctx, span := tr.Start(ctx, "Generate",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("segment.id", segmentID),
			attribute.String("user.id", userID),
		))
	defer span.End()

	p, err := projectForUser(ctx, s.DB, projectID, userID, email, domain.PermissionEdit)
	if err != nil {
		return nil, err
	}
	sg, err := s.Catalog.Segment(segmentID)
	if err != nil {
		return nil, err
	}
	sqft := squareFeet
	if sqft == 0 {
		sqft = p.SquareFeet
	}
	if sqft <= 0 {
		return nil, ErrInvalidSize
	}
	bench, err := s.Catalog.Benchmark(segmentID, sqft)
	if err != nil {
		return nil, err
	}

	q, err := repo.CreateQuoteRequest(ctx, s.DB, &domain.QuoteRequest{
		ProjectID:     p.ID,
		RequesterID:   userID,
		SegmentID:     sg.ID,
		SquareFeet:    sqft,
		Street:        p.Street,
		City:          p.City,
		Region:        p.Region,
		Country:       p.Country,
		PostalCode:    p.PostalCode,
		Status:        domain.QuoteMatchingVendors,
		BenchmarkLow:  bench.Low,
		BenchmarkHigh: bench.High,
		Unit:          bench.Unit,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("quote.id", q.ID))

	matched, err := s.Vendors.Match(ctx, sg.ID, p.Country, p.Region)
	if err != nil {
		s.markFailed(ctx, q.ID, "vendor matching failed")
		return nil, err
	}
	if len(matched) == 0 {
		err = repo.UpdateQuoteRequestFields(ctx, s.DB, q.ID, map[string]any{
			"status":             domain.QuoteCompleted,
			"matched_vendor_ids": "[]",
			"vendor_quotes":      "[]",
		})
		if err != nil {
			return nil, err
		}
		return repo.GetQuoteRequest(ctx, s.DB, q.ID)
	}

	ids := make([]string, len(matched))
	for i := range matched {
		ids[i] = matched[i].ID
	}
	if err := q.SetMatchedVendors(ids); err != nil {
		return nil, err
	}
	err = repo.UpdateQuoteRequestFields(ctx, s.DB, q.ID, map[string]any{
		"status":             domain.QuoteGeneratingQuotes,
		"matched_vendor_ids": q.MatchedVendorIDs,
	})
	if err != nil {
		return nil, err
	}

	results, vendorErrs := s.priceVendors(ctx, p, sg, sqft, matched)

	if failed, msg := batchFailure(results, vendorErrs); failed {
		s.markFailed(ctx, q.ID, msg)
		return nil, ErrServiceUnavailable
	}

	customerName := ""
	if info, err := repo.GetUserInfo(ctx, s.DB, userID); err == nil {
		customerName = info.FullName
	}

	quotes := make([]domain.VendorQuote, 0, len(matched))
	for i := range matched {
		if results[i] == nil {
			continue
		}
		o := &matched[i]
		res := results[i]
		imp := &domain.QuoteImpression{
			QuoteRequestID:    q.ID,
			ProjectID:         p.ID,
			SegmentID:         sg.ID,
			VendorOfferingID:  o.ID,
			CustomerID:        userID,
			CustomerEmail:     normalizeEmail(email),
			CustomerName:      customerName,
			VendorEmail:       o.VendorEmail,
			VendorCompanyName: o.CompanyName,
			ProjectName:       p.Name,
			ProjectLocation:   joinLocation(p.City, p.Region),
			ProjectSquareFeet: sqft,
			QuotedRate:        res.RatePerUnit,
			QuotedTotal:       res.Total,
		}
		if _, _, err := s.Billing.RecordImpression(ctx, imp); err != nil {
			log.Error().Err(err).
				Str("quote_request_id", q.ID).
				Str("offering_id", o.ID).
				Msg("impression recording failed")
		}
		quotes = append(quotes, domain.VendorQuote{
			OfferingID:   o.ID,
			CompanyName:  o.CompanyName,
			VendorEmail:  o.VendorEmail,
			RatePerUnit:  res.RatePerUnit,
			Total:        res.Total,
			LeadTimeDays: o.LeadTimeDays,
			Notes:        res.Notes,
		})
	}

	if err := q.SetQuoteList(quotes); err != nil {
		return nil, err
	}
	err = repo.UpdateQuoteRequestFields(ctx, s.DB, q.ID, map[string]any{
		"status":        domain.QuoteCompleted,
		"vendor_quotes": q.VendorQuotes,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("quotes", len(quotes)))
	return repo.GetQuoteRequest(ctx, s.DB, q.ID)
}

// priceVendors generates quotes for every matched offering concurrently.
// The returned slices are indexed like matched: exactly one of
// results[i]/errs[i] is set per vendor.
func (s *QuoteService) priceVendors(ctx context.Context, p *domain.Project, sg *domain.Segment, sqft float64, matched []domain.VendorOffering) ([]*aiclient.VendorQuoteResult, []error) {
	results := make([]*aiclient.VendorQuoteResult, len(matched))
	errs := make([]error, len(matched))

	attempts := s.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var wg sync.WaitGroup
	for i := range matched {
		wg.Add(1)
		go func(i int, o domain.VendorOffering) {
			defer wg.Done()
			req := aiclient.VendorQuoteRequest{
				Segment:     sg.ID,
				SegmentName: sg.Name,
				ProjectSqft: sqft,
				City:        p.City,
				Region:      p.Region,
				Country:     p.Country,
				Vendor: aiclient.VendorFacts{
					OfferingID:   o.ID,
					CompanyName:  o.CompanyName,
					PricingNotes: o.PricingNotes,
					LeadTimeDays: o.LeadTimeDays,
				},
			}
			var res *aiclient.VendorQuoteResult
			var err error
			for a := 0; a < attempts; a++ {
				res, err = s.AI.GenerateVendorQuote(ctx, req)
				if err == nil {
					break
				}
			}
			if err != nil {
				errs[i] = err
				vendorQuoteCalls.WithLabelValues("error").Inc()
				log.Warn().Err(err).
					Str("offering_id", o.ID).
					Str("segment_id", sg.ID).
					Msg("vendor quote generation failed")
				return
			}
			vendorQuoteCalls.WithLabelValues("ok").Inc()
			results[i] = res
		}(i, matched[i])
	}
	wg.Wait()
	return results, errs
}

// batchFailure decides whether the whole request failed. Vendor-specific
// rejections are isolated; only a batch where nothing succeeded and every
// error was the backend being unreachable fails the request.
func batchFailure(results []*aiclient.VendorQuoteResult, errs []error) (bool, string) {
	for _, r := range results {
		if r != nil {
			return false, ""
		}
	}
	for _, err := range errs {
		if err == nil || !errors.Is(err, aiclient.ErrUnavailable) {
			return false, ""
		}
	}
	return len(errs) > 0, "quote backend unavailable"
}

// markFailed moves the request to failed with an error note. Best effort:
// the caller is already returning the primary error.
func (s *QuoteService) markFailed(ctx context.Context, quoteID, msg string) {
	err := repo.UpdateQuoteRequestFields(ctx, s.DB, quoteID, map[string]any{
		"status": domain.QuoteFailed,
		"error":  msg,
	})
	if err != nil {
		log.Error().Err(err).Str("quote_request_id", quoteID).Msg("failed to mark quote request failed")
	}
}

// Get returns one quote request for anyone who can view its project.
func (s *QuoteService) Get(ctx context.Context, userID, email, quoteID string) (*domain.QuoteRequest, error) {
	tr := otel.Tracer("services/QuoteService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("quote.id", quoteID)))
	defer span.End()

	q, err := repo.GetQuoteRequest(ctx, s.DB, quoteID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrQuoteNotFound
		}
		return nil, err
	}
	if _, err := projectForUser(ctx, s.DB, q.ProjectID, userID, email, domain.PermissionView); err != nil {
		return nil, err
	}
	return q, nil
}

// List returns a project's quote requests, newest first, for anyone who can
// view the project.
func (s *QuoteService) List(ctx context.Context, userID, email, projectID string) ([]domain.QuoteRequest, error) {
	tr := otel.Tracer("services/QuoteService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	if _, err := projectForUser(ctx, s.DB, projectID, userID, email, domain.PermissionView); err != nil {
		return nil, err
	}
	return repo.ListQuoteRequests(ctx, s.DB, projectID)
}

// joinLocation renders "City, Region" from whichever parts are present.
func joinLocation(city, region string) string {
	parts := make([]string, 0, 2)
	if c := strings.TrimSpace(city); c != "" {
		parts = append(parts, c)
	}
	if r := strings.TrimSpace(region); r != "" {
		parts = append(parts, r)
	}
	return strings.Join(parts, ", ")
}

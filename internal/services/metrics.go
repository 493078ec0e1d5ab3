// Package services – Prometheus instrumentation
//
// Domain counters for the quote pipeline. HTTP-level metrics live in the
// middleware package; the two collectors here track the pipeline's contact
// with the outside world: terminal vendor quote generation outcomes, and
// inserts absorbed by the impression ledger's unique constraint. The dedup
// counter moving means quote requests are re-running over already-billed
// (project, segment, vendor offering) triples.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// vendorQuoteCalls counts vendor quote generations by terminal outcome
	// (ok or error). Retries inside one vendor's attempt budget are not
	// counted separately; one increment per vendor per request.
	vendorQuoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_vendor_calls_total",
			Help: "Vendor quote generation calls by terminal outcome.",
		},
		[]string{"outcome"},
	)

	// impressionDedups counts ledger inserts that hit the unique
	// (project, segment, vendor offering) constraint and were served the
	// existing row instead.
	impressionDedups = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_impression_dedup_total",
			Help: "Impression inserts deduplicated by the ledger's unique constraint.",
		},
	)
)

func init() {
	prometheus.MustRegister(vendorQuoteCalls, impressionDedups)
}

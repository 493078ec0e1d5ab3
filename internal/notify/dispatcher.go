package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/services"
)

// Leads taken per pass when BatchSize is unset.
const defaultBatchSize = 50

// Dispatcher drains pending lead notifications on a fixed schedule. Each
// pass takes a batch of rows oldest first, sends one email per row, and
// records the outcome so a row is attempted exactly once. A nil Sender
// disables dispatch entirely and leaves rows pending.
type Dispatcher struct {
	Billing   *services.BillingService
	Catalog   *services.CatalogService
	Sender    Sender
	BatchSize int

	cron *cron.Cron
}

// Start schedules DispatchOnce every interval. Overlapping passes are
// skipped, not queued, so a slow provider cannot stack up goroutines.
func (d *Dispatcher) Start(every time.Duration) error {
	if d.Sender == nil {
		log.Info().Msg("lead notifications disabled: no email provider configured")
		return nil
	}
	lg := log.Logger
	d.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&lg))))
	_, err := d.cron.AddFunc(fmt.Sprintf("@every %s", every), func() {
		sent, failed, err := d.DispatchOnce(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("lead dispatch pass failed")
			return
		}
		if sent+failed > 0 {
			log.Info().Int("sent", sent).Int("failed", failed).Msg("lead dispatch pass finished")
		}
	})
	if err != nil {
		return err
	}
	d.cron.Start()
	log.Info().Dur("every", every).Msg("lead dispatcher started")
	return nil
}

// Stop halts the schedule and waits for an in-flight pass to finish.
func (d *Dispatcher) Stop() {
	if d.cron == nil {
		return
	}
	<-d.cron.Stop().Done()
}

// DispatchOnce runs a single drain pass and reports how many notifications
// were sent and how many failed. Send failures mark the row failed rather
// than leaving it pending: the provider may have delivered the email even
// when the call errored, so retrying risks double notifications.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (sent, failed int, err error) {
	if d.Sender == nil {
		return 0, 0, nil
	}
	batch := d.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	leads, err := d.Billing.PendingEmailLeads(ctx, batch)
	if err != nil {
		return 0, 0, err
	}
	for i := range leads {
		lead := &leads[i]
		if sendErr := d.Sender.SendLead(ctx, lead, d.segmentName(lead.SegmentID)); sendErr != nil {
			log.Warn().
				Err(sendErr).
				Str("impression_id", lead.ID).
				Str("vendor_email", lead.VendorEmail).
				Msg("lead notification failed")
			failed++
			d.mark(ctx, lead.ID, domain.EmailFailed)
			continue
		}
		sent++
		d.mark(ctx, lead.ID, domain.EmailSent)
	}
	return sent, failed, nil
}

func (d *Dispatcher) mark(ctx context.Context, id string, to domain.EmailStatus) {
	if err := d.Billing.MarkLeadEmail(ctx, id, to); err != nil {
		log.Error().
			Err(err).
			Str("impression_id", id).
			Str("to", string(to)).
			Msg("failed to record notification outcome")
	}
}

// segmentName resolves the catalog display name, falling back to the raw id
// for segments that have left the catalog since the impression was recorded.
func (d *Dispatcher) segmentName(id string) string {
	if d.Catalog != nil {
		if sg, err := d.Catalog.Segment(id); err == nil {
			return sg.Name
		}
	}
	return id
}

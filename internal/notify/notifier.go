// Package notify – vendor lead notifications.
//
// A quote impression starts life with a pending email status; this package
// owns the other half of that contract. It composes the "new lead" email for
// a ledger row, delivers it through Resend, and advances the row to sent or
// failed. Delivery is decoupled from quote generation: the Dispatcher drains
// pending rows on a fixed schedule, so a slow or unreachable email provider
// never holds up a generate call.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/sitewise/go-project-backend/internal/domain"
)

// Sender delivers one lead notification to the vendor on the ledger row.
type Sender interface {
	SendLead(ctx context.Context, lead *domain.QuoteImpression, segmentName string) error
}

// ResendSender sends lead notifications through the Resend API. From is the
// envelope sender and may carry a display name ("Acme Leads <leads@acme.io>").
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender builds a sender for the given API key.
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

// SendLead emails the vendor about one displayed quote. Replies go straight
// to the customer so the vendor can answer the lead without leaving their
// mail client.
func (s *ResendSender) SendLead(ctx context.Context, lead *domain.QuoteImpression, segmentName string) error {
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{lead.VendorEmail},
		ReplyTo: lead.CustomerEmail,
		Subject: leadSubject(segmentName, lead.ProjectLocation),
		Text:    leadText(lead, segmentName),
	})
	if err != nil {
		return err
	}
	log.Debug().
		Str("impression_id", lead.ID).
		Str("email_id", sent.Id).
		Str("vendor_email", lead.VendorEmail).
		Msg("lead notification sent")
	return nil
}

// leadSubject puts the segment and the project's city in the subject line.
// The city is the first component of the stored "city, region, country"
// location.
func leadSubject(segmentName, location string) string {
	city, _, _ := strings.Cut(location, ",")
	if city = strings.TrimSpace(city); city == "" {
		city = "your area"
	}
	return fmt.Sprintf("New Lead: %s in %s", segmentName, city)
}

// leadText renders the plain-text body from the ledger row's snapshot.
func leadText(lead *domain.QuoteImpression, segmentName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New lead for %s\n\n", lead.VendorCompanyName)
	b.WriteString("Your quote was just shown to a potential customer.\n\n")
	fmt.Fprintf(&b, "Service:  %s\n", segmentName)
	fmt.Fprintf(&b, "Project:  %s\n", lead.ProjectName)
	if lead.ProjectLocation != "" {
		fmt.Fprintf(&b, "Location: %s\n", lead.ProjectLocation)
	}
	if lead.ProjectSquareFeet > 0 {
		fmt.Fprintf(&b, "Size:     %.0f sqft\n", lead.ProjectSquareFeet)
	}
	fmt.Fprintf(&b, "\nYour quote: $%.2f/sqft, $%.2f total\n\n", lead.QuotedRate, lead.QuotedTotal)

	name := lead.CustomerName
	if name == "" {
		name = "Project Owner"
	}
	fmt.Fprintf(&b, "Customer: %s <%s>\n", name, lead.CustomerEmail)
	b.WriteString("Reply to this email to reach them directly.\n\n")
	fmt.Fprintf(&b, "You were charged $%.2f for this lead.\n", lead.AmountCharged)
	return b.String()
}

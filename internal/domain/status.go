// Package domain defines the core persistence models for the application.
// This file holds the closed status enumerations and their transition
// tables. Status values are persisted as strings but must only be produced
// through these types, so an illegal transition is a construction-time error
// rather than a silently accepted string.
package domain

// IndexingStatus is the lifecycle state of a project's content-indexing job.
type IndexingStatus string

// Indexing job states. A project starts in IndexingNotStarted; at most one
// job may be active (IndexingInProgress) per project at any time.
const (
	IndexingNotStarted IndexingStatus = "not_started"
	IndexingInProgress IndexingStatus = "indexing"
	IndexingCompleted  IndexingStatus = "completed"
	IndexingFailed     IndexingStatus = "failed"
	IndexingCancelled  IndexingStatus = "cancelled"
)

// Valid reports whether s is a member of the closed set.
func (s IndexingStatus) Valid() bool {
	switch s {
	case IndexingNotStarted, IndexingInProgress, IndexingCompleted, IndexingFailed, IndexingCancelled:
		return true
	}
	return false
}

// Terminal reports whether s describes a finished job. A terminal status
// does not forbid starting a new job; it only means the previous one is done.
func (s IndexingStatus) Terminal() bool {
	switch s {
	case IndexingCompleted, IndexingFailed, IndexingCancelled:
		return true
	}
	return false
}

// CanStart reports whether a new indexing job may begin from s. Every state
// except an in-flight job allows a (re)start; the in-flight case is the
// conflict the controller must surface.
func (s IndexingStatus) CanStart() bool { return s != IndexingInProgress }

// CanCancel reports whether a cancel request is meaningful from s. Only an
// in-flight job can be cancelled; anything else is an invalid-state error.
func (s IndexingStatus) CanCancel() bool { return s == IndexingInProgress }

// QuoteStatus is the lifecycle state of a quote request.
type QuoteStatus string

// Quote request states. The machine advances linearly and never regresses:
// matching_vendors → generating_quotes → completed/failed, with a direct
// matching_vendors → completed step when zero vendors match.
const (
	QuoteMatchingVendors  QuoteStatus = "matching_vendors"
	QuoteGeneratingQuotes QuoteStatus = "generating_quotes"
	QuoteCompleted        QuoteStatus = "completed"
	QuoteFailed           QuoteStatus = "failed"
)

var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteMatchingVendors:  {QuoteGeneratingQuotes, QuoteCompleted, QuoteFailed},
	QuoteGeneratingQuotes: {QuoteCompleted, QuoteFailed},
	QuoteCompleted:        nil,
	QuoteFailed:           nil,
}

// Valid reports whether s is a member of the closed set.
func (s QuoteStatus) Valid() bool {
	_, ok := quoteTransitions[s]
	return ok
}

// Terminal reports whether s is a terminal quote state.
func (s QuoteStatus) Terminal() bool { return s == QuoteCompleted || s == QuoteFailed }

// CanTransition reports whether s → to is a legal step of the machine.
func (s QuoteStatus) CanTransition(to QuoteStatus) bool {
	for _, next := range quoteTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// BillingStatus is the billing lifecycle of a quote impression, advanced by
// back-office processes independently of the quote request itself.
type BillingStatus string

// Billing states: pending → invoiced → paid, with waived reachable from any
// non-terminal state. Paid and waived are terminal.
const (
	BillingPending  BillingStatus = "pending"
	BillingInvoiced BillingStatus = "invoiced"
	BillingPaid     BillingStatus = "paid"
	BillingWaived   BillingStatus = "waived"
)

var billingTransitions = map[BillingStatus][]BillingStatus{
	BillingPending:  {BillingInvoiced, BillingWaived},
	BillingInvoiced: {BillingPaid, BillingWaived},
	BillingPaid:     nil,
	BillingWaived:   nil,
}

// Valid reports whether s is a member of the closed set.
func (s BillingStatus) Valid() bool {
	_, ok := billingTransitions[s]
	return ok
}

// CanTransition reports whether s → to is a legal billing step.
func (s BillingStatus) CanTransition(to BillingStatus) bool {
	for _, next := range billingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// EmailStatus tracks the lead-notification email for an impression,
// independent of billing: pending → sent or failed, both terminal.
type EmailStatus string

// Notification states.
const (
	EmailPending EmailStatus = "pending"
	EmailSent    EmailStatus = "sent"
	EmailFailed  EmailStatus = "failed"
)

// Valid reports whether s is a member of the closed set.
func (s EmailStatus) Valid() bool {
	return s == EmailPending || s == EmailSent || s == EmailFailed
}

// CanTransition reports whether s → to is a legal notification step.
func (s EmailStatus) CanTransition(to EmailStatus) bool {
	return s == EmailPending && (to == EmailSent || to == EmailFailed)
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ValidRole reports whether role is a member of the closed role set.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant || role == RoleSystem
}

// Permission is the access level a project share grants.
type Permission string

// Share permissions. Edit implies view.
const (
	PermissionView = "view"
	PermissionEdit = "edit"
)

// ValidPermission reports whether p is a recognized share permission.
func ValidPermission(p string) bool { return p == PermissionView || p == PermissionEdit }

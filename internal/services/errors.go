// Package services defines the business logic for projects, indexing, search,
// quotes, billing, chats, and vendor offerings. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

// Lookup failures. A resource the caller may not see reports the same way as
// one that does not exist, except where the taxonomy distinguishes Forbidden.
var (
	// ErrProjectNotFound indicates the project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrChatNotFound indicates the chat does not exist or is not accessible
	// to the current user.
	ErrChatNotFound = errors.New("chat not found")

	// ErrMessageNotFound indicates the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrShareNotFound indicates the share grant does not exist.
	ErrShareNotFound = errors.New("share not found")

	// ErrOfferingNotFound indicates the vendor offering does not exist or
	// belongs to another vendor.
	ErrOfferingNotFound = errors.New("vendor offering not found")

	// ErrQuoteNotFound indicates the quote request does not exist.
	ErrQuoteNotFound = errors.New("quote request not found")

	// ErrLeadNotFound indicates the impression does not exist or belongs to
	// another vendor.
	ErrLeadNotFound = errors.New("lead not found")
)

// Permission failures.
var (
	// ErrForbidden is returned when the principal is authenticated but lacks
	// permission on the resource.
	ErrForbidden = errors.New("insufficient permission")
)

// Input validation failures, mapped to bad-request responses.
var (
	// ErrInvalidSegment is returned when a segment id is not in the catalog.
	ErrInvalidSegment = errors.New("unknown segment")

	// ErrInvalidSize is returned when a project size is zero or negative.
	ErrInvalidSize = errors.New("square footage must be positive")

	// ErrEmptyContent is returned when a message or question body is empty.
	ErrEmptyContent = errors.New("content is empty")

	// ErrTooLong is returned when content exceeds the configured rune limit.
	ErrTooLong = errors.New("content too long")

	// ErrInvalidRole is returned when a message role is outside the allowed
	// set (user, assistant, system).
	ErrInvalidRole = errors.New("invalid message role")

	// ErrInvalidPermission is returned when a share permission is outside the
	// allowed set (view, edit).
	ErrInvalidPermission = errors.New("invalid share permission")

	// ErrInvalidProvider is returned when a mailbox provider is outside the
	// allowed set (gmail, outlook).
	ErrInvalidProvider = errors.New("invalid mailbox provider")

	// ErrInvalidOffering is returned when an offering is missing a company
	// name or served country, or carries a negative lead time.
	ErrInvalidOffering = errors.New("invalid offering")

	// ErrInvalidStatus is returned when a billing or email status value is
	// outside its closed enumeration.
	ErrInvalidStatus = errors.New("unknown status value")

	// ErrInvalidEmail is returned when a share or profile email is blank or
	// not an address.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrNoMailboxConnection is returned when indexing is started without a
	// connected mailbox to read from.
	ErrNoMailboxConnection = errors.New("no mailbox connection")

	// ErrProjectNotIndexed is returned when search is attempted on a project
	// that has never been indexed.
	ErrProjectNotIndexed = errors.New("project has not been indexed")
)

// Conflicts and state-machine violations.
var (
	// ErrIndexingInProgress is returned when an index start collides with an
	// already-running job. At most one job may be active per project.
	ErrIndexingInProgress = errors.New("indexing already in progress")

	// ErrNotIndexing is returned when cancel is requested while no job runs.
	ErrNotIndexing = errors.New("project is not indexing")

	// ErrDuplicateShare is returned when the project is already shared with
	// that email.
	ErrDuplicateShare = errors.New("share already exists")

	// ErrDuplicateOffering is returned when the vendor already has an
	// offering for that segment.
	ErrDuplicateOffering = errors.New("offering already exists for segment")

	// ErrInvalidTransition is returned when a billing-status change is not in
	// the transition table.
	ErrInvalidTransition = errors.New("status transition not allowed")
)

// External-collaborator failures.
var (
	// ErrServiceUnavailable is returned when the AI backend is unreachable or
	// answered with a server-side failure.
	ErrServiceUnavailable = errors.New("upstream service unavailable")
)

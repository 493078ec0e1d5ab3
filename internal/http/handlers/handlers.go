// Handler wiring.
//
// This file defines the Handlers aggregate that binds every HTTP endpoint to
// its application service, plus the small helpers shared across handler
// files (principal extraction and pagination clamping).
//
// Handlers are transport-thin: they validate and normalize input, call the
// service layer, and translate results into HTTP responses. Each handler
// file declares the service contract it consumes as an interface, so tests
// can swap in stubs without a database.
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sitewise/go-project-backend/internal/http/middleware"
)

// Deps bundles the application services consumed by the HTTP layer. Fields
// are interfaces declared in the handler files; the concrete services from
// internal/services satisfy them. Projects and Shares are typically the same
// *services.ProjectService instance.
type Deps struct {
	Projects ProjectService
	Shares   ShareService
	Indexing IndexingService
	Search   SearchService
	Catalog  CatalogService
	Vendors  VendorService
	Quotes   QuoteService
	Billing  BillingService
	Chats    ChatService
	Messages MessageService
	Users    UserService
}

// Handlers groups the HTTP endpoints for the public API. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	projects ProjectService
	shares   ShareService
	indexing IndexingService
	search   SearchService
	catalog  CatalogService
	vendors  VendorService
	quotes   QuoteService
	billing  BillingService
	chats    ChatService
	messages MessageService
	users    UserService
}

// New constructs a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	return &Handlers{
		projects: d.Projects,
		shares:   d.Shares,
		indexing: d.Indexing,
		search:   d.Search,
		catalog:  d.Catalog,
		vendors:  d.Vendors,
		quotes:   d.Quotes,
		billing:  d.Billing,
		chats:    d.Chats,
		messages: d.Messages,
		users:    d.Users,
	}
}

// principal returns the authenticated {user id, email} stored on the context
// by the auth middleware. Every route using it runs behind RequireAuth, so a
// request that reaches a handler carries both values.
func principal(c *gin.Context) (userID, email string) {
	return c.GetString(middleware.CtxUserID), c.GetString(middleware.CtxUserEmail)
}

//
// Pagination
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = atoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = atoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// atoiDefault parses s as an int, falling back to def when s is empty or
// malformed.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// pageMeta assembles the pagination envelope for one page out of total rows.
func pageMeta(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

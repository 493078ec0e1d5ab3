// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, JWT auth,
// CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sitewise/go-project-backend/internal/aiclient"
	"github.com/sitewise/go-project-backend/internal/config"
	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/http/handlers"
	"github.com/sitewise/go-project-backend/internal/http/middleware"
	"github.com/sitewise/go-project-backend/internal/repo"
	"github.com/sitewise/go-project-backend/internal/services"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// chatRepoShim adapts the repository free functions to the services.ChatRepo
// interface expected by the ChatService. This keeps services decoupled from
// the concrete repo package while reusing existing functions.
type chatRepoShim struct{}

// CreateChat proxies repo.CreateChat.
func (chatRepoShim) CreateChat(ctx context.Context, db *gorm.DB, userID string, projectID *string, title string) (*domain.Chat, error) {
	return repo.CreateChat(ctx, db, userID, projectID, title)
}

// ListChats proxies repo.ListChats.
func (chatRepoShim) ListChats(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error) {
	return repo.ListChats(ctx, db, userID)
}

// ListChatsByProject proxies repo.ListChatsByProject.
func (chatRepoShim) ListChatsByProject(ctx context.Context, db *gorm.DB, userID, projectID string) ([]domain.Chat, error) {
	return repo.ListChatsByProject(ctx, db, userID, projectID)
}

// GetChat proxies repo.GetChat.
func (chatRepoShim) GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	return repo.GetChat(ctx, db, id)
}

// UpdateChatTitle proxies repo.UpdateChatTitle.
func (chatRepoShim) UpdateChatTitle(ctx context.Context, db *gorm.DB, id, title string) error {
	return repo.UpdateChatTitle(ctx, db, id, title)
}

// UpdateChatSummary proxies repo.UpdateChatSummary.
func (chatRepoShim) UpdateChatSummary(ctx context.Context, db *gorm.DB, id, summary string, at time.Time, countAtSummary int) error {
	return repo.UpdateChatSummary(ctx, db, id, summary, at, countAtSummary)
}

// DeleteChat proxies repo.DeleteChat.
func (chatRepoShim) DeleteChat(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteChat(ctx, db, id)
}

// CountChats proxies repo.CountChats (pagination support).
func (chatRepoShim) CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountChats(ctx, db, userID)
}

// ListChatsPage proxies repo.ListChatsPage (pagination support).
func (chatRepoShim) ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	return repo.ListChatsPage(ctx, db, userID, offset, limit)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, health and metrics endpoints, the public
// segment catalog, and then mounts the authenticated API under /api/v*.
//
// The ai client may be nil; summarization and remote namespace cleanup are
// then disabled and the indexing, search, and quote endpoints must not be
// exercised.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured request logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per user/IP)
//  8. CORS and Security headers
//  9. JWT auth, then gzip, on the authenticated group only (gzip would
//     buffer the SSE search stream, so that route is excluded)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, catalog *services.CatalogService, ai *aiclient.Client, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured request logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (off unless explicitly enabled; docs are generated by swag init)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db, catalog, AI backend. A nil *Client
	// must not reach the interface fields, where it would compare non-nil.
	var (
		deleter    services.NamespaceDeleter
		runner     services.IndexRunner
		searcher   services.Searcher
		pricer     services.QuotePricer
		summarizer services.Summarizer
	)
	if ai != nil {
		deleter, runner, searcher, pricer, summarizer = ai, ai, ai, ai, ai
	}

	projectSvc := &services.ProjectService{DB: db, AI: deleter}
	indexingSvc := &services.IndexingService{DB: db, AI: runner}
	searchSvc := &services.SearchService{
		DB:          db,
		AI:          searcher,
		TopKMax:     cfg.AI.SearchTopKMax,
		TopKDefault: cfg.AI.SearchTopKDefault,
	}
	vendorSvc := &services.VendorService{DB: db, Catalog: catalog}
	billingSvc := &services.BillingService{DB: db, LeadPrice: cfg.Quotes.LeadPrice}
	quoteSvc := &services.QuoteService{
		DB:      db,
		AI:      pricer,
		Vendors: vendorSvc,
		Billing: billingSvc,
		Catalog: catalog,
		Retries: cfg.Quotes.VendorRetries,
	}

	chatSvc := services.NewChatService(db, chatRepoShim{}, summarizer)
	chatSvc.TitleMaxLen = cfg.Chat.TitleMaxLen
	chatSvc.RecentWindow = cfg.Chat.RecentLimit
	chatSvc.SummaryEvery = cfg.Chat.SummaryInterval

	msgSvc := &services.MessageService{
		DB:              db,
		Chats:           chatSvc,
		MaxContentRunes: 2000,
		TitleMaxLen:     cfg.Chat.TitleMaxLen,
		TitleLocale:     language.English,
	}

	h := handlers.New(handlers.Deps{
		Projects: projectSvc,
		Shares:   projectSvc,
		Indexing: indexingSvc,
		Search:   searchSvc,
		Catalog:  catalog,
		Vendors:  vendorSvc,
		Quotes:   quoteSvc,
		Billing:  billingSvc,
		Chats:    chatSvc,
		Messages: msgSvc,
		Users:    &services.UserService{DB: db},
	})

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)

	// Segment catalog (public: vendors browse segments before signing up)
	api.GET("/segments", h.ListSegments)
	api.GET("/segments/:id", h.GetSegment)
	api.GET("/segments/:id/benchmark", h.SegmentBenchmark)

	// Everything else requires a bearer token.
	authed := api.Group("", middleware.RequireAuth([]byte(cfg.Auth.JWTSecret), cfg.Auth.Audience))
	authed.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`/search/stream$`})))
	{
		// Projects
		authed.POST("/projects", h.CreateProject)
		authed.GET("/projects", h.ListProjects)
		authed.GET("/projects/:id", h.GetProject)
		authed.PUT("/projects/:id", h.UpdateProject)
		authed.DELETE("/projects/:id", h.DeleteProject)

		// Indexing
		authed.POST("/projects/:id/index", h.StartIndexing)
		authed.GET("/projects/:id/index/status", h.IndexingStatus)
		authed.POST("/projects/:id/index/cancel", h.CancelIndexing)

		// Search
		authed.POST("/projects/:id/search", h.SearchProject)
		authed.POST("/projects/:id/search/stream", h.SearchProjectStream)

		// Shares
		authed.POST("/projects/:id/shares", h.CreateShare)
		authed.GET("/projects/:id/shares", h.ListShares)
		authed.DELETE("/projects/:id/shares/:shareID", h.DeleteShare)

		// Quotes and the billing ledger behind them
		authed.POST("/projects/:id/quotes", h.GenerateQuote)
		authed.GET("/projects/:id/quotes", h.ListQuotes)
		authed.GET("/quotes/:id", h.GetQuote)
		authed.GET("/projects/:id/impressions", h.ListImpressions)

		// Vendor offerings
		authed.POST("/vendor-services", h.CreateOffering)
		authed.GET("/vendor-services", h.ListOfferings)
		authed.PUT("/vendor-services/:id", h.UpdateOffering)
		authed.DELETE("/vendor-services/:id", h.DeleteOffering)

		// Vendor billing
		authed.GET("/billing/leads", h.ListLeads)
		authed.GET("/billing/summary", h.BillingSummary)
		authed.PATCH("/billing/leads/:id/status", h.UpdateLeadStatus)

		// Chats
		authed.POST("/chats", h.CreateChat)
		authed.GET("/chats", h.ListChats)
		authed.GET("/chats/:id", h.GetChat)
		authed.PUT("/chats/:id/title", h.UpdateChatTitle)
		authed.DELETE("/chats/:id", h.DeleteChat)
		authed.GET("/chats/:id/context", h.ChatContext)
		authed.POST("/chats/:id/summary", h.SummarizeChat)

		// Messages
		authed.GET("/chats/:id/messages", h.ListMessages)
		authed.POST("/chats/:id/messages", h.PostMessage)

		// Profile and mailbox connections
		authed.GET("/user/info", h.GetUserInfo)
		authed.PUT("/user/info", h.UpdateUserInfo)
		authed.POST("/user/connections/:provider", h.ConnectMailbox)
		authed.DELETE("/user/connections/:provider", h.DisconnectMailbox)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

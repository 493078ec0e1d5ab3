// Package main boots the project backend: configuration, logging, tracing,
// storage, the AI backend client, the lead dispatcher, and the HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/sitewise/go-project-backend/internal/aiclient"
	"github.com/sitewise/go-project-backend/internal/config"
	httpapi "github.com/sitewise/go-project-backend/internal/http"
	"github.com/sitewise/go-project-backend/internal/notify"
	"github.com/sitewise/go-project-backend/internal/observability"
	"github.com/sitewise/go-project-backend/internal/repo"
	"github.com/sitewise/go-project-backend/internal/services"
	"github.com/sitewise/go-project-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// @title           Sitewise Project Backend API
// @version         1.0
// @description     Project, mailbox indexing, retrieval search, vendor quote, and billing API for the Sitewise construction platform.
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Type "Bearer" followed by a space and the JWT.
func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate schema")
	}
	if err := repo.SeedSegments(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("seed segment catalog")
	}

	catalog, err := services.NewCatalogService(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("load segment catalog")
	}

	ai := aiclient.New(cfg.AI.BaseURL, cfg.AI.APIKey,
		cfg.AI.Timeout, cfg.AI.IndexStartTimeout, cfg.AI.QuoteTimeout)

	// Lead notifications; without a Resend key the dispatcher stays off and
	// leads accumulate as pending.
	var sender notify.Sender
	if cfg.Leads.ResendAPIKey != "" {
		sender = notify.NewResendSender(cfg.Leads.ResendAPIKey, cfg.Leads.FromEmail)
	}
	dispatcher := &notify.Dispatcher{
		Billing: &services.BillingService{DB: db, LeadPrice: cfg.Quotes.LeadPrice},
		Catalog: catalog,
		Sender:  sender,
	}
	if err := dispatcher.Start(cfg.Leads.DispatchEvery); err != nil {
		log.Fatal().Err(err).Msg("start lead dispatcher")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, catalog, ai, cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// In-flight indexing runs are not waited on here; a run orphaned by the
	// process dying is surfaced by the status reconciliation on next read.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	dispatcher.Stop()
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("stopped")
}

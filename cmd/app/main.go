// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"membership-billing/internal/config"
	"membership-billing/internal/domain/ports/adapter"
	"membership-billing/internal/domain/ports/repository"
	payAdapters "membership-billing/internal/infra/adapters/payment"
	"membership-billing/internal/infra/api"
	pg "membership-billing/internal/infra/db/postgres"
	"membership-billing/internal/infra/i18n"
	"membership-billing/internal/infra/logging"
	"membership-billing/internal/infra/metrics"
	red "membership-billing/internal/infra/redis"
	"membership-billing/internal/infra/scheduler"
	"membership-billing/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no sampling)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Postgres ----
	pool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Repositories ----
	var packages repository.PackageRepository = pg.NewPostgresPackageRepo(pool)
	records := pg.NewPostgresPaymentRecordRepo(pool)
	entitlements := pg.NewPostgresEntitlementRepo(pool)

	// ---- Redis (optional) ----
	var locker usecase.Locker
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		packages = pg.NewPackageRepoCacheDecorator(packages, redisClient, cfg.Redis.TTL, logger)
		locker = red.NewLocker(redisClient)
	} else {
		logger.Info().Msg("redis not configured; catalog cache and complaint lock disabled")
	}

	// ---- Change feed ----
	feed := pg.NewChangeFeedFromPool(pool, logger)

	// ---- Translator ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Locale)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}

	// ---- Payment provider ----
	var provider adapter.CheckoutProvider = payAdapters.NewUnconfiguredGateway()
	if cfg.Provider.Configured() {
		gw, err := payAdapters.NewCheckoutGateway(cfg.Provider, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("checkout gateway")
		}
		provider = gw
	} else {
		logger.Warn().Msg("provider.client_id or provider.api_base_url missing; checkout disabled")
	}

	// ---- Use cases ----
	membershipUC := usecase.NewMembershipUseCase(packages, records, entitlements, logger)
	complaintUC := usecase.NewComplaintUseCase(records, locker, logger)
	checkoutUC := usecase.NewCheckoutUseCase(provider, feed, tr, usecase.CheckoutOptions{
		Configured:    cfg.Provider.Configured(),
		RedirectDelay: cfg.Checkout.RedirectDelay,
	}, logger)

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	desk := api.NewCheckoutDesk(checkoutUC, auth.Tokens, cfg.Checkout.SessionTTL, logger)
	srv, err := api.NewServer(api.Deps{
		Membership:         membershipUC,
		Complaints:         complaintUC,
		Desk:               desk,
		Feed:               feed,
		Auth:               auth,
		Translator:         tr,
		CheckoutConfigured: cfg.Provider.Configured(),
		SyncInterval:       cfg.Sync.Interval,
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		Logger:             logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api")
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		// no WriteTimeout: websocket streams manage their own deadlines
	}

	// ---- Checkout reaper ----
	reaper := scheduler.NewScheduler("checkout-reaper", cfg.Checkout.SweepInterval, scheduler.SweepFunc(desk.Sweep), logger)
	reaper.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feed.Run(gctx) })
	g.Go(func() error {
		pg.ReportPoolStats(gctx, pool, 15*time.Second)
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// ---- Graceful shutdown ----
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		reaper.Stop()
		err := server.Shutdown(sctx)
		desk.Close(sctx)
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("stopped with error")
	}
	logger.Info().Msg("bye")
}

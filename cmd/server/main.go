package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/safety-dispatch/internal/api"
	"github.com/notifyhub/safety-dispatch/internal/api/handler"
	"github.com/notifyhub/safety-dispatch/internal/cache"
	"github.com/notifyhub/safety-dispatch/internal/config"
	"github.com/notifyhub/safety-dispatch/internal/db"
	"github.com/notifyhub/safety-dispatch/internal/dispatcher"
	"github.com/notifyhub/safety-dispatch/internal/emailaddr"
	"github.com/notifyhub/safety-dispatch/internal/maplink"
	"github.com/notifyhub/safety-dispatch/internal/metrics"
	"github.com/notifyhub/safety-dispatch/internal/ratelimiter"
	"github.com/notifyhub/safety-dispatch/internal/relay"
	"github.com/notifyhub/safety-dispatch/internal/repository"
	"github.com/notifyhub/safety-dispatch/internal/safety"
	"github.com/notifyhub/safety-dispatch/internal/service"
	"github.com/notifyhub/safety-dispatch/internal/tracking"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	ctx := context.Background()

	// ---- storage ----
	var (
		contacts   repository.ContactRepository  = repository.NewMockContactRepository()
		dispatches repository.DispatchRepository = repository.NewMockDispatchRepository()
		checks                                   = map[string]handler.HealthCheck{}
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := db.Migrate(cfg.DatabaseURL, "migrations"); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("database migrations applied")
		checks["postgres"] = pool.Ping
		contacts = repository.NewPgContactRepository(pool)
		dispatches = repository.NewPgDispatchRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, contacts and dispatches are kept in memory")
	}

	var idem cache.IdempotencyStore = cache.NewMemoryIdempotencyStore()
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		idem = cache.NewRedisIdempotencyStore(rdb, "safety-dispatch")
	}

	// ---- delivery ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	emailaddr.SetOverrides(cfg.EmailOverrides)
	corrector := emailaddr.Default()

	// Without a relay every email recipient is recorded as a transport failure.
	var mail relay.MailRelay
	if cfg.RelayConfigured() {
		mail = relay.NewEmailJSRelay(cfg.EmailJSURL, cfg.EmailJSPrivateKey, cfg.RelayTimeout)
	} else {
		logger.Warn("EmailJS identifiers not set, email dispatch is disabled")
	}

	disp := dispatcher.New(
		mail,
		relay.NewStubSMSTransport(logger),
		ratelimiter.New(cfg.RateLimit),
		dispatcher.Config{
			ServiceID:   cfg.EmailJSServiceID,
			TemplateID:  cfg.EmailJSTemplateID,
			PublicKey:   cfg.EmailJSPublicKey,
			MaxRetries:  cfg.MaxRetries,
			RetryDelay:  cfg.RetryDelay,
			PhoneRegion: cfg.PhoneRegion,
		},
		logger,
		dispatcher.WithHooks(m.DispatcherHooks()),
		dispatcher.WithCorrector(corrector),
	)

	maps := maplink.NewBuilder(cfg.HereAPIKey)
	orch := service.NewOrchestrator(
		disp, contacts, dispatches, idem, cfg.IdempotencyTTL,
		maps, m.ObserveDispatch, logger,
	)

	// Context for tracking sessions; cancelled on shutdown signal.
	trackingCtx, cancelTracking := context.WithCancel(ctx)
	defer cancelTracking()
	mgr := tracking.NewManager(trackingCtx, orch, cfg.TrackingMinInterval,
		func(n int) { m.TrackingSessions.Set(float64(n)) }, logger)

	// ---- HTTP server ----
	router := api.NewRouter(api.Deps{
		Orchestrator:    orch,
		Contacts:        contacts,
		Tracking:        mgr,
		Corrector:       corrector,
		Maps:            maps,
		Scorer:          safety.MockRouteScorer{},
		Weather:         safety.MockWeatherProvider{},
		HelpCenters:     safety.MockHelpCenterFinder{},
		RelayConfigured: cfg.RelayConfigured(),
		HealthChecks:    checks,
		Gatherer:        reg,
	}, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests; in-flight dispatches finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop tracking sessions and wait for their goroutines.
	cancelTracking()
	mgr.Wait()

	logger.Info("server stopped cleanly")
}

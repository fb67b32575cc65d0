package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/config"
	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/boddenberg/finplan-bfa-go/internal/handler"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/cache"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/notify"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/sqlstore"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/finplan-bfa-go/internal/port"
	"github.com/boddenberg/finplan-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_driver", cfg.StoreDriver),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("reject_overpayment", cfg.RejectOverpayment),
		zap.String("reminder_schedule", cfg.ReminderSchedule),
	)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.JWTSecret == config.DevJWTSecret {
		logger.Warn("using the development JWT secret; set JWT_SECRET before exposing this server")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "finplan-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	analyticsCache := cache.New[*domain.DebtAnalytics](cfg.CacheTTL)
	defer analyticsCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Persistence ---
	ctx := context.Background()
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var supabaseClient *supabase.Client
	if cfg.SupabaseURL != "" {
		supabaseClient = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
	}

	var store port.Store
	switch cfg.StoreDriver {
	case config.DriverSupabase:
		if supabaseClient == nil {
			logger.Fatal("STORE_DRIVER=supabase requires SUPABASE_URL")
		}
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		store = supabaseClient
	case config.DriverPostgres, config.DriverSQLite:
		sqlStore, err := sqlstore.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("failed to open database", zap.String("driver", cfg.StoreDriver), zap.Error(err))
		}
		defer sqlStore.Close()
		logger.Info("using SQL data backend", zap.String("driver", cfg.StoreDriver))
		store = sqlStore
	default:
		logger.Fatal("unknown STORE_DRIVER", zap.String("driver", cfg.StoreDriver))
	}

	var blobs port.BlobStore
	if supabaseClient != nil {
		blobs = supabase.NewStorage(supabaseClient, cfg.ReceiptsBucket)
		logger.Info("receipt storage enabled", zap.String("bucket", cfg.ReceiptsBucket))
	} else {
		logger.Warn("receipt storage: Supabase not configured, receipt uploads unavailable")
	}

	var notifier port.Notifier
	if cfg.SMTPHost != "" {
		notifier = notify.NewEmailNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, logger)
		logger.Info("email reminders enabled", zap.String("smtp_host", cfg.SMTPHost))
	} else {
		notifier = notify.NewLogNotifier(logger)
		logger.Warn("email reminders: SMTP not configured, reminders are only logged")
	}

	// --- Services ---
	debtSvc := service.NewDebtService(store, store, blobs, analyticsCache, service.DebtServiceConfig{
		Retry:             resilienceCfg,
		RejectOverpayment: cfg.RejectOverpayment,
	}, metrics, logger)

	plannerSvc, err := service.NewPlannerService(domain.DefaultTaxRules(), debtSvc, metrics, logger)
	if err != nil {
		logger.Fatal("failed to create planner", zap.Error(err))
	}

	receiptSvc := service.NewReceiptService(store, store, blobs, cfg.MaxConcurrency, metrics, logger)

	reminderSvc := service.NewReminderService(store, store, notifier, service.ReminderServiceConfig{
		HorizonDays:     cfg.ReminderHorizon,
		AutoMarkOverdue: cfg.AutoMarkOverdue,
		OnChange:        debtSvc.Invalidate,
	}, metrics, logger)

	if cfg.ReminderSchedule != "" {
		scheduler, err := reminderSvc.Schedule(cfg.ReminderSchedule)
		if err != nil {
			logger.Fatal("invalid REMINDER_SCHEDULE", zap.Error(err))
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Planner:   plannerSvc,
		Debts:     debtSvc,
		Receipts:  receiptSvc,
		Reminders: reminderSvc,
		Verifier:  service.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Checks:    []handler.HealthCheck{{Name: cfg.StoreDriver, Ping: store.Ping}},
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

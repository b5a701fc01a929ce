package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appinvoicing "github.com/erp/billsync/internal/application/invoicing"
	"github.com/erp/billsync/internal/infrastructure/accounting"
	"github.com/erp/billsync/internal/infrastructure/clock"
	"github.com/erp/billsync/internal/infrastructure/config"
	"github.com/erp/billsync/internal/infrastructure/logger"
	"github.com/erp/billsync/internal/infrastructure/notification"
	"github.com/erp/billsync/internal/infrastructure/persistence"
	"github.com/erp/billsync/internal/infrastructure/runguard"
	"github.com/erp/billsync/internal/infrastructure/scheduler"
	"github.com/erp/billsync/internal/infrastructure/telemetry"
	"github.com/erp/billsync/internal/interfaces/http/handler"
	"github.com/erp/billsync/internal/interfaces/http/middleware"
	"github.com/erp/billsync/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting billsync",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("accounting_enabled", cfg.Accounting.Enabled),
		zap.Bool("scheduler_enabled", cfg.Scheduler.Enabled),
	)

	ctx := context.Background()
	sysClock := clock.NewSystem()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
		Level:             exportLevel(cfg.Log.Level),
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	// From here on job and request logs are also exported with their trace ids
	log = logsProvider.Bridge(log)

	billingMetrics, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter:  meterProvider.Meter("billsync/invoicing"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to initialize billing metrics", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog,
		persistence.WithQueryTracing(telemetry.NewDBTracingPlugin(dbTracing, log)),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Redis backs the notification queue and the run guard
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		_ = redisClient.Close()
	}()

	guard, err := runguard.NewFactory(redisClient,
		runguard.WithLogger(log),
		runguard.WithClock(sysClock),
		runguard.WithInMemoryFallback(cfg.App.Env != "production"),
	).Create(ctx)
	if err != nil {
		log.Fatal("Failed to initialize run guard", zap.Error(err))
	}
	defer func() {
		_ = guard.Close()
	}()

	location, err := cfg.Invoicing.Location()
	if err != nil {
		log.Fatal("Invalid invoicing timezone", zap.Error(err))
	}
	locale, err := language.Parse(cfg.Invoicing.Locale)
	if err != nil {
		log.Warn("Unknown invoicing locale, using German", zap.String("locale", cfg.Invoicing.Locale), zap.Error(err))
		locale = language.German
	}

	deps := appinvoicing.Deps{
		Schedules:     persistence.NewGormScheduleRepository(db.DB),
		Invoices:      persistence.NewGormInvoiceRepository(db.DB),
		Quotations:    persistence.NewGormQuotationRepository(db.DB),
		Mappings:      persistence.NewGormContactMappingRepository(db.DB),
		Directory:     persistence.NewGormProjectDirectory(db.DB),
		SyncLog:       persistence.NewGormSyncLogRepository(db.DB),
		History:       persistence.NewGormGenerationHistoryRepository(db.DB),
		Sequence:      persistence.NewGormDocumentSequence(db.DB),
		Notifications: notification.NewRedisQueue(redisClient, cfg.Redis.NotificationQueue),
		Clock:         sysClock,
		Metrics:       billingMetrics,
		Logger:        log,
	}
	if cfg.Accounting.Enabled {
		client, err := accounting.NewClient(accounting.Config{
			BaseURL:         cfg.Accounting.BaseURL,
			APIKey:          cfg.Accounting.APIKey,
			TimeoutSeconds:  int(cfg.Accounting.Timeout / time.Second),
			RequestInterval: cfg.Accounting.MinRequestInterval,
		}, accounting.WithClock(sysClock), accounting.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize accounting client", zap.Error(err))
		}
		deps.Client = client
	}

	settings := appinvoicing.Settings{
		PlatformEnabled: cfg.Accounting.Enabled,
		InvoicePrefix:   cfg.Invoicing.InvoicePrefix,
		QuotationPrefix: cfg.Invoicing.QuotationPrefix,
		Location:        location,
		Locale:          locale,
	}

	generator := appinvoicing.NewRecurringInvoiceGenerator(deps, settings)
	reconciler := appinvoicing.NewStatusReconciler(deps, settings)
	publisher := appinvoicing.NewVoucherPublisher(deps, settings)
	contacts := appinvoicing.NewContactSyncService(deps, settings)
	accountingService := appinvoicing.NewAccountingService(deps, settings)

	runner := scheduler.NewRunner(cfg.Scheduler.JobTimeout, sysClock, log)

	var trigger *scheduler.JobTrigger
	if cfg.Scheduler.Enabled {
		trigger, err = scheduler.NewJobTrigger(scheduler.TriggerConfig{
			GenerateHour:      cfg.Scheduler.GenerateHour,
			GenerateMinute:    cfg.Scheduler.GenerateMinute,
			ReconcileInterval: cfg.Scheduler.ReconcileInterval,
			CheckInterval:     cfg.Scheduler.CheckInterval,
			Location:          location,
		}, runner, guard, sysClock, scheduler.Jobs{
			Generate: func(ctx context.Context) error {
				_, err := generator.Run(ctx)
				return err
			},
			Reconcile: func(ctx context.Context) error {
				_, err := reconciler.Run(ctx)
				return err
			},
		}, log)
		if err != nil {
			log.Fatal("Failed to create job trigger", zap.Error(err))
		}
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start job trigger", zap.Error(err))
		}
	}

	// Handlers
	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.App.Version, db)
	handlers := router.Handlers{
		Jobs:       handler.NewJobHandler(generator, reconciler, runner),
		Schedules:  handler.NewScheduleHandler(generator),
		Accounting: handler.NewAccountingHandler(accountingService, publisher, contacts),
		System:     systemHandler,
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing - Server span plus request attributes
	// 5. Metrics - Request counters and latency
	// 6. Security - Add security headers
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
		SkipPaths:   []string{"/health"},
	}))
	engine.Use(middleware.SpanEnricher())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		Enabled:       cfg.Telemetry.Enabled,
		Logger:        log,
	}))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.HTTP.RateLimitPerMinute > 0 {
		engine.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.HTTP.RateLimitPerMinute, cfg.HTTP.RateLimitBurst)))
	}

	engine.GET("/health", systemHandler.Health)

	handlers.RegisterAll(router.NewRouter(engine,
		router.WithMiddleware(middleware.SharedSecret(cfg.Invoicing.TriggerSecret)),
	)).Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Warn("Job trigger did not stop cleanly", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := logsProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Logger provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// exportLevel maps the configured log level to the lowest exported level
func exportLevel(level string) zapcore.Level {
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

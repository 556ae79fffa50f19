package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appaudit "github.com/gym/backend/internal/application/audit"
	apppayment "github.com/gym/backend/internal/application/payment"
	"github.com/gym/backend/internal/infrastructure/auth"
	"github.com/gym/backend/internal/infrastructure/cache"
	"github.com/gym/backend/internal/infrastructure/config"
	"github.com/gym/backend/internal/infrastructure/invoice"
	"github.com/gym/backend/internal/infrastructure/logger"
	"github.com/gym/backend/internal/infrastructure/notification"
	"github.com/gym/backend/internal/infrastructure/persistence"
	"github.com/gym/backend/internal/infrastructure/scheduler"
	"github.com/gym/backend/internal/infrastructure/storage"
	"github.com/gym/backend/internal/infrastructure/telemetry"
	"github.com/gym/backend/internal/interfaces/http/handler"
	"github.com/gym/backend/internal/interfaces/http/middleware"
	"github.com/gym/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/gym/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			Gym Billing API
//	@version		1.0
//	@description	Member payments, recurring billing, installment plans and payment audit.

//	@contact.name	Billing Team

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log := logger.New(logCfg)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting gym billing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// OTLP log export tees the primary core, so the logger is rebuilt once the provider exists
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	if logProvider.IsEnabled() {
		log = logger.New(logCfg, logProvider.ZapCore(logger.ParseLevel(cfg.Telemetry.LogsLevel)))
	}

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Telemetry.SpanProfilesEnabled && profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithSQL(cfg.Telemetry.DBLogFullSQL),
	)
	dbOpts := []persistence.Option{persistence.WithLogger(gormLog)}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbOpts = append(dbOpts, persistence.WithTracing(cfg.Telemetry.DBLogFullSQL))
	}
	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Repositories
	memberRepo := persistence.NewGormMemberRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	recurringRepo := persistence.NewGormRecurringPaymentRepository(db.DB)
	installmentRepo := persistence.NewGormInstallmentPlanRepository(db.DB)
	auditRepo := persistence.NewGormAuditRepository(db.DB)
	complianceRepo := persistence.NewGormComplianceRepository(db.DB)

	healthChecks := map[string]handler.Pinger{"database": db}

	lockFactory := cache.NewScheduleLockFactory(cfg.Redis, cache.WithLogger(log))
	batchConfig := apppayment.BatchConfig{
		BatchTimeout:  cfg.Billing.BatchTimeout,
		RecordTimeout: cfg.Billing.RecordTimeout,
		LockTTL:       cfg.Billing.LockTTL,
	}
	if cfg.Billing.LockEnabled {
		lock, err := lockFactory.Create()
		if err != nil {
			log.Fatal("Failed to create billing lock", zap.Error(err))
		}
		defer func() {
			if err := lock.Close(); err != nil {
				log.Error("Error closing billing lock", zap.Error(err))
			}
		}()
		batchConfig.Lock = lock
		if pinger, ok := lock.(handler.Pinger); ok {
			healthChecks["redis"] = pinger
		}
	}

	var archive appaudit.ArchiveStore
	if cfg.Storage.Enabled {
		s3Archive, err := storage.NewS3AuditArchive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize audit archive", zap.Error(err))
		}
		if err := s3Archive.EnsureBucket(ctx); err != nil {
			log.Warn("Audit archive bucket is not ready", zap.String("bucket", s3Archive.Bucket()), zap.Error(err))
		}
		archive = s3Archive
	}

	var renderer apppayment.InvoiceRenderer
	if cfg.Invoice.PDFEnabled {
		chromeRenderer := invoice.NewChromedpRenderer(invoice.Config{
			RemoteURL:   cfg.Invoice.ChromeURL,
			Timeout:     cfg.Invoice.Timeout,
			NoSandbox:   true,
			CompanyName: cfg.Invoice.CompanyName,
			Logger:      log,
		})
		defer func() {
			_ = chromeRenderer.Close()
		}()
		renderer = chromeRenderer
	}

	notifyConfig := notification.DefaultConfig()
	notifyConfig.Rate = cfg.Billing.NotifyRate
	notifyConfig.Burst = cfg.Billing.NotifyBurst
	notifyConfig.Timeout = cfg.Billing.NotifyTimeout
	notifier := notification.NewLogNotifier(notifyConfig, log)

	billingMetrics, err := telemetry.NewBillingMetrics(meterProvider.Meter(telemetry.MeterName))
	if err != nil {
		log.Fatal("Failed to register billing metrics", zap.Error(err))
	}

	// Application services
	auditService := appaudit.NewService(appaudit.ServiceConfig{
		Entries:       auditRepo,
		Compliance:    complianceRepo,
		Archive:       archive,
		ArchivePrefix: cfg.Audit.ArchivePrefix,
		WriteTimeout:  cfg.Audit.WriteTimeout,
		Logger:        log.Named("audit"),
	})
	failureHandler := apppayment.NewFailureHandler(apppayment.FailureHandlerConfig{
		Schedules:     recurringRepo,
		Plans:         installmentRepo,
		Notifier:      notifier,
		Audit:         auditService,
		NotifyTimeout: cfg.Billing.NotifyTimeout,
		Logger:        log.Named("payment-failures"),
	})
	paymentService := apppayment.NewPaymentService(apppayment.PaymentServiceConfig{
		Payments:      paymentRepo,
		Members:       memberRepo,
		Audit:         auditService,
		Notifier:      notifier,
		Invoices:      renderer,
		NotifyTimeout: cfg.Billing.NotifyTimeout,
		Logger:        log.Named("payments"),
	})
	recurringScheduler := apppayment.NewRecurringScheduler(apppayment.RecurringSchedulerConfig{
		Schedules: recurringRepo,
		Payments:  paymentRepo,
		Members:   memberRepo,
		Failures:  failureHandler,
		Audit:     auditService,
		Batch:     batchConfig,
		Metrics:   billingMetrics,
		Logger:    log.Named("recurring"),
	})
	installmentTracker := apppayment.NewInstallmentTracker(apppayment.InstallmentTrackerConfig{
		Plans:    installmentRepo,
		Payments: paymentRepo,
		Members:  memberRepo,
		Failures: failureHandler,
		Audit:    auditService,
		Batch:    batchConfig,
		Metrics:  billingMetrics,
		Logger:   log.Named("installments"),
	})

	var (
		billingScheduler *scheduler.BillingScheduler
		schedStatus      handler.SchedulerStatus
		billingHandler   *handler.BillingHandler
	)
	if cfg.Billing.SchedulerEnabled {
		billingScheduler, err = scheduler.NewBillingScheduler(scheduler.BillingSchedulerConfig{
			CronSpec: cfg.Billing.CronSpec,
			Location: time.UTC,
		}, recurringScheduler, installmentTracker, log)
		if err != nil {
			log.Fatal("Failed to create billing scheduler", zap.Error(err))
		}
		if err := billingScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start billing scheduler", zap.Error(err))
		}
		schedStatus = billingScheduler
		billingHandler = handler.NewBillingHandler(billingScheduler)
	} else {
		log.Info("Billing scheduler disabled, batches run only on demand")
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	httpMetrics, err := middleware.HTTPMetrics(meterProvider.Meter(telemetry.MeterName))
	if err != nil {
		log.Fatal("Failed to register HTTP metrics", zap.Error(err))
	}

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
		SkipPaths:   []string{"/health"},
	}))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(limiter))
		go sweepRateLimiter(ctx, limiter, cfg.HTTP.RateLimitWindow)
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}
	engine.Use(httpMetrics)

	healthHandler := handler.NewHealthHandler(healthChecks, schedStatus)
	engine.GET("/health", healthHandler.Check)

	jwtService := auth.NewJWTService(cfg.JWT)
	jwtMiddleware := middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		Validator:        jwtService,
		SkipPaths:        []string{"/health"},
		SkipPathPrefixes: []string{"/swagger"},
		Logger:           log,
	})

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		}, middleware.JWTAuthMiddleware(jwtService)),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	r := router.RegisterAPI(router.NewRouter(engine, router.WithAPIVersion("v1")), router.Handlers{
		Payments:     handler.NewPaymentHandler(paymentService),
		Recurring:    handler.NewRecurringHandler(recurringScheduler),
		Installments: handler.NewInstallmentHandler(installmentTracker),
		Audit:        handler.NewAuditHandler(auditService),
		Billing:      billingHandler,
	}, middleware.RequireRole)
	r.Use(jwtMiddleware, middleware.TracingAttributeInjector(), middleware.SpanErrorMarker())
	r.Use(middleware.Profiling(profiler.IsEnabled()))
	r.Setup()

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	// In-flight batches finish or are cancelled before telemetry is flushed
	if billingScheduler != nil {
		if err := billingScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping billing scheduler", zap.Error(err))
		}
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	shutdownTelemetry(shutdownCtx, log, tracerProvider, meterProvider, logProvider)

	log.Info("Server exited gracefully")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdownTelemetry flushes the providers in order. The log provider goes
// last so the shutdown of the others is still exported.
func shutdownTelemetry(ctx context.Context, log *zap.Logger, providers ...shutdowner) {
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			log.Error("Error shutting down telemetry provider", zap.Error(err))
		}
	}
}

func sweepRateLimiter(ctx context.Context, limiter *middleware.RateLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}

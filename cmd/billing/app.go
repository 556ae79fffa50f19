package main

import (
	"fmt"

	appaudit "github.com/gym/backend/internal/application/audit"
	apppayment "github.com/gym/backend/internal/application/payment"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/gym/backend/internal/infrastructure/cache"
	"github.com/gym/backend/internal/infrastructure/config"
	"github.com/gym/backend/internal/infrastructure/logger"
	"github.com/gym/backend/internal/infrastructure/notification"
	"github.com/gym/backend/internal/infrastructure/persistence"
	"github.com/gym/backend/internal/infrastructure/storage"
	"go.uber.org/zap"
)

type bootstrapFunc func() (*app, error)

// app is the service graph a billing command runs against. It mirrors the
// server wiring without HTTP, telemetry export and invoice rendering.
type app struct {
	cfg          *config.Config
	log          *zap.Logger
	db           *persistence.Database
	lock         shared.ScheduleLock
	audit        *appaudit.Service
	recurring    *apppayment.RecurringScheduler
	installments *apppayment.InstallmentTracker
}

func newApp(logLevel string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithSQL(cfg.Telemetry.DBLogFullSQL),
	)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db}

	batch := apppayment.BatchConfig{
		BatchTimeout:  cfg.Billing.BatchTimeout,
		RecordTimeout: cfg.Billing.RecordTimeout,
		LockTTL:       cfg.Billing.LockTTL,
	}
	if cfg.Billing.LockEnabled {
		// A CLI run next to a live server must not double charge, so no in-memory fallback
		lock, err := cache.NewScheduleLockFactory(cfg.Redis,
			cache.WithLogger(log),
			cache.WithInMemoryFallback(false),
		).Create()
		if err != nil {
			a.Close()
			return nil, err
		}
		a.lock = lock
		batch.Lock = lock
	}

	var archive appaudit.ArchiveStore
	if cfg.Storage.Enabled {
		s3Archive, err := storage.NewS3AuditArchive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			a.Close()
			return nil, err
		}
		archive = s3Archive
	}

	memberRepo := persistence.NewGormMemberRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	recurringRepo := persistence.NewGormRecurringPaymentRepository(db.DB)
	installmentRepo := persistence.NewGormInstallmentPlanRepository(db.DB)

	notifyConfig := notification.DefaultConfig()
	notifyConfig.Rate = cfg.Billing.NotifyRate
	notifyConfig.Burst = cfg.Billing.NotifyBurst
	notifyConfig.Timeout = cfg.Billing.NotifyTimeout
	notifier := notification.NewLogNotifier(notifyConfig, log)

	a.audit = appaudit.NewService(appaudit.ServiceConfig{
		Entries:       persistence.NewGormAuditRepository(db.DB),
		Compliance:    persistence.NewGormComplianceRepository(db.DB),
		Archive:       archive,
		ArchivePrefix: cfg.Audit.ArchivePrefix,
		WriteTimeout:  cfg.Audit.WriteTimeout,
		Logger:        log.Named("audit"),
	})
	failures := apppayment.NewFailureHandler(apppayment.FailureHandlerConfig{
		Schedules:     recurringRepo,
		Plans:         installmentRepo,
		Notifier:      notifier,
		Audit:         a.audit,
		NotifyTimeout: cfg.Billing.NotifyTimeout,
		Logger:        log.Named("payment-failures"),
	})
	a.recurring = apppayment.NewRecurringScheduler(apppayment.RecurringSchedulerConfig{
		Schedules: recurringRepo,
		Payments:  paymentRepo,
		Members:   memberRepo,
		Failures:  failures,
		Audit:     a.audit,
		Batch:     batch,
		Logger:    log.Named("recurring"),
	})
	a.installments = apppayment.NewInstallmentTracker(apppayment.InstallmentTrackerConfig{
		Plans:    installmentRepo,
		Payments: paymentRepo,
		Members:  memberRepo,
		Failures: failures,
		Audit:    a.audit,
		Batch:    batch,
		Logger:   log.Named("installments"),
	})

	log.Debug("Billing CLI ready", zap.String("env", cfg.App.Env))
	return a, nil
}

// Close releases the lock backend and the database pool
func (a *app) Close() {
	if a.lock != nil {
		if err := a.lock.Close(); err != nil {
			a.log.Warn("Error closing billing lock", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("Error closing database", zap.Error(err))
	}
	_ = a.log.Sync()
}

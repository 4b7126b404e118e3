// Package bootstrap wires the billing services from configuration. The
// HTTP server and the operator CLI share it so both run the same stack.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appbilling "github.com/hospital/billing/internal/application/billing"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/infrastructure/cache"
	"github.com/hospital/billing/internal/infrastructure/config"
	"github.com/hospital/billing/internal/infrastructure/encounter"
	"github.com/hospital/billing/internal/infrastructure/event"
	"github.com/hospital/billing/internal/infrastructure/lock"
	"github.com/hospital/billing/internal/infrastructure/logger"
	"github.com/hospital/billing/internal/infrastructure/payment"
	"github.com/hospital/billing/internal/infrastructure/persistence"
	"github.com/hospital/billing/internal/infrastructure/readmodel"
	"github.com/hospital/billing/internal/infrastructure/telemetry"
)

const (
	meterName          = "github.com/hospital/billing"
	slowQueryThreshold = 200 * time.Millisecond
)

// App holds the wired services and the resources backing them
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB      *persistence.Database
	Redis   *redis.Client
	Replica *pgxpool.Pool
	Bus     *event.InMemoryEventBus

	Telemetry *telemetry.Provider
	Metrics   *telemetry.BillingMetrics

	Invoices    *appbilling.InvoiceService
	Initiation  *appbilling.PaymentInitiationService
	Recorder    *appbilling.PaymentRecorder
	Corrections *appbilling.CorrectionEngine
	Callbacks   *appbilling.GatewayCallbackService
	Overdue     *appbilling.OverdueService
	Stats       *appbilling.StatsService

	closers []func(context.Context) error
}

// New connects to every configured backend and builds the services.
// On error, whatever was already opened is closed again.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if err := a.initTelemetry(ctx); err != nil {
		return nil, err
	}
	log = a.Logger
	if err := a.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := a.initRedis(ctx); err != nil {
		return nil, err
	}

	locker, err := a.newLocker()
	if err != nil {
		return nil, err
	}
	idempotency, err := cache.NewIdempotencyStoreFactory(a.redisClient(),
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore()
	if err != nil {
		return nil, err
	}

	gateway, err := a.newGateway()
	if err != nil {
		return nil, err
	}
	channels := billing.NewChannelRegistry(billing.DefaultChannels(gateway)...)

	statsSource, err := a.newStatsSource(ctx)
	if err != nil {
		return nil, err
	}

	a.Bus = event.NewInMemoryEventBus(log)
	invoiceRepo := persistence.NewGormInvoiceRepository(a.DB.DB)
	pendingRepo := persistence.NewGormPendingPaymentRepository(a.DB.DB)
	lockTimeout := cfg.Lock.Timeout

	a.Invoices = appbilling.NewInvoiceService(appbilling.InvoiceServiceConfig{
		Repo:           invoiceRepo,
		Locker:         locker,
		LockTimeout:    lockTimeout,
		Patients:       persistence.NewGormPatientDirectory(a.DB.DB),
		Catalog:        persistence.NewGormServiceCatalog(a.DB.DB),
		Publisher:      a.Bus,
		Metrics:        a.Metrics,
		Logger:         log,
		DefaultDueDays: cfg.Billing.DefaultDueDays,
	})
	a.Initiation = appbilling.NewPaymentInitiationService(appbilling.PaymentInitiationServiceConfig{
		Repo:        invoiceRepo,
		PendingRepo: pendingRepo,
		Locker:      locker,
		LockTimeout: lockTimeout,
		Channels:    channels,
		Publisher:   a.Bus,
		Logger:      log,
	})
	a.Recorder = appbilling.NewPaymentRecorder(appbilling.PaymentRecorderConfig{
		Repo:        invoiceRepo,
		Locker:      locker,
		LockTimeout: lockTimeout,
		Channels:    channels,
		Tolerance:   cfg.Billing.PaymentTolerance,
		Publisher:   a.Bus,
		Metrics:     a.Metrics,
		Logger:      log,
	})
	a.Corrections = appbilling.NewCorrectionEngine(appbilling.CorrectionEngineConfig{
		Repo:        invoiceRepo,
		Locker:      locker,
		LockTimeout: lockTimeout,
		Reopener:    encounter.New(cfg.Encounter, log),
		Publisher:   a.Bus,
		Metrics:     a.Metrics,
		Logger:      log,
	})
	a.Callbacks = appbilling.NewGatewayCallbackService(appbilling.GatewayCallbackServiceConfig{
		Gateway:          gateway,
		Recorder:         a.Recorder,
		InvoiceRepo:      invoiceRepo,
		PendingRepo:      pendingRepo,
		IdempotencyStore: idempotency,
		IdempotencyTTL:   cfg.Billing.IdempotencyTTL,
		Logger:           log,
	})
	a.Overdue = appbilling.NewOverdueService(appbilling.OverdueServiceConfig{
		Repo:        invoiceRepo,
		Locker:      locker,
		LockTimeout: lockTimeout,
		Publisher:   a.Bus,
		Logger:      log,
		BatchSize:   cfg.Billing.OverdueBatchSize,
	})
	a.Stats = appbilling.NewStatsService(appbilling.StatsServiceConfig{
		Source:   statsSource,
		CacheTTL: cfg.Billing.StatsCacheTTL,
		Logger:   log,
	})

	a.Bus.Subscribe(appbilling.NewAuditLogHandler(log))
	a.Bus.Subscribe(appbilling.NewStatsInvalidationHandler(a.Stats))
	if err := a.Bus.Start(ctx); err != nil {
		return nil, fmt.Errorf("start event bus: %w", err)
	}
	a.onClose(a.Bus.Stop)

	return a, nil
}

func (a *App) initTelemetry(ctx context.Context) error {
	t := a.Config.Telemetry
	p, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		Insecure:          t.Insecure,
		ServiceName:       t.ServiceName,
		SamplingRatio:     t.SamplingRatio,
		MetricsInterval:   t.MetricsInterval,
		ExportLogs:        t.LogsEnabled,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.Telemetry = p
	a.Logger = p.Bridge(a.Logger)
	a.onClose(p.Shutdown)

	metrics, err := telemetry.NewBillingMetrics(p.Meter(meterName), a.Config.Billing.Currency)
	if err != nil {
		return fmt.Errorf("init billing metrics: %w", err)
	}
	a.Metrics = metrics
	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	gormLog := logger.NewGormLogger(a.Logger, logger.MapGormLogLevel(a.Config.Log.Level), slowQueryThreshold)
	db, err := persistence.NewDatabase(ctx, &a.Config.Database, gormLog)
	if err != nil {
		return err
	}
	a.DB = db
	a.onClose(func(context.Context) error { return db.Close() })

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         a.Config.Telemetry.DBTraceEnabled,
		SlowQueryThresh: slowQueryThreshold,
		DBName:          a.Config.Database.DBName,
	}, a.Logger); err != nil {
		return fmt.Errorf("register db tracing: %w", err)
	}

	reg, err := telemetry.RegisterDBPoolMetrics(a.Telemetry.Meter(meterName), db.SQL())
	if err != nil {
		return fmt.Errorf("init pool metrics: %w", err)
	}
	a.onClose(func(context.Context) error { return reg.Unregister() })
	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	if !a.Config.Redis.Enabled {
		return nil
	}
	client, err := cache.NewRedisClient(ctx, a.Config.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.Redis = client
	a.onClose(func(context.Context) error { return client.Close() })
	return nil
}

// redisClient avoids handing a typed nil to redis.UniversalClient parameters
func (a *App) redisClient() redis.UniversalClient {
	if a.Redis == nil {
		return nil
	}
	return a.Redis
}

func (a *App) newLocker() (billing.InvoiceLocker, error) {
	switch a.Config.Lock.Backend {
	case "redis":
		if a.Redis == nil {
			return nil, errors.New("lock backend redis requires redis.enabled")
		}
		return lock.NewRedisLocker(lock.RedisLockerConfig{
			Client:    a.Redis,
			KeyPrefix: a.Config.Lock.KeyPrefix,
			Lease:     a.Config.Lock.Lease,
			Logger:    a.Logger,
		}), nil
	case "", "memory":
		return lock.NewMemoryLocker(), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", a.Config.Lock.Backend)
	}
}

// newGateway returns nil when Stripe is disabled; card payments are then
// refused by the redirect channel.
func (a *App) newGateway() (billing.PaymentGateway, error) {
	if !a.Config.Stripe.Enabled {
		a.Logger.Info("Stripe disabled, card checkout unavailable")
		return nil, nil
	}
	gw, err := payment.NewStripeGateway(&payment.StripeConfig{
		SecretKey:     a.Config.Stripe.SecretKey,
		WebhookSecret: a.Config.Stripe.WebhookSecret,
		Currency:      a.Config.Billing.CurrencyUnit(),
		Logger:        a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init stripe gateway: %w", err)
	}
	return gw, nil
}

func (a *App) newStatsSource(ctx context.Context) (billing.StatsSource, error) {
	if a.Config.Replica.DSN == "" {
		return persistence.NewGormStatsSource(a.DB.DB), nil
	}
	pool, err := readmodel.NewPool(ctx, a.Config.Replica)
	if err != nil {
		return nil, err
	}
	a.Replica = pool
	a.onClose(func(context.Context) error {
		pool.Close()
		return nil
	})
	a.Logger.Info("Billing stats read from replica")
	return readmodel.NewPgxStatsSource(pool), nil
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases everything New opened, most recent first
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// HealthChecks probes the primary database and, when enabled, Redis
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"database": a.DB.Ping,
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	if a.Replica != nil {
		checks["replica"] = a.Replica.Ping
	}
	return checks
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hospital/billing/internal/bootstrap"
	"github.com/hospital/billing/internal/infrastructure/auth"
	"github.com/hospital/billing/internal/infrastructure/config"
	"github.com/hospital/billing/internal/infrastructure/logger"
	"github.com/hospital/billing/internal/infrastructure/scheduler"
	"github.com/hospital/billing/internal/interfaces/http/handler"
	"github.com/hospital/billing/internal/interfaces/http/middleware"
	"github.com/hospital/billing/internal/interfaces/http/router"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

//	@title			Hospital Billing API
//	@version		1.0
//	@description	Invoices, payments and audited corrections for patient billing

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.ISO8601Millis,
		Fields:     map[string]any{"service": cfg.App.Name, "env": cfg.App.Env},
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting billing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize billing services", zap.Error(err))
	}
	log = app.Logger
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			log.Error("Error releasing resources", zap.Error(err))
		}
	}()

	if cfg.Scheduler.Enabled {
		overdue, err := scheduler.NewOverdueScheduler(scheduler.OverdueSchedulerConfig{
			Interval:   cfg.Scheduler.OverdueInterval,
			JobTimeout: cfg.Scheduler.JobTimeout,
			RunOnStart: true,
		}, app.Overdue, app.Metrics, log)
		if err != nil {
			log.Fatal("Failed to create overdue scheduler", zap.Error(err))
		}
		if err := overdue.Start(ctx); err != nil {
			log.Fatal("Failed to start overdue scheduler", zap.Error(err))
		}
		defer func() {
			if err := overdue.Stop(context.Background()); err != nil {
				log.Error("Error stopping overdue scheduler", zap.Error(err))
			}
		}()
		log.Info("Overdue scheduler started",
			zap.Duration("interval", cfg.Scheduler.OverdueInterval),
			zap.Duration("job_timeout", cfg.Scheduler.JobTimeout),
		)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := make(map[string]handler.HealthChecker)
	for name, check := range app.HealthChecks() {
		checks[name] = check
	}

	engine := router.NewEngine(router.EngineConfig{
		Logger:  log,
		HTTP:    cfg.HTTP,
		Swagger: cfg.Swagger,
		Actor: middleware.ActorConfig{
			JWTService:  auth.NewJWTService(cfg.Auth),
			AllowHeader: cfg.Auth.AllowHeaderActor,
			Logger:      log,
		},
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Meter: app.Telemetry.Meter("github.com/hospital/billing/http"),
	}, router.Handlers{
		Invoice: handler.NewInvoiceHandler(app.Invoices),
		Payment: handler.NewPaymentHandler(app.Initiation, app.Recorder, handler.CheckoutURLs{
			SuccessURL: cfg.Billing.CheckoutSuccessURL,
			CancelURL:  cfg.Billing.CheckoutCancelURL,
		}),
		Correction: handler.NewCorrectionHandler(app.Corrections),
		Stats:      handler.NewStatsHandler(app.Stats),
		Webhook:    handler.NewWebhookHandler(app.Callbacks),
		System:     handler.NewSystemHandler(cfg.App.Name, version, checks),
	})

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

package router

import (
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/hospital/billing/internal/infrastructure/config"
	"github.com/hospital/billing/internal/infrastructure/logger"
	"github.com/hospital/billing/internal/interfaces/http/handler"
	"github.com/hospital/billing/internal/interfaces/http/middleware"
)

// openAPIPath is where the raw OpenAPI document is served when Swagger is enabled
const openAPIPath = "/openapi.json"

// Handlers groups the HTTP handlers of the billing API
type Handlers struct {
	Invoice    *handler.InvoiceHandler
	Payment    *handler.PaymentHandler
	Correction *handler.CorrectionHandler
	Stats      *handler.StatsHandler
	Webhook    *handler.WebhookHandler
	System     *handler.SystemHandler
}

// EngineConfig holds what the HTTP engine needs besides the handlers
type EngineConfig struct {
	Logger  *zap.Logger
	HTTP    config.HTTPConfig
	Swagger config.SwaggerConfig
	Actor   middleware.ActorConfig
	Tracing middleware.TracingConfig
	// Meter records HTTP server metrics; nil disables them
	Meter metric.Meter
}

// NewEngine builds the gin engine with the middleware stack and all billing routes.
//
// Middleware order: request id, recovery, tracing, request logging, security
// headers, CORS, body limit, metrics. Versioned API routes additionally
// resolve the actor and enrich the request span.
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()
	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(cfg.Tracing))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(corsConfig(cfg.HTTP)))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.HTTPMetrics(cfg.Meter))

	engine.GET("/health", h.System.Health)

	if cfg.Swagger.Enabled && cfg.Swagger.SpecPath != "" {
		engine.StaticFile(openAPIPath, cfg.Swagger.SpecPath)
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(openAPIPath)))
		log.Info("Swagger UI enabled", zap.String("spec", cfg.Swagger.SpecPath))
	}

	// Gateway callbacks are authenticated by their signature, not by an actor
	webhooks := engine.Group("/api/v1/webhooks")
	webhooks.POST("/stripe", h.Webhook.HandleStripeWebhook)

	api := engine.Group("/api/v1", middleware.Actor(cfg.Actor), middleware.SpanEnricher())
	mount(api, apiRoutes(h))

	return engine
}

func corsConfig(httpCfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = httpCfg.CORSAllowOrigins
	if len(httpCfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = httpCfg.CORSAllowMethods
	}
	if len(httpCfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = httpCfg.CORSAllowHeaders
	}
	cors.ExposeHeaders = []string{middleware.RequestIDHeader}
	cors.AllowCredentials = true
	cors.MaxAge = 12 * time.Hour
	return cors
}

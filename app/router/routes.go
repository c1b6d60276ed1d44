// Package router provides HTTP routing, middleware configuration, and server setup for the pricing API
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"slices"
	"time"

	"github.com/amirphl/faredown-pricing/app/dto"
	"github.com/amirphl/faredown-pricing/app/handlers"
	"github.com/amirphl/faredown-pricing/app/middleware"
	"github.com/amirphl/faredown-pricing/config"
	"github.com/amirphl/faredown-pricing/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown(timeout time.Duration) error
	GetApp() *fiber.App
}

// HealthCheck checks one dependency; a nil error means healthy
type HealthCheck func(ctx context.Context) error

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app               *fiber.App
	cfg               *config.ProductionConfig
	logger            zerolog.Logger
	pricingHandler    handlers.PricingHandlerInterface
	markupRuleHandler handlers.MarkupRuleAdminHandlerInterface
	promoCodeHandler  handlers.PromoCodeAdminHandlerInterface
	healthChecks      map[string]HealthCheck
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	logger zerolog.Logger,
	pricingHandler handlers.PricingHandlerInterface,
	markupRuleHandler handlers.MarkupRuleAdminHandlerInterface,
	promoCodeHandler handlers.PromoCodeAdminHandlerInterface,
	healthChecks map[string]HealthCheck,
) Router {
	r := &FiberRouter{
		cfg:               cfg,
		logger:            logger.With().Str("component", "router").Logger(),
		pricingHandler:    pricingHandler,
		markupRuleHandler: markupRuleHandler,
		promoCodeHandler:  promoCodeHandler,
		healthChecks:      healthChecks,
	}

	appCfg := fiber.Config{
		AppName:      "Faredown Pricing API",
		ServerHeader: "faredown-pricing",
		ErrorHandler: r.errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if len(cfg.Server.TrustedProxies) > 0 {
		appCfg.TrustProxy = true
		appCfg.TrustProxyConfig = fiber.TrustProxyConfig{Proxies: cfg.Server.TrustedProxies}
		appCfg.ProxyHeader = cfg.Server.ProxyHeader
	}
	r.app = fiber.New(appCfg)
	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		path := r.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")
	api.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.GlobalRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath
		},
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimited,
	}))

	api.Get("/health", r.healthCheck)

	pricing := api.Group("/pricing")
	pricing.Post("/quote", r.pricingHandler.Quote)

	bargain := pricing.Group("/bargain")
	bargain.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.BargainRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return "bargain:" + c.IP()
		},
		LimitReached: rateLimited,
	}))
	bargain.Post("/offer", r.pricingHandler.SubmitBargainOffer)
	bargain.Post("/accept", r.pricingHandler.AcceptBargain)
	bargain.Post("/abandon", r.pricingHandler.AbandonBargain)
	bargain.Get("/sessions/:session_id", r.pricingHandler.GetBargainSession)

	admin := api.Group("/admin")

	rules := admin.Group("/markup-rules")
	rules.Post("/", r.markupRuleHandler.CreateMarkupRule)
	rules.Get("/", r.markupRuleHandler.ListMarkupRules)
	// before /:id so "summary" is not parsed as an id
	rules.Get("/summary", r.markupRuleHandler.MarkupRulesSummary)
	rules.Get("/:id", r.markupRuleHandler.GetMarkupRule)
	rules.Put("/:id", r.markupRuleHandler.UpdateMarkupRule)
	rules.Post("/:id/deactivate", r.markupRuleHandler.DeactivateMarkupRule)

	promos := admin.Group("/promo-codes")
	promos.Post("/", r.promoCodeHandler.CreatePromoCode)
	promos.Get("/", r.promoCodeHandler.ListPromoCodes)
	promos.Get("/:code", r.promoCodeHandler.GetPromoCode)
	promos.Put("/:code", r.promoCodeHandler.UpdatePromoCode)
	promos.Get("/:code/stats", r.promoCodeHandler.PromoCodeStats)

	r.app.Use(r.notFoundHandler)

	r.logger.Info().Msg("routes configured")
}

func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error().
				Str("request_id", requestid.FromContext(c)).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Interface("panic", e).
				Msg("panic recovered")
		},
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         r.cfg.Security.XFrameOptions,
		HSTSMaxAge:            r.cfg.Security.HSTSMaxAge,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none';",
		ReferrerPolicy:        r.cfg.Security.ReferrerPolicy,
	}))

	// credentials cannot be combined with a wildcard origin
	allowCredentials := r.cfg.Security.AllowCredentials && !slices.Contains(r.cfg.Security.AllowedOrigins, "*")
	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: allowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(middleware.AccessLog(r.logger, healthPath))
	}
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Info().Str("address", address).Msg("starting server")
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown drains in-flight requests for at most timeout
func (r *FiberRouter) Shutdown(timeout time.Duration) error {
	return r.app.ShutdownWithTimeout(timeout)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	checks := make(fiber.Map, len(r.healthChecks))
	for name, check := range r.healthChecks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = fiber.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	message := "Service is healthy"
	if status != fiber.StatusOK {
		message = "Service is degraded"
	}
	return c.Status(status).JSON(dto.APIResponse{
		Success: status == fiber.StatusOK,
		Message: message,
		Data: fiber.Map{
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "faredown-pricing",
			"checks":    checks,
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// errorHandler renders errors that escaped the handlers, e.g. fiber routing errors
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errCode := "INTERNAL_ERROR"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
		errCode = "HTTP_ERROR"
	}
	if code >= fiber.StatusInternalServerError {
		r.logger.Error().Err(err).Int("status", code).Str("request_id", requestid.FromContext(c)).Msg("unhandled error")
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

func rateLimited(c fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
		Success: false,
		Message: "Too many requests. Please try again later.",
		Error: dto.ErrorDetail{
			Code: "RATE_LIMIT_EXCEEDED",
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

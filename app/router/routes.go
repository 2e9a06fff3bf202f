// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/swaggo/swag"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/handlers"
	"github.com/amirphl/realty-workflow/app/middleware"
	"github.com/amirphl/realty-workflow/app/services"
	"github.com/amirphl/realty-workflow/config"
	_ "github.com/amirphl/realty-workflow/docs"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Lead          *handlers.LeadHandler
	Verification  *handlers.VerificationHandler
	Partner       *handlers.PartnerHandler
	User          *handlers.UserHandler
	Institutional *handlers.InstitutionalHandler
	Admin         *handlers.AdminHandler
	Recorder      *handlers.RecorderHandler
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	handlers Handlers
	auth     *middleware.AuthMiddleware
	cfg      *config.ProductionConfig
	rdb      *redis.Client
	logger   *zap.Logger
}

// NewFiberRouter creates a new Fiber router. rdb may be nil, which disables idempotent replay.
func NewFiberRouter(h Handlers, auth *middleware.AuthMiddleware, cfg *config.ProductionConfig, rdb *redis.Client, log *zap.Logger) *FiberRouter {
	if log == nil {
		log = zap.NewNop()
	}

	r := &FiberRouter{
		handlers: h,
		auth:     auth,
		cfg:      cfg,
		rdb:      rdb,
		logger:   log,
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Realty Workflow API",
		ServerHeader: "realty-workflow",
		ErrorHandler: r.errorHandler,
		BodyLimit:    orDefault(cfg.Server.BodyLimit, 4*1024*1024),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
		ProxyHeader: cfg.Server.ProxyHeader,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.logger.Info("Setting up routes")

	r.setupMiddleware()

	api := r.app.Group("/api/v1")

	// Infra routes, outside rate limiting
	api.Get("/health", r.healthCheck)
	if r.cfg.Metrics.Enabled {
		metricsHandler := adaptor.HTTPHandler(promhttp.Handler())
		api.Get("/metrics", metricsHandler)
		if path := r.cfg.Metrics.Path; path != "" && path != "/api/v1/metrics" {
			r.app.Get(path, metricsHandler)
		}
	}
	api.Get("/docs/swagger.json", r.serveSwaggerJSON)

	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit, func(c fiber.Ctx) bool {
		return isInfraPath(c.Path())
	}))

	// idempotent replay for creation endpoints
	idem := middleware.Idempotency(r.rdb, r.cfg.Cache.RedisPrefix, r.cfg.Security.IdempotencyTTL, r.logger)
	authLimit := r.rateLimiter(r.cfg.Security.AuthRateLimit, nil)
	adminOnly := r.auth.AdminAuthenticate()

	// Public lead capture and verification
	h := r.handlers
	api.Post("/leads", idem, h.Lead.CreateLead)
	api.Put("/leads/:id/status", adminOnly, h.Lead.UpdateLeadStatus)
	api.Post("/verify-email", authLimit, h.Verification.VerifyEmail(models.VerificationOwnerLead))
	api.Post("/verify-phone", authLimit, h.Verification.VerifyLeadPhone)
	api.Post("/resend-verification", authLimit, h.Verification.ResendLead)

	// Offers, foreclosure services and the communication log
	api.Post("/offers", idem, h.Recorder.CreateOffer)
	api.Put("/offers/:id", adminOnly, h.Recorder.UpdateOffer)
	api.Get("/communications/:leadId", adminOnly, h.Recorder.ListCommunications)
	api.Post("/foreclosure-subscriptions", idem, h.Recorder.CreateSubscription)
	api.Put("/foreclosure-subscriptions/:id", adminOnly, h.Recorder.UpdateSubscription)
	api.Post("/bid-service-requests", idem, h.Recorder.CreateBidRequest)
	api.Put("/bid-service-requests/:id", adminOnly, h.Recorder.UpdateBidRequest)

	// Partner portal
	partners := api.Group("/partners")
	partners.Post("/register", authLimit, idem, h.Partner.Register)
	partners.Post("/verify-email", authLimit, h.Verification.VerifyEmail(models.VerificationOwnerPartner))
	partners.Post("/verify-phone", authLimit, h.Verification.VerifyPartnerPhone)
	partners.Post("/resend-verification", authLimit, h.Verification.ResendPartner)
	partners.Post("/login", authLimit, h.Partner.Login)
	partners.Post("/refresh", authLimit, h.Partner.Refresh)
	partners.Post("/logout", r.auth.Authenticate(services.SubjectPartner), h.Partner.Logout)
	partners.Get("/me", r.auth.Authenticate(services.SubjectPartner), h.Partner.Me)

	// Site users
	users := api.Group("/users")
	users.Post("/register", authLimit, idem, h.User.Register)
	users.Post("/verify-email", authLimit, h.Verification.VerifyEmail(models.VerificationOwnerUser))
	users.Post("/resend-verification", authLimit, h.Verification.ResendUser)
	users.Post("/login", authLimit, h.User.Login)
	users.Post("/refresh", authLimit, h.User.Refresh)
	users.Post("/logout", r.auth.Authenticate(services.SubjectUser), h.User.Logout)
	users.Get("/me", r.auth.Authenticate(services.SubjectUser), h.User.Me)

	// Institutional investor portal
	institutional := api.Group("/institutional")
	investorOnly := r.auth.InstitutionalAuthenticate()
	institutional.Post("/login", authLimit, h.Institutional.Login)
	institutional.Post("/logout", investorOnly, h.Institutional.Logout)
	institutional.Get("/me", investorOnly, h.Institutional.Me)
	institutional.Post("/bids", investorOnly, idem, h.Institutional.CreateBid)
	institutional.Get("/bids", investorOnly, h.Institutional.ListBids)

	// Admin back office
	admin := api.Group("/admin")
	admin.Get("/captcha", authLimit, h.Admin.InitCaptcha)
	admin.Post("/login", authLimit, h.Admin.Login)
	admin.Post("/logout", adminOnly, h.Admin.Logout)
	admin.Get("/me", adminOnly, h.Admin.Me)
	admin.Get("/partners", adminOnly, h.Admin.ListPartners)
	admin.Post("/partners/:id/approve", adminOnly, h.Admin.ApprovePartner)
	admin.Post("/partners/:id/reject", adminOnly, h.Admin.RejectPartner)
	admin.Get("/investors", adminOnly, h.Admin.ListInvestors)
	admin.Post("/investors/:id/approve", adminOnly, h.Admin.ApproveInvestor)
	admin.Post("/investors/:id/reject", adminOnly, h.Admin.RejectInvestor)
	admin.Get("/leads", adminOnly, h.Lead.ListLeads)
	admin.Get("/leads/export", adminOnly, h.Lead.ExportLeads)
	admin.Get("/offers", adminOnly, h.Recorder.ListOffers)
	admin.Get("/foreclosure-subscriptions", adminOnly, h.Recorder.ListSubscriptions)
	admin.Get("/bid-service-requests", adminOnly, h.Recorder.ListBidRequests)
	admin.Put("/communications/:id", adminOnly, h.Recorder.UpdateCommunication)

	r.app.Use(r.notFoundHandler)

	r.logger.Info("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error("panic recovered",
				zap.String("request_id", requestid.FromContext(c)),
				zap.Any("error", e),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.String("ip", c.IP()),
			)
		},
	}))

	sec := r.cfg.Security
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        sec.XContentTypeOptions,
		XFrameOptions:             sec.XFrameOptions,
		HSTSMaxAge:                sec.HSTSMaxAge,
		ContentSecurityPolicy:     sec.CSPPolicy,
		ReferrerPolicy:            sec.ReferrerPolicy,
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     sec.AllowedOrigins,
		AllowMethods:     sec.AllowedMethods,
		AllowHeaders:     sec.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition", "Idempotent-Replayed"},
		AllowCredentials: sec.AllowCredentials,
		MaxAge:           sec.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// xlsx is already zip-compressed
				return strings.HasSuffix(c.Path(), "/export")
			},
		}))
	}

	if r.cfg.Server.EnableMetrics {
		r.app.Use(middleware.Metrics())
	}

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return isInfraPath(c.Path())
		},
	}))
}

func (r *FiberRouter) rateLimiter(maxPerWindow int, next func(fiber.Ctx) bool) fiber.Handler {
	window := r.cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        orDefault(maxPerWindow, 1000),
		Expiration: window,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: next,
	})
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Info("Starting server", zap.String("address", address))
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   "1.0.0",
			"service":   "realty-workflow-api",
		},
	})
}

func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load Swagger documentation",
			Error: dto.ErrorDetail{
				Code: "SWAGGER_LOAD_ERROR",
			},
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(doc)
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

func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errCode := "INTERNAL_ERROR"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			message = e.Message
			errCode = "REQUEST_ERROR"
		}
	}

	if code >= fiber.StatusInternalServerError {
		r.logger.Error("request failed",
			zap.Int("status", code),
			zap.String("request_id", requestid.FromContext(c)),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
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

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func isInfraPath(path string) bool {
	return path == "/api/v1/health" || path == "/api/v1/metrics" || strings.HasPrefix(path, "/api/v1/docs")
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/amirphl/Shiten/app/dto"
	"github.com/amirphl/Shiten/app/handlers"
	"github.com/amirphl/Shiten/app/middleware"
	"github.com/amirphl/Shiten/config"
	"github.com/amirphl/Shiten/utils"
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
)

const apiPrefix = "/api"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown(ctx context.Context) error
	GetApp() *fiber.App
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Options configures the server and the middleware chain
type Options struct {
	Production   bool
	Version      string
	BodyLimit    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Compression  bool

	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	CORSMaxAge       int

	GlobalRateLimit int
	AuthRateLimit   int
	RateLimitWindow time.Duration

	MetricsEnabled bool
	MetricsPath    string

	// AccessLog receives one JSON line per request; nil disables access logging
	AccessLog io.Writer

	HealthChecks map[string]HealthCheck
}

// OptionsFromConfig builds router options from the application configuration
func OptionsFromConfig(cfg *config.ProductionConfig) Options {
	return Options{
		Production:       cfg.Deployment.IsProduction(),
		Version:          cfg.Deployment.Version,
		BodyLimit:        cfg.Server.BodyLimit,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		IdleTimeout:      cfg.Server.IdleTimeout,
		Compression:      cfg.Server.EnableCompression,
		AllowedOrigins:   cfg.Security.AllowedOrigins,
		AllowedMethods:   cfg.Security.AllowedMethods,
		AllowedHeaders:   cfg.Security.AllowedHeaders,
		AllowCredentials: cfg.Security.AllowCredentials,
		CORSMaxAge:       cfg.Security.CORSMaxAge,
		GlobalRateLimit:  cfg.Security.GlobalRateLimit,
		AuthRateLimit:    cfg.Security.AuthRateLimit,
		RateLimitWindow:  cfg.Security.RateLimitWindow,
		MetricsEnabled:   cfg.Metrics.Enabled,
		MetricsPath:      cfg.Metrics.Path,
		AccessLog:        os.Stdout,
	}
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app               *fiber.App
	opts              Options
	authHandler       handlers.AuthHandlerInterface
	branchHandler     handlers.BranchHandlerInterface
	companyHandler    handlers.CompanyHandlerInterface
	sessionMiddleware *middleware.SessionMiddleware
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	authHandler handlers.AuthHandlerInterface,
	branchHandler handlers.BranchHandlerInterface,
	companyHandler handlers.CompanyHandlerInterface,
	sessionMiddleware *middleware.SessionMiddleware,
	opts Options,
) Router {
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = 1024 * 1024
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if opts.CORSMaxAge <= 0 {
		opts.CORSMaxAge = utils.CORSMaxAge
	}

	r := &FiberRouter{
		opts:              opts,
		authHandler:       authHandler,
		branchHandler:     branchHandler,
		companyHandler:    companyHandler,
		sessionMiddleware: sessionMiddleware,
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Shiten API",
		ServerHeader: "Shiten",
		ErrorHandler: r.errorHandler,
		BodyLimit:    opts.BodyLimit,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	if r.opts.MetricsEnabled {
		r.app.Get(r.opts.MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group(apiPrefix)

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	if r.opts.GlobalRateLimit > 0 {
		api.Use(r.rateLimiter(r.opts.GlobalRateLimit, func(c fiber.Ctx) bool {
			return c.Path() == apiPrefix+"/health"
		}))
	}

	authenticate := r.sessionMiddleware.Authenticate()
	requireAdministrator := middleware.RequireAdministrator()

	// Auth routes with stricter rate limiting
	auth := api.Group("/auth")
	if r.opts.AuthRateLimit > 0 {
		auth.Use(r.rateLimiter(r.opts.AuthRateLimit, nil))
	}
	auth.Post("/register", r.authHandler.Register)
	auth.Post("/login", r.authHandler.Login)
	auth.Get("/sign-out", authenticate, r.authHandler.SignOut)
	auth.Get("/me", authenticate, r.authHandler.Me)

	// Route-level middleware runs in argument order, so the session check precedes the role check
	api.Get("/branch", r.branchHandler.GetBranch)
	branch := api.Group("/branch")
	branch.Get("/list", r.branchHandler.ListByCompany)
	branch.Post("/create-branch", authenticate, requireAdministrator, r.branchHandler.CreateBranch)
	branch.Patch("/update-branch", authenticate, requireAdministrator, r.branchHandler.UpdateBranch)
	branch.Patch("/update-password", authenticate, requireAdministrator, r.branchHandler.UpdatePassword)
	branch.Patch("/active", authenticate, requireAdministrator, r.branchHandler.Activate)
	branch.Patch("/deactive", authenticate, requireAdministrator, r.branchHandler.Deactivate)

	api.Get("/company", r.companyHandler.GetCompany)
	company := api.Group("/company")
	company.Get("/list", r.companyHandler.ListCompanies)
	company.Patch("/add-details", authenticate, requireAdministrator, r.companyHandler.AddDetails)
	company.Patch("/update-company", authenticate, requireAdministrator, r.companyHandler.UpdateCompany)
	company.Patch("/active", authenticate, requireAdministrator, r.companyHandler.Activate)
	company.Patch("/deactive", authenticate, requireAdministrator, r.companyHandler.Deactivate)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: !r.opts.Production,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				requestid.FromContext(c),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     "default-src 'none'; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-site",
		XDNSPrefetchControl:       "off",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.opts.AllowedOrigins,
		AllowMethods:     r.opts.AllowedMethods,
		AllowHeaders:     r.opts.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: r.opts.AllowCredentials && !containsWildcard(r.opts.AllowedOrigins),
		MaxAge:           r.opts.CORSMaxAge,
	}))

	if r.opts.Compression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	if r.opts.AccessLog != nil {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Stream:     r.opts.AccessLog,
			Next: func(c fiber.Ctx) bool {
				return c.Path() == apiPrefix+"/health" || c.Path() == r.opts.MetricsPath
			},
		}))
	}

	r.app.Use(middleware.Metrics())
}

func (r *FiberRouter) rateLimiter(max int, next func(c fiber.Ctx) bool) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: r.opts.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Error:   "Too many requests. Please try again later.",
				Code:    "RATE_LIMIT_EXCEEDED",
			})
		},
		Next: next,
	})
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: r.opts.Production})
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx expires
func (r *FiberRouter) Shutdown(ctx context.Context) error {
	return r.app.ShutdownWithContext(ctx)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	checks := make(fiber.Map, len(r.opts.HealthChecks))
	healthy := true
	for name, check := range r.opts.HealthChecks {
		if err := check(ctx); err != nil {
			log.Printf("Health check %s failed: %v", name, err)
			checks[name] = "down"
			healthy = false
			continue
		}
		checks[name] = "up"
	}

	data := fiber.Map{
		"status":    "ok",
		"timestamp": utils.UTCNow().Unix(),
		"version":   r.opts.Version,
		"service":   "shiten-api",
		"checks":    checks,
	}

	if !healthy {
		data["status"] = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Error:   "Service is unhealthy",
			Code:    "UNHEALTHY",
			Details: data,
		})
	}

	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data:    data,
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Error:   "The requested resource was not found",
		Code:    "NOT_FOUND",
		Details: fiber.Map{
			"path":       c.Path(),
			"method":     c.Method(),
			"request_id": requestid.FromContext(c),
		},
	})
}

// errorHandler is the last stop for errors no handler turned into a response
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	} else if !r.opts.Production {
		message = err.Error()
	}

	log.Printf("Error %d: %v", code, err)

	var errorCode string
	switch code {
	case fiber.StatusInternalServerError:
		errorCode = "INTERNAL_ERROR"
	case fiber.StatusNotFound:
		errorCode = "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		errorCode = "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		errorCode = "REQUEST_TOO_LARGE"
	default:
		errorCode = "REQUEST_ERROR"
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Error:   message,
		Code:    errorCode,
		Details: fiber.Map{
			"timestamp":  utils.UTCNow().Unix(),
			"request_id": requestid.FromContext(c),
		},
	})
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if strings.Contains(origin, "*") {
			return true
		}
	}
	return false
}

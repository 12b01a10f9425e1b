// Package main provides the main entry point for the Shiten branch account and session service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/Shiten/app/handlers"
	"github.com/amirphl/Shiten/app/middleware"
	"github.com/amirphl/Shiten/app/router"
	"github.com/amirphl/Shiten/app/scheduler"
	"github.com/amirphl/Shiten/app/services"
	businessflow "github.com/amirphl/Shiten/business_flow"
	"github.com/amirphl/Shiten/config"
	"github.com/amirphl/Shiten/migrations"
	"github.com/amirphl/Shiten/repository"
	"github.com/amirphl/Shiten/utils"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	db        *gorm.DB
	cache     *redis.Client
	stopFuncs []func()
}

func main() {
	log.Println("Starting Shiten application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logOutput := initializeLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg, logOutput)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serverErr <- app.router.Start(address)
	}()

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		log.Printf("Received %s, shutting down gracefully...", sig)
	case err := <-serverErr:
		log.Printf("Server stopped unexpectedly: %v", err)
	}

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	app.close()
	log.Println("Server stopped")
}

// initializeLogging points the standard logger at stdout, a rotating file, or both
func initializeLogging(cfg config.LoggingConfig) io.Writer {
	var out io.Writer = os.Stdout

	if cfg.Output == "file" || cfg.Output == "both" {
		file := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		if cfg.Output == "file" {
			out = file
		} else {
			out = io.MultiWriter(os.Stdout, file)
		}
	}

	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)
	return out
}

// initializeDatabase runs pending migrations and opens the connection pool
func initializeDatabase(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	if cfg.AutoMigrate {
		if err := migrations.Run(cfg.MigrationURL(), migrations.DirectionUp); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Println("Database migrations applied")
	}

	gormLevel := gormlogger.Warn
	if logLevel == "debug" {
		gormLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormLevel),
		NowFunc: utils.UTCNow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the cache client and verifies connectivity. It returns nil when caching is off.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.RedisDB != 0 {
		opt.DB = cfg.RedisDB
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db %d)", opt.DB)
	return rc, nil
}

func initializeApplication(cfg *config.ProductionConfig, logOutput io.Writer) (*Application, error) {
	db, err := initializeDatabase(cfg.Database, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	cache, err := initializeCache(cfg.Cache)
	if err != nil {
		// the cache only backs the login throttle, so the service runs without it
		log.Printf("Cache disabled: %v", err)
		cache = nil
	}

	// Repositories
	companyRepo := repository.NewCompanyRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	branchRepo := repository.NewBranchRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	transactor := repository.NewTransactor(db)

	// Services
	passwordService := services.NewBcryptPasswordService(cfg.Security.BcryptCost)
	tokenService, err := services.NewSessionTokenService(utils.SessionTokenBytes)
	if err != nil {
		return nil, err
	}
	throttle := services.NewLoginThrottle(cache, cfg.Cache.RedisPrefix, cfg.Security.LoginMaxAttempts, cfg.Security.LoginLockout)

	// Business flows
	sessionFlow := businessflow.NewSessionFlow(sessionRepo, branchRepo, auditRepo, tokenService, cfg.Session.TTL, utils.UTCNow)
	signupFlow := businessflow.NewSignupFlow(companyRepo, accountRepo, branchRepo, auditRepo, passwordService, transactor)
	loginFlow := businessflow.NewLoginFlow(branchRepo, companyRepo, accountRepo, auditRepo, passwordService, throttle, sessionFlow)
	branchFlow := businessflow.NewBranchFlow(branchRepo, accountRepo, sessionRepo, auditRepo, passwordService, transactor, utils.UTCNow)
	companyFlow := businessflow.NewCompanyFlow(companyRepo, auditRepo)

	// Handlers
	cookie := middleware.NewSessionCookie(cfg.Session)
	handlerOpts := handlers.Options{
		Production:     cfg.Deployment.IsProduction(),
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	authHandler := handlers.NewAuthHandler(signupFlow, loginFlow, cookie, handlerOpts)
	branchHandler := handlers.NewBranchHandler(branchFlow, handlerOpts)
	companyHandler := handlers.NewCompanyHandler(companyFlow, handlerOpts)

	routerOpts := router.OptionsFromConfig(cfg)
	routerOpts.AccessLog = logOutput
	routerOpts.HealthChecks = map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	var stopFuncs []func()

	if cache != nil {
		monitor := scheduler.NewCacheHealthMonitor(cache, cfg.Cache.HealthInterval, log.Default())
		stopFuncs = append(stopFuncs, monitor.Start(context.Background()))
		routerOpts.HealthChecks["cache"] = monitor.Check
	}

	if cfg.Session.CleanupEnabled {
		cleanup := scheduler.NewSessionCleanup(sessionFlow, cfg.Session.CleanupInterval, log.Default())
		stopFuncs = append(stopFuncs, cleanup.Start(context.Background()))
	}

	appRouter := router.NewFiberRouter(
		authHandler,
		branchHandler,
		companyHandler,
		middleware.NewSessionMiddleware(sessionFlow, cookie),
		routerOpts,
	)

	return &Application{
		router:    appRouter,
		config:    cfg,
		db:        db,
		cache:     cache,
		stopFuncs: stopFuncs,
	}, nil
}

func (a *Application) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Printf("Error closing redis: %v", err)
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
}

// Package main provides the main entry point for the Spot Dispatch assignment notification service
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bf1digital/spot-dispatch/app/handlers"
	"github.com/bf1digital/spot-dispatch/app/middleware"
	"github.com/bf1digital/spot-dispatch/app/router"
	"github.com/bf1digital/spot-dispatch/app/scheduler"
	"github.com/bf1digital/spot-dispatch/app/services"
	businessflow "github.com/bf1digital/spot-dispatch/business_flow"
	"github.com/bf1digital/spot-dispatch/config"
	"github.com/bf1digital/spot-dispatch/models"
	"github.com/bf1digital/spot-dispatch/pkg/logx"
	"github.com/bf1digital/spot-dispatch/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Spot Dispatch application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// migrateDatabase applies the schema for all persistent models
func migrateDatabase(db *gorm.DB) error {
	return models.AutoMigrate(db)
}

// initializeCache initializes the Redis client and verifies connectivity.
// Redis is only used for the scheduler replica lease, so a disabled cache
// just means every replica runs the loop.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// initializeChannelServices builds the outbound channel adapters, swapping
// in mocks when a provider is configured as "mock"
func initializeChannelServices(cfg *config.ProductionConfig) (services.SMSService, services.WhatsAppService, services.EmailService, services.DocumentRenderer) {
	var smsService services.SMSService
	switch cfg.SMS.Provider {
	case "mock":
		smsService = services.NewMockSMSService()
	default:
		smsService = services.NewSMSService(&cfg.SMS)
	}

	whatsappService := services.NewWhatsAppService(&cfg.WhatsApp)
	emailService := services.NewEmailService(&cfg.Email)
	renderer := services.NewDocumentRenderer(&cfg.Renderer)

	return smsService, whatsappService, emailService, renderer
}

// startMetricsServer exposes the Prometheus registry on its own port
func startMetricsServer(cfg config.MetricsConfig) func() {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	go func() {
		log.Printf("Metrics server listening on :%d%s", cfg.Port, cfg.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server failed: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := migrateDatabase(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		// The lease is an optimization, not a correctness requirement.
		log.Printf("Redis unavailable, scheduler lease disabled: %v", err)
		rc = nil
	}

	// Initialize repositories
	assignmentRepo := repository.NewAssignmentRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	logRepo := repository.NewAssignmentLogRepository(db)

	// Initialize services
	smsService, whatsappService, emailService, renderer := initializeChannelServices(cfg)

	tokenService, err := services.NewTokenService(&cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize flows
	notificationFlow := businessflow.NewNotificationFlow(
		assignmentRepo,
		campaignRepo,
		attemptRepo,
		logRepo,
		emailService,
		whatsappService,
		renderer,
		&cfg.Site,
		db,
	)

	assignmentFlow := businessflow.NewAssignmentFlow(
		assignmentRepo,
		campaignRepo,
		attemptRepo,
		logRepo,
		notificationFlow,
		emailService,
		renderer,
		&cfg.Site,
		db,
	)

	// Initialize handlers
	assignmentHandler := handlers.NewAssignmentHandler(assignmentFlow)
	notificationHandler := handlers.NewNotificationHandler(notificationFlow, renderer, &cfg.Site)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		assignmentHandler,
		notificationHandler,
		authMiddleware,
		cfg.Server.AllowedOrigins,
	)

	if cfg.Scheduler.Enabled {
		schedulerLogger := logx.New(&cfg.Logging, "scheduler ")
		sched := scheduler.NewReminderScheduler(
			campaignRepo,
			attemptRepo,
			logRepo,
			assignmentRepo,
			smsService,
			rc,
			schedulerLogger,
			&cfg.Site,
			&cfg.Scheduler,
			cfg.SMS.Provider,
		)
		stopScheduler := sched.Start(context.Background())
		stopFuncs = append(stopFuncs, stopScheduler)
	}

	if cfg.Metrics.Enabled {
		stopMetrics := startMetricsServer(cfg.Metrics)
		stopFuncs = append(stopFuncs, stopMetrics)
	}

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}

// Package main provides the main entry point for the realty workflow API
package main

//go:generate swag init -g main.go -o docs

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/amirphl/realty-workflow/app/handlers"
	"github.com/amirphl/realty-workflow/app/middleware"
	"github.com/amirphl/realty-workflow/app/router"
	"github.com/amirphl/realty-workflow/app/scheduler"
	"github.com/amirphl/realty-workflow/app/services"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
	"github.com/amirphl/realty-workflow/config"
	"github.com/amirphl/realty-workflow/logger"
	"github.com/amirphl/realty-workflow/repository"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	logger    *zap.Logger
	stopFuncs []func()
	closers   []func() error
}

// @title Realty Workflow API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey AdminSession
// @in cookie
// @name admin_session
// @securityDefinitions.apikey InstitutionalSession
// @in cookie
// @name institutional_session
func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, logger.FileOptions{
		Path:       cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	defer func() { _ = log.Sync() }()

	log.Info("Starting realty workflow application", zap.String("environment", cfg.Server.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := initializeApplication(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-sigChan
	log.Info("Shutting down gracefully")

	// Stop background workers before the connections they use
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
	}

	for _, closeFn := range app.closers {
		if err := closeFn(); err != nil {
			log.Warn("Error closing resource", zap.Error(err))
		}
	}

	log.Info("Server stopped")
}

// postgresDSN builds the key/value DSN shared by gorm and the LISTEN connection
func postgresDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
}

// initializeDatabase opens the configured driver with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(postgresDSN(cfg))
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormCfg := &gorm.Config{}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(zap.NewStdLog(log), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

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

	if cfg.AutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	log.Info("Database connection established",
		zap.String("driver", cfg.Driver),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)
	return db, nil
}

// initializeCache connects to redis. A nil client means redis-backed features fall back to memory or are disabled.
func initializeCache(cfg config.CacheConfig, log *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis connection established", zap.Int("db", cfg.RedisDB))
	return rc, nil
}

// startCacheHealthMonitor periodically pings redis to surface connectivity issues in the logs
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, log *zap.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warn("Redis healthcheck failed", zap.Error(err))
				}
				c()
			}
		}
	}()
	return cancel
}

func initializeNotificationService(ctx context.Context, cfg *config.ProductionConfig, log *zap.Logger) (services.NotificationService, error) {
	smsProvider, err := services.NewSMSProvider(ctx, &cfg.SMS, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sms provider: %w", err)
	}
	emailProvider, err := services.NewEmailProvider(ctx, cfg.Email, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}
	return services.NewNotificationService(smsProvider, emailProvider), nil
}

func initializeEventPublisher(cfg config.QueueConfig, log *zap.Logger) (services.EventPublisher, error) {
	if !cfg.Enabled {
		return services.NewLogEventPublisher(log), nil
	}
	p, err := services.NewRabbitMQPublisher(cfg.URL, cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	log.Info("Event publisher connected", zap.String("exchange", cfg.Exchange))
	return p, nil
}

// initializeApplication wires repositories, services, flows, handlers and background workers
func initializeApplication(ctx context.Context, cfg *config.ProductionConfig, log *zap.Logger) (*Application, error) {
	var stopFuncs []func()
	var closers []func() error

	db, err := initializeDatabase(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, sqlDB.Close)
	}

	rc, err := initializeCache(cfg.Cache, log)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(ctx, rc, 30*time.Second, log))
		closers = append(closers, rc.Close)
	}

	// Repositories
	adminRepo := repository.NewAdminRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	partnerRepo := repository.NewPartnerRepository(db)
	userRepo := repository.NewUserRepository(db)
	investorRepo := repository.NewInstitutionalInvestorRepository(db)
	sessionRepo := repository.NewInstitutionalSessionRepository(db)
	bidRepo := repository.NewInstitutionalBidRepository(db)
	commRepo := repository.NewCommunicationRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	subscriptionRepo := repository.NewForeclosureSubscriptionRepository(db)
	bidRequestRepo := repository.NewBidServiceRequestRepository(db)

	// Services
	notificationService, err := initializeNotificationService(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	publisher, err := initializeEventPublisher(cfg.Queue, log)
	if err != nil {
		return nil, err
	}
	closers = append(closers, publisher.Close)

	var revocations services.RevocationStore = services.NewMemoryRevocationStore()
	var guard services.VerificationGuard = services.NewNoopVerificationGuard()
	var adminSessions services.AdminSessionStore = services.NewMemoryAdminSessionStore()
	if rc != nil {
		revocations = services.NewRedisRevocationStore(rc, cfg.Cache.RedisPrefix)
		guard = services.NewRedisVerificationGuard(rc, cfg.Cache.RedisPrefix,
			cfg.Verification.ResendCooldown, cfg.Verification.MaxAttempts, cfg.Verification.AttemptWindow)
		adminSessions = services.NewRedisAdminSessionStore(rc, cfg.Cache.RedisPrefix)
	} else {
		log.Warn("Redis disabled: token revocation and admin sessions are process-local, verification rate limits are off")
	}

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
		revocations,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Info("Token service initialized", zap.String("issuer", cfg.JWT.Issuer), zap.String("audience", cfg.JWT.Audience))

	var captchaSvc services.CaptchaService
	if cfg.Admin.CaptchaEnabled {
		captchaSvc, err = services.NewCaptchaServiceRotate(2*time.Minute, 15, 300)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize captcha: %w", err)
		}
	}

	// Flows
	bcryptCost := cfg.Security.BcryptCost
	verificationFlow := businessflow.NewVerificationFlow(
		leadRepo,
		partnerRepo,
		userRepo,
		auditRepo,
		notificationService,
		guard,
		cfg.Server.PublicBaseURL,
		log,
	)
	leadFlow := businessflow.NewLeadFlow(leadRepo, investorRepo, commRepo, auditRepo, verificationFlow, publisher, log, db)
	partnerFlow := businessflow.NewPartnerFlow(partnerRepo, auditRepo, tokenService, verificationFlow, bcryptCost)
	userFlow := businessflow.NewUserFlow(userRepo, auditRepo, tokenService, verificationFlow, bcryptCost)
	approvalFlow := businessflow.NewApprovalFlow(partnerRepo, investorRepo, commRepo, auditRepo, publisher, bcryptCost, log, db)
	institutionalFlow := businessflow.NewInstitutionalAuthFlow(investorRepo, sessionRepo, bidRepo, auditRepo, cfg.Security.InstitutionalSessionTTL)
	adminAuthFlow := businessflow.NewAdminAuthFlow(adminRepo, auditRepo, adminSessions, captchaSvc, cfg.Admin.CaptchaEnabled, cfg.Admin.SessionTTL, bcryptCost)
	recorderFlow := businessflow.NewRecorderFlow(leadRepo, offerRepo, subscriptionRepo, bidRequestRepo, commRepo, auditRepo, publisher, log, db)

	if cfg.Admin.BootstrapUsername != "" {
		created, err := adminAuthFlow.EnsureBootstrapAdmin(ctx, cfg.Admin.BootstrapUsername, cfg.Admin.BootstrapPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
		}
		if created {
			log.Info("Bootstrap admin created", zap.String("username", cfg.Admin.BootstrapUsername))
		}
	}

	// Handlers
	cookieSecure := cfg.Security.SessionCookieSecure || cfg.Server.IsProduction()
	h := router.Handlers{
		Lead:          handlers.NewLeadHandler(leadFlow, log),
		Verification:  handlers.NewVerificationHandler(verificationFlow, log),
		Partner:       handlers.NewPartnerHandler(partnerFlow, log),
		User:          handlers.NewUserHandler(userFlow, log),
		Institutional: handlers.NewInstitutionalHandler(institutionalFlow, cookieSecure, log),
		Admin:         handlers.NewAdminHandler(adminAuthFlow, approvalFlow, cookieSecure, log),
		Recorder:      handlers.NewRecorderHandler(recorderFlow, log),
	}

	authMiddleware := middleware.NewAuthMiddleware(tokenService, institutionalFlow, adminAuthFlow)
	appRouter := router.NewFiberRouter(h, authMiddleware, cfg, rc, log)

	if cfg.Outbox.Enabled {
		listenDSN := ""
		if cfg.Database.Driver == "postgres" {
			listenDSN = postgresDSN(cfg.Database)
		}
		dispatcher := scheduler.NewOutboxDispatcher(commRepo, notificationService, publisher, cfg.Outbox, listenDSN, log)
		stopFuncs = append(stopFuncs, dispatcher.Start(ctx))
		log.Info("Outbox dispatcher started", zap.Duration("poll_interval", cfg.Outbox.PollInterval))
	}

	return &Application{
		router:    appRouter,
		config:    cfg,
		logger:    log,
		stopFuncs: stopFuncs,
		closers:   closers,
	}, nil
}

package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ecocash/internal/app"
	"ecocash/internal/config"
	"ecocash/internal/handler"
	internalRedis "ecocash/internal/redis"
	"ecocash/internal/repository/postgres"
	"ecocash/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cfg.EcoCash.APIKey == "" {
		log.Println("ECOCASH_API_KEY is not set; provider calls will be rejected")
	}

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	if cfg.Server.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		log.Println("Database schema applied")
	}

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	publisher, err := app.NewEventPublisher(ctx, cfg.AWS)
	if err != nil {
		log.Fatalf("failed to initialize payment event publisher: %v", err)
	}
	if publisher == nil {
		log.Println("PAYMENT_EVENTS_QUEUE_URL not set; payment events will only be logged")
	}

	// Wire dependencies.
	server := wireServer(db, redisClient, publisher, nrApp, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s (sandbox=%t)", cfg.Server.Port, cfg.EcoCash.Sandbox)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, publisher service.MessagePublisher, nrApp *newrelic.Application, cfg *config.Config) *http.Server {
	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	orderRepo := postgres.NewOrderRepository(db)
	attemptRepo := postgres.NewPaymentAttemptRepository(db)
	transactor := postgres.NewTransactor(db)

	gatewayCfg := service.GatewayConfig{
		Enabled:          cfg.EcoCash.Enabled,
		Title:            cfg.EcoCash.Title,
		Sandbox:          cfg.EcoCash.Sandbox,
		Currency:         cfg.EcoCash.Currency,
		VerifyCallbacks:  cfg.EcoCash.VerifyCallbacks,
		WaitingURL:       cfg.EcoCash.WaitingURL,
		OrderReceivedURL: cfg.EcoCash.OrderReceivedURL,
		OrderHistoryURL:  cfg.EcoCash.OrderHistoryURL,
		Poll: service.PollSettings{
			InitialDelay: cfg.Poll.InitialDelay,
			Interval:     cfg.Poll.Interval,
			MaxDuration:  cfg.Poll.MaxDuration,
		},
	}

	// Initialize services.
	provider := app.NewEcoCashClient(cfg.EcoCash, nrApp)
	notificationService := service.NewNotificationService(publisher)
	initiatorService := service.NewInitiatorService(gatewayCfg, orderRepo, transactor, provider, service.NewReferenceGenerator())
	reconcilerService := service.NewReconcilerService(
		gatewayCfg, orderRepo, attemptRepo, transactor, provider, lockStore, cacheStore, notificationService,
	)

	// Initialize handlers.
	paymentHandler := handler.NewPaymentHandler(gatewayCfg, initiatorService, reconcilerService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		PaymentHandler: paymentHandler,
		CallbackPath:   cfg.EcoCash.CallbackPath,
		NewRelicApp:    nrApp,

		IdempotencyStore: internalRedis.NewIdempotencyStore(redisClient),
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

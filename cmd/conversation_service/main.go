package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/adapters/eventbus"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/adapters/push"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/adapters/whatsapp"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/app"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/repository/memory"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/repository/postgres"
	"github.com/MercyNyamusi/webhook/internal/platform/config"
	"github.com/MercyNyamusi/webhook/internal/platform/database"
	"github.com/MercyNyamusi/webhook/internal/platform/logger"
	"github.com/MercyNyamusi/webhook/internal/platform/messagebroker"
	httptransport "github.com/MercyNyamusi/webhook/internal/public_api_service/transport/http"
)

const (
	serviceName     = "conversation_service"
	shutdownTimeout = 15 * time.Second
)

type repositories struct {
	businesses domain.BusinessRepository
	customers  domain.CustomerRepository
	vendors    domain.VendorRepository
	sessions   domain.SessionRepository
	orders     domain.OrderRepository
}

// eventBus is what the engine publishes to and, in-process, what the
// notification consumer subscribes to.
type eventBus interface {
	app.EventPublisher
	app.EventSubscriber
}

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("Conversation service starting...",
		"http_port", cfg.ConversationServicePort,
		"metrics_port", cfg.ConversationServiceMetricsPort,
		"store_driver", cfg.StoreDriver,
		"event_bus", cfg.EventBus,
	)

	// --- Storage ---
	var repos repositories
	switch cfg.StoreDriver {
	case "memory":
		store := memory.NewStore()
		if cfg.MemorySeedFile == "" {
			// Webhooks will all answer 404 until businesses exist.
			appLogger.Warn("In-memory store has no seed file; no businesses or vendors are known")
		} else {
			seed, err := memory.LoadSeed(cfg.MemorySeedFile)
			if err != nil {
				appLogger.Error("Failed to load memory seed", "error", err, "path", cfg.MemorySeedFile)
				os.Exit(1)
			}
			if err := store.ApplySeed(seed, time.Now()); err != nil {
				appLogger.Error("Invalid memory seed", "error", err, "path", cfg.MemorySeedFile)
				os.Exit(1)
			}
			appLogger.Info("Memory store seeded", "vendors", len(seed.Vendors), "businesses", len(seed.Businesses))
		}
		repos = repositories{store.Businesses(), store.Customers(), store.Vendors(), store.Sessions(), store.Orders()}
		appLogger.Warn("Using in-memory store; data is lost on restart")
	default:
		dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN, appLogger)
		if err != nil {
			appLogger.Error("Failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()
		appLogger.Info("Successfully connected to PostgreSQL")

		if cfg.AutoMigrate {
			if err := postgres.Migrate(mainCtx, dbPool, appLogger); err != nil {
				appLogger.Error("Failed to apply schema", "error", err)
				os.Exit(1)
			}
		}
		repos = repositories{
			businesses: postgres.NewPgBusinessRepository(dbPool, appLogger),
			customers:  postgres.NewPgCustomerRepository(dbPool, appLogger),
			vendors:    postgres.NewPgVendorRepository(dbPool, appLogger),
			sessions:   postgres.NewPgSessionRepository(dbPool, appLogger),
			orders:     postgres.NewPgOrderRepository(dbPool, appLogger),
		}
	}

	// --- Event bus ---
	var bus eventBus
	switch cfg.EventBus {
	case "nats":
		natsClient, err := messagebroker.NewNATSClient(cfg.NATSURL, appLogger, serviceName)
		if err != nil {
			appLogger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		appLogger.Info("Successfully connected to NATS")
		bus = eventbus.NewNATSBus(natsClient, appLogger)
	default:
		bus = eventbus.NewInProcessBus(appLogger)
	}

	// --- Engine ---
	provider := whatsapp.NewCloudAPIClient(appLogger,
		cfg.WhatsAppAPIBaseURL, cfg.WhatsAppPhoneNumberID, cfg.WhatsAppAccessToken,
		cfg.WhatsAppSendTimeout(), nil)

	engine := app.NewEngine(app.Dependencies{
		Businesses: repos.businesses,
		Customers:  repos.customers,
		Vendors:    repos.vendors,
		Sessions:   repos.sessions,
		Orders:     repos.orders,
		Provider:   provider,
		Events:     bus,
		Logger:     appLogger,
	}, app.Policy{
		ResetUnreadOnHandled:     cfg.ResetUnreadOnHandled,
		PendingStatusTTL:         cfg.PendingStatusTTL(),
		PendingStatusMaxAttempts: cfg.PendingStatusMaxAttempts,
		PendingStatusMaxEntries:  cfg.PendingStatusMaxEntries,
	})

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		return engine.Reconciler.RunPendingSweeper(groupCtx, cfg.PendingStatusRetryInterval())
	})

	if cfg.EventBus != "nats" {
		var pushSender app.PushSender = push.NewLogSender(appLogger)
		if cfg.FCMCredentialsFile != "" {
			fcm, err := push.NewFCMSender(mainCtx, cfg.FCMCredentialsFile, cfg.FCMProjectID, appLogger)
			if err != nil {
				appLogger.Error("Failed to initialize FCM sender", "error", err)
				os.Exit(1)
			}
			pushSender = fcm
		}
		dispatcher := app.NewNotificationDispatcher(repos.businesses, repos.vendors, repos.customers, pushSender, appLogger)
		consumer := app.NewNotificationConsumer(bus, dispatcher, appLogger)
		g.Go(func() error {
			return consumer.StartConsuming(groupCtx, app.NotificationQueueGroup)
		})
	}

	// --- HTTP API ---
	router := httptransport.NewRouter(
		httptransport.RouterConfig{JWTSecret: cfg.JWTAccessSecret, RequestTimeout: cfg.HTTPRequestTimeout()},
		httptransport.NewWebhookHandler(engine, cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret, appLogger),
		httptransport.NewOperatorHandler(engine, validator.New(), appLogger),
		appLogger,
	)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ConversationServicePort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTPRequestTimeout() + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	g.Go(func() error {
		appLogger.Info("HTTP server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server ListenAndServe error", "error", err)
			return err
		}
		appLogger.Info("HTTP server shut down gracefully.")
		return nil
	})

	// --- Metrics ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ConversationServiceMetricsPort),
		Handler: metricsMux,
	}
	g.Go(func() error {
		appLogger.Info("Metrics HTTP server starting", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics HTTP server ListenAndServe error", "error", err)
			return err
		}
		return nil
	})

	// --- Graceful Shutdown Handling ---
	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)

	g.Go(func() error {
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
		case <-groupCtx.Done():
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Initiating graceful shutdown of servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var shutdownErrors error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("HTTP server graceful shutdown failed", "error", err)
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("http shutdown: %w", err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics HTTP server graceful shutdown failed", "error", err)
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("metrics http shutdown: %w", err))
		}
		return shutdownErrors
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Conversation service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Conversation service shut down.")
}

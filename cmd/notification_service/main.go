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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/adapters/eventbus"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/adapters/push"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/app"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/repository/postgres"
	"github.com/MercyNyamusi/webhook/internal/platform/config"
	"github.com/MercyNyamusi/webhook/internal/platform/database"
	"github.com/MercyNyamusi/webhook/internal/platform/logger"
	"github.com/MercyNyamusi/webhook/internal/platform/messagebroker"
)

const (
	serviceName     = "notification_service"
	shutdownTimeout = 10 * time.Second
)

// notification_service consumes committed-message and order events from NATS
// and pushes them to vendor devices. It is only needed when the gateway runs
// with EVENT_BUS=nats.
func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("Notification service starting...", "metrics_port", cfg.NotificationServiceMetricsPort)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSURL, appLogger, serviceName)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	var pushSender app.PushSender = push.NewLogSender(appLogger)
	if cfg.FCMCredentialsFile != "" {
		fcm, err := push.NewFCMSender(mainCtx, cfg.FCMCredentialsFile, cfg.FCMProjectID, appLogger)
		if err != nil {
			appLogger.Error("Failed to initialize FCM sender", "error", err)
			os.Exit(1)
		}
		pushSender = fcm
	} else {
		appLogger.Warn("FCM credentials not configured; notifications are only logged")
	}

	dispatcher := app.NewNotificationDispatcher(
		postgres.NewPgBusinessRepository(dbPool, appLogger),
		postgres.NewPgVendorRepository(dbPool, appLogger),
		postgres.NewPgCustomerRepository(dbPool, appLogger),
		pushSender,
		appLogger,
	)
	consumer := app.NewNotificationConsumer(eventbus.NewNATSBus(natsClient, appLogger), dispatcher, appLogger)

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		return consumer.StartConsuming(groupCtx, app.NotificationQueueGroup)
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.NotificationServiceMetricsPort),
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Notification service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Notification service shut down.")
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreasstove999/ecommerce-events/internal/config"
	"github.com/andreasstove999/ecommerce-events/internal/db"
	"github.com/andreasstove999/ecommerce-events/internal/events"
	"github.com/andreasstove999/ecommerce-events/internal/httpapi"
	"github.com/andreasstove999/ecommerce-events/internal/order"
	"github.com/andreasstove999/ecommerce-events/internal/orderevents"
)

func main() {
	cfg := config.Load("order-service")
	logger := log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- DB ---
	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.Fatalf("db migrate: %v", err)
		}
	}

	repo := order.NewPostgresRepository(pool)

	// --- Kafka ---
	pub := events.NewPublisher(events.PublisherConfig{
		Brokers:             cfg.KafkaBrokers,
		ClientID:            cfg.ClientID,
		MaxRetries:          cfg.ConnectMaxRetries,
		BaseDelay:           cfg.ConnectBaseDelay,
		GracefulDegradation: cfg.GracefulDegradation,
	}, logger)
	if err := pub.Start(ctx, cfg.ConnectTimeout); err != nil {
		logger.Fatalf("start publisher: %v", err)
	}
	defer pub.Stop()

	lifecycle := orderevents.NewLifecyclePublisher(pub, logger)

	sub := events.NewSubscriber(events.SubscriberConfig{
		Brokers:             cfg.KafkaBrokers,
		GroupID:             cfg.KafkaGroupID,
		ClientID:            cfg.ClientID,
		MaxRetries:          cfg.ConnectMaxRetries,
		BaseDelay:           cfg.ConnectBaseDelay,
		GracefulDegradation: cfg.GracefulDegradation,
	}, logger)
	if err := sub.Start(ctx, cfg.ConnectTimeout); err != nil {
		logger.Fatalf("start subscriber: %v", err)
	}
	defer sub.Stop()

	subscriptions := []struct {
		topic     string
		eventType string
		handler   events.HandlerFunc
	}{
		{events.TopicPaymentEvents, events.EventTypePaymentProcessed, orderevents.PaymentProcessedHandler(repo, lifecycle, logger)},
		{events.TopicPaymentEvents, events.EventTypePaymentFailed, orderevents.PaymentFailedHandler(repo, lifecycle, logger)},
		{events.TopicPaymentEvents, events.EventTypeRefundProcessed, orderevents.RefundProcessedHandler(repo, lifecycle, logger)},
		{events.TopicProductEvents, events.EventTypeProductUpdated, orderevents.ProductUpdatedHandler(repo, logger)},
		{events.TopicProductEvents, events.EventTypeProductDeleted, orderevents.ProductDeletedHandler(repo, logger)},
	}
	for _, s := range subscriptions {
		if err := sub.Subscribe(s.topic, s.eventType, s.handler); err != nil {
			logger.Fatalf("subscribe %s: %v", s.eventType, err)
		}
	}

	// --- HTTP ---
	h := httpapi.NewOrderHandler(repo, lifecycle, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewOrderRouter(h, pub),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("shutdown signal: %s", sig)
	case err := <-errCh:
		logger.Printf("fatal error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	_ = httpServer.Shutdown(shutdownCtx)
	sub.Stop()
	cancel()

	logger.Printf("shutdown complete")
}

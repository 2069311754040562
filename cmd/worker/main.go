package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/storefront/internal/customers"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const (
	serviceName    = "storefront-worker"
	serviceVersion = "0.1.0"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	emailServiceURL := os.Getenv("EMAIL_SERVICE_URL")
	if emailServiceURL == "" {
		logger.Error("EMAIL_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := telemetry.OpenDB(ctx, postgresURL, telemetry.DefaultPoolConfig())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	customerRepo := customers.NewCustomerRepository(db)
	provisioner := customers.NewProvisioner(customerRepo, logger)

	httpClient := telemetry.NewHTTPClient(&http.Client{Timeout: 10 * time.Second})
	notifier := notify.NewOrderNotifier(customerRepo, emailServiceURL, httpClient, logger)

	brokers := strings.Split(kafkaBrokers, ",")
	userConsumer := messaging.NewConsumer(brokers, domain.TopicUserCreated, "customer-provisioner",
		messaging.WithRetry(5, time.Second), messaging.WithLogger(logger))
	defer func() { _ = userConsumer.Close() }()

	orderConsumer := messaging.NewConsumer(brokers, domain.TopicOrderPlaced, "order-notifier",
		messaging.WithRetry(3, time.Second), messaging.WithLogger(logger))
	defer func() { _ = orderConsumer.Close() }()

	logger.Info("starting storefront worker", "brokers", brokers)

	// A consumer that gives up stops the other one too, so the process
	// exits and is restarted from the last committed offsets.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return userConsumer.Consume(gctx, provisioner.Handle) })
	g.Go(func() error { return orderConsumer.Consume(gctx, notifier.Handle) })

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			logger.Info("consumers stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}

// Worker consumes domain events from the job queue, writes them to the audit trail and forwards them
// to the OpenTelemetry collector. QUEUE_BACKEND must be redis or kafka; GRPC_ADDR is unused.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"saas-core/backend/internal/audit"
	auditrepo "saas-core/backend/internal/audit/repository"
	"saas-core/backend/internal/config"
	"saas-core/backend/internal/db"
	"saas-core/backend/internal/jobqueue"
	"saas-core/backend/internal/platform/logging"
	telemetryotel "saas-core/backend/internal/telemetry/otel"
	"saas-core/backend/internal/tenancy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("worker")

	if err := run(cfg, logger); err != nil {
		logger.Fatal("worker exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		ServiceName: cfg.OTelServiceName + "-worker",
		SampleRatio: cfg.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	conn, err := db.OpenContext(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer conn.Close()

	consumer, closeConsumer, err := openConsumer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeConsumer()

	// audit rows are written under the admin bypass, so the runner is always enabled here
	runner := tenancy.NewRunner(db.SQLBeginner{DB: conn}, nil, true, logger)
	persister := audit.NewPersister(auditrepo.NewPostgresRepository(conn), runner, logger)
	exporter := telemetryotel.NewEventExporter(providers.LoggerProvider, logger)

	w := jobqueue.NewWorker(consumer, logger)
	w.Handle("", jobqueue.Chain(persister.HandleJob, exporter.HandleJob))

	logger.Info("consuming jobs", zap.String("backend", cfg.QueueBackend))
	if err := w.Run(ctx); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

func openConsumer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (jobqueue.Consumer, func(), error) {
	switch cfg.QueueBackend {
	case config.QueueBackendRedis:
		client, err := jobqueue.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		q := jobqueue.NewRedisQueue(client, cfg.JobQueueKey, 2*time.Second)
		n, err := q.Recover(ctx)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("recover in-flight jobs: %w", err)
		}
		if n > 0 {
			logger.Info("requeued jobs left in flight by a previous worker", zap.Int("jobs", n))
		}
		return q, func() { _ = client.Close() }, nil
	case config.QueueBackendKafka:
		c := jobqueue.NewKafkaConsumer(cfg.KafkaBrokersList(), cfg.JobQueueTopic, cfg.KafkaGroupID)
		return c, func() { _ = c.Close() }, nil
	default:
		return nil, nil, errors.New("worker: QUEUE_BACKEND must be redis or kafka")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/salon-api/internal/config"
	"github.com/jwalitptl/salon-api/internal/handler/health"
	httpmetrics "github.com/jwalitptl/salon-api/internal/handler/prometheus"
	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository/postgres"
	auditService "github.com/jwalitptl/salon-api/internal/service/audit"
	internalworker "github.com/jwalitptl/salon-api/internal/worker"
	"github.com/jwalitptl/salon-api/pkg/circuitbreaker"
	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/messaging"
	"github.com/jwalitptl/salon-api/pkg/messaging/amqp"
	"github.com/jwalitptl/salon-api/pkg/messaging/kafka"
	"github.com/jwalitptl/salon-api/pkg/messaging/redis"
	"github.com/jwalitptl/salon-api/pkg/metrics"
	"github.com/jwalitptl/salon-api/pkg/worker"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "salon-worker",
		Short:         "Drains the outbox: publishes domain events and replays failed audit writes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "directory containing config.yaml")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	// Load config
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewLogger(cfg.Logging.ToLoggerConfig()).
		WithFields(map[string]interface{}{"component": "worker"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg, cfg.Metrics.Namespace)

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	broker, err := newBroker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer broker.Close()

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "broker." + cfg.Broker.Driver,
		MaxFailures: cfg.Broker.BreakerFailures,
		Timeout:     cfg.Broker.BreakerTimeout,
	})

	// Initialize repositories
	outboxRepo := postgres.NewOutboxRepository(db)
	auditSvc := auditService.NewService(postgres.NewAppointmentEventRepository(db), outboxRepo, log, m)

	processor := worker.NewOutboxProcessor(
		outboxRepo,
		messaging.WithBreaker(broker, breaker),
		cfg.Outbox.ToWorkerConfig(cfg.Broker.TopicPrefix),
		log,
		m,
	).Handle(model.OutboxAppointmentEventRetry, auditSvc.HandleRetry)

	cleanup := internalworker.NewOutboxCleanup(outboxRepo, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, log)

	srv := healthServer(cfg, db, reg)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Health check server failed")
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	log.Info("Worker started",
		"broker", cfg.Broker.Driver,
		"batch_size", cfg.Outbox.BatchSize)

	<-ctx.Done()
	log.Info("Shutting down...")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newBroker(ctx context.Context, cfg *config.Config, log *logger.Logger) (messaging.Broker, error) {
	switch cfg.Broker.Driver {
	case "redis":
		b, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis broker: %w", err)
		}
		return b, nil
	case "kafka":
		b, err := kafka.NewKafkaBroker(cfg.Broker.ToKafkaConfig(), log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka broker: %w", err)
		}
		return b, nil
	case "amqp":
		b, err := amqp.NewAMQPBroker(cfg.Broker.ToAMQPConfig(), log)
		if err != nil {
			return nil, fmt.Errorf("failed to create AMQP broker: %w", err)
		}
		return b, nil
	default:
		log.Warn("No broker configured, outbox events are discarded after delivery")
		return messaging.Discard{}, nil
	}
}

func healthServer(cfg *config.Config, db *sqlx.DB, reg *prometheus.Registry) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(map[string]health.Checker{"database": db.PingContext}).RegisterRoutes(engine)
	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, httpmetrics.New(reg, cfg.Metrics.Namespace+"_worker").Handler())
	}
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.WorkerPort),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

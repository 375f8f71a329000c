package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/salon-api/internal/config"
	"github.com/jwalitptl/salon-api/internal/handler/appointment"
	"github.com/jwalitptl/salon-api/internal/handler/availability"
	"github.com/jwalitptl/salon-api/internal/handler/health"
	httpmetrics "github.com/jwalitptl/salon-api/internal/handler/prometheus"
	"github.com/jwalitptl/salon-api/internal/middleware"
	"github.com/jwalitptl/salon-api/internal/repository/cache"
	"github.com/jwalitptl/salon-api/internal/repository/postgres"
	"github.com/jwalitptl/salon-api/internal/router"
	appointmentService "github.com/jwalitptl/salon-api/internal/service/appointment"
	auditService "github.com/jwalitptl/salon-api/internal/service/audit"
	availabilityService "github.com/jwalitptl/salon-api/internal/service/availability"
	bookingService "github.com/jwalitptl/salon-api/internal/service/booking"
	"github.com/jwalitptl/salon-api/pkg/lock"
	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/metrics"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "salon-api",
		Short:         "Availability and booking HTTP API",
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
	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.NewLogger(cfg.Logging.ToLoggerConfig())

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

	checks := map[string]health.Checker{"database": db.PingContext}

	var locker lock.Locker = lock.NopLocker{}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		opts.MaxRetries = cfg.Redis.MaxRetries
		opts.PoolSize = cfg.Redis.PoolSize
		opts.MinIdleConns = cfg.Redis.MinIdleConns
		client := redis.NewClient(opts)
		defer client.Close()

		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		if cfg.Booking.LockEnabled {
			locker = lock.NewRedisLocker(client, "salon:booking", 3, 50*time.Millisecond)
		}
	} else if cfg.Booking.LockEnabled {
		log.Warn("Booking lock enabled without redis.url, relying on the database constraint only")
	}

	// Initialize repositories
	tenantRepo := cache.NewTenantRepository(postgres.NewTenantRepository(db), cfg.Cache.TenantTTL, 2*cfg.Cache.TenantTTL)
	overrideRepo := postgres.NewScheduleOverrideRepository(db)
	serviceRepo := postgres.NewServiceRepository(db)
	professionalRepo := postgres.NewProfessionalRepository(db)
	clientRepo := postgres.NewClientRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	eventRepo := postgres.NewAppointmentEventRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Initialize services
	availabilitySvc := availabilityService.NewService(tenantRepo, overrideRepo, appointmentRepo,
		availabilityService.Config{DefaultStep: cfg.Booking.DefaultStep, MaxScanDays: cfg.Booking.ScanDays}, log, m)
	auditSvc := auditService.NewService(eventRepo, outboxRepo, log, m)
	bookingSvc := bookingService.NewService(appointmentRepo, clientRepo, serviceRepo, professionalRepo,
		availabilitySvc, auditSvc, locker, bookingService.Config{LockTTL: cfg.Booking.LockTTL}, log, m)
	appointmentSvc := appointmentService.NewService(appointmentRepo, clientRepo, professionalRepo,
		availabilitySvc, auditSvc, locker, appointmentService.Config{LockTTL: cfg.Booking.LockTTL}, log, m)

	// Initialize handlers
	var httpMetrics *httpmetrics.Handler
	if cfg.Metrics.Enabled {
		httpMetrics = httpmetrics.New(reg, cfg.Metrics.Namespace)
	}

	r := router.NewRouter(
		appointment.NewHandler(bookingSvc, appointmentSvc),
		availability.NewHandler(availabilitySvc, serviceRepo),
		health.NewHandler(checks),
		httpMetrics,
		middleware.NewIdempotencyStore(cfg.Cache.IdempotencySize, cfg.Cache.IdempotencyTTL),
		router.RouterConfig{
			Mode:           ginMode(cfg.Server.Mode),
			RequestTimeout: cfg.Server.RequestTimeout,
			RateEnabled:    cfg.RateLimit.Enabled,
			RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:      cfg.RateLimit.Burst,
			CORSConfig:     middleware.DefaultCORSConfig(),
			SizeLimit:      middleware.DefaultSizeLimitConfig(),
			MetricsPath:    cfg.Metrics.Path,
		},
		log,
	)
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited properly")
	return nil
}

func ginMode(mode string) string {
	switch mode {
	case gin.DebugMode, gin.TestMode:
		return mode
	default:
		return gin.ReleaseMode
	}
}

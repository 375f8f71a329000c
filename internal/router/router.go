package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/salon-api/internal/handler/appointment"
	"github.com/jwalitptl/salon-api/internal/handler/availability"
	"github.com/jwalitptl/salon-api/internal/handler/health"
	"github.com/jwalitptl/salon-api/internal/handler/prometheus"
	"github.com/jwalitptl/salon-api/internal/middleware"
	"github.com/jwalitptl/salon-api/pkg/logger"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	Mode           string
	RequestTimeout time.Duration
	RateLimit      rate.Limit
	RateBurst      int
	RateEnabled    bool
	CORSConfig     middleware.CORSConfig
	SizeLimit      middleware.SizeLimitConfig
	MetricsPath    string
}

type Router struct {
	engine       *gin.Engine
	config       RouterConfig
	logger       *logger.Logger
	appointmentH *appointment.Handler
	availability Handler
	health       *health.Handler
	metrics      *prometheus.Handler
	idempotency  *middleware.IdempotencyStore
}

// NewRouter builds the engine with the global middleware chain. metrics may be
// nil to disable HTTP instrumentation and the scrape endpoint.
func NewRouter(
	appointmentH *appointment.Handler,
	availabilityH *availability.Handler,
	healthH *health.Handler,
	metrics *prometheus.Handler,
	idempotency *middleware.IdempotencyStore,
	config RouterConfig,
	log *logger.Logger,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	engine := gin.New()

	r := &Router{
		engine:       engine,
		config:       config,
		logger:       log,
		appointmentH: appointmentH,
		availability: availabilityH,
		health:       healthH,
		metrics:      metrics,
		idempotency:  idempotency,
	}

	// Order matters: ErrorHandler must wrap Validation so field errors are
	// rendered before the generic fallback.
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
	)
	if metrics != nil {
		engine.Use(metrics.Middleware())
	}
	engine.Use(
		middleware.ErrorHandler(log),
		middleware.Validation(middleware.ValidationConfig{}),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(config.SizeLimit),
	)
	if config.RequestTimeout > 0 {
		engine.Use(middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}))
	}
	if config.RateEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	r.health.RegisterRoutes(r.engine)
	if r.metrics != nil {
		path := r.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, r.metrics.Handler())
	}

	api := r.engine.Group("/api/v1")
	api.Use(
		middleware.Tenant(),
		middleware.Actor(),
	)

	var createMiddleware []gin.HandlerFunc
	if r.idempotency != nil {
		createMiddleware = append(createMiddleware, r.idempotency.Idempotency())
	}
	r.appointmentH.RegisterRoutes(api, createMiddleware...)
	r.availability.RegisterRoutes(api)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Package api provides the HTTP API for the Sellforge server.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/api/handlers"
	"github.com/sellforge/sellforge/internal/api/middleware"
	"github.com/sellforge/sellforge/internal/auth"
	"github.com/sellforge/sellforge/internal/config"
	"github.com/sellforge/sellforge/internal/db"
	"github.com/sellforge/sellforge/internal/fulfillment"
	"github.com/sellforge/sellforge/internal/payments"
	"github.com/sellforge/sellforge/internal/storage"
)

// Config holds configuration for the API router.
type Config struct {
	// Environment controls CORS strictness.
	Environment config.Environment
	// AllowedOrigins for CORS. Empty means all origins allowed in dev mode.
	AllowedOrigins []string
	// RateLimitRequests is the number of requests allowed per period.
	RateLimitRequests int64
	// RateLimitPeriod is the duration string for rate limiting (e.g. "1m", "1h").
	RateLimitPeriod string
	// Version for the health endpoint.
	Version string
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		Environment:       config.EnvDevelopment,
		AllowedOrigins:    []string{},
		RateLimitRequests: 100,
		RateLimitPeriod:   "1m",
		Version:           "dev",
	}
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine   *gin.Engine
	logger   zerolog.Logger
	sessions *auth.SessionStore
	db       *db.DB
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(
	cfg Config,
	database *db.DB,
	sessions *auth.SessionStore,
	stripe *payments.Client,
	store *storage.S3Store,
	pipeline *fulfillment.Pipeline,
	registry *prometheus.Registry,
	logger zerolog.Logger,
) (*Router, error) {
	r := &Router{
		Engine:   gin.New(),
		logger:   logger.With().Str("component", "router").Logger(),
		sessions: sessions,
		db:       database,
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.CORS(cfg.AllowedOrigins, cfg.Environment))

	// Rate limiting
	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(rateLimiter)

	// Health check endpoint (no auth required)
	healthHandler := handlers.NewHealthHandler(database, cfg.Version, logger)
	healthHandler.RegisterRoutes(&r.Engine.RouterGroup)

	// Prometheus metrics endpoint (no auth required)
	if registry != nil {
		r.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	// Public API routes
	public := r.Engine.Group("/api/v1")

	// Protected API routes (session auth required)
	protected := r.Engine.Group("/api/v1")
	protected.Use(middleware.AuthMiddleware(sessions, logger))

	authHandler := handlers.NewAuthHandler(database, sessions, logger)
	authHandler.RegisterRoutes(public, protected)

	productsHandler := handlers.NewProductsHandler(database, store, logger)
	productsHandler.RegisterRoutes(public, protected)

	purchasesHandler := handlers.NewPurchasesHandler(database, stripe, store, logger)
	purchasesHandler.RegisterRoutes(protected)

	licensesHandler := handlers.NewLicensesHandler(database, logger)
	licensesHandler.RegisterRoutes(public)

	sellerHandler := handlers.NewSellerHandler(database, stripe, logger)
	sellerHandler.RegisterRoutes(protected)

	adminHandler := handlers.NewAdminHandler(database, logger)
	adminHandler.RegisterRoutes(protected)

	webhooksHandler := handlers.NewWebhooksHandler(stripe, database, pipeline, logger)
	webhooksHandler.RegisterRoutes(public)

	r.logger.Info().Msg("API router initialized")
	return r, nil
}

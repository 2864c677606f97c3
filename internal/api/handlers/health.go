package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/db"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db      *db.DB
	version string
	logger  zerolog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(database *db.DB, version string, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		db:      database,
		version: version,
		logger:  logger.With().Str("component", "health_handler").Logger(),
	}
}

// RegisterRoutes registers health routes.
func (h *HealthHandler) RegisterRoutes(public *gin.RouterGroup) {
	public.GET("/health", h.Health)
	public.GET("/health/db", h.Database)
}

// Health returns overall service health including database connectivity.
func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	overall := "ok"
	dbStatus := "ok"

	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.logger.Error().Err(err).Msg("database health check failed")
		status = http.StatusServiceUnavailable
		overall = "degraded"
		dbStatus = "unreachable"
	}

	c.JSON(status, gin.H{
		"status":   overall,
		"version":  h.version,
		"database": dbStatus,
		"pool":     h.db.Health(),
	})
}

// Database returns database connectivity and pool statistics only.
func (h *HealthHandler) Database(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.logger.Error().Err(err).Msg("database health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "pool": h.db.Health()})
}

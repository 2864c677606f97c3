package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/auth"
	"github.com/sellforge/sellforge/internal/models"
)

// LicenseStore defines the persistence operations for license activation.
type LicenseStore interface {
	GetLicenseByKey(ctx context.Context, key string) (*models.License, error)
	ActivateLicense(ctx context.Context, key string, at time.Time) (*models.License, error)
}

// LicensesHandler handles license lookup and activation. Activation is
// called by installed software, not browsers, so these routes take the
// license key itself as the credential rather than a session.
type LicensesHandler struct {
	store  LicenseStore
	logger zerolog.Logger

	now func() time.Time
}

// NewLicensesHandler creates a new licenses handler.
func NewLicensesHandler(store LicenseStore, logger zerolog.Logger) *LicensesHandler {
	return &LicensesHandler{
		store:  store,
		logger: logger.With().Str("component", "licenses_handler").Logger(),
		now:    time.Now,
	}
}

// RegisterRoutes registers license routes on the public group.
func (h *LicensesHandler) RegisterRoutes(public *gin.RouterGroup) {
	public.POST("/licenses/activate", h.Activate)
	public.POST("/licenses/validate", h.Validate)
}

type licenseRequest struct {
	LicenseKey string `json:"license_key" binding:"required"`
}

// Activate consumes one activation slot on a license.
func (h *LicensesHandler) Activate(c *gin.Context) {
	var req licenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if !auth.LicenseKeyPattern.MatchString(req.LicenseKey) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed license key"})
		return
	}

	license, err := h.store.ActivateLicense(c.Request.Context(), req.LicenseKey, h.now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info().
		Int64("license_id", license.ID).
		Int("activations_used", license.ActivationsUsed).
		Msg("license activated")
	c.JSON(http.StatusOK, gin.H{"license": license})
}

// Validate checks a license key without consuming an activation.
func (h *LicensesHandler) Validate(c *gin.Context) {
	var req licenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if !auth.LicenseKeyPattern.MatchString(req.LicenseKey) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed license key"})
		return
	}

	license, err := h.store.GetLicenseByKey(c.Request.Context(), req.LicenseKey)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":   !license.Expired(h.now()) && !license.Exhausted(),
		"license": license,
	})
}

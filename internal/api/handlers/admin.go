package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/api/middleware"
	"github.com/sellforge/sellforge/internal/models"
)

// AdminStore defines the persistence operations for admin endpoints.
type AdminStore interface {
	ListTransactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error)
}

// AdminHandler handles admin-only endpoints.
type AdminHandler struct {
	store  AdminStore
	logger zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(store AdminStore, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		store:  store,
		logger: logger.With().Str("component", "admin_handler").Logger(),
	}
}

// RegisterRoutes registers admin routes on the protected group.
func (h *AdminHandler) RegisterRoutes(protected *gin.RouterGroup) {
	protected.GET("/admin/transactions", h.Transactions)
}

// Transactions lists the platform-wide ledger, paginated.
func (h *AdminHandler) Transactions(c *gin.Context) {
	user := middleware.RequireRole(c, models.UserRoleAdmin)
	if user == nil {
		return
	}

	limit, offset := pagination(c, 50, 200)
	transactions, err := h.store.ListTransactions(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions, "limit": limit, "offset": offset})
}

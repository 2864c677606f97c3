package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/api/middleware"
	"github.com/sellforge/sellforge/internal/models"
)

// RecentTransactionsLimit caps the transaction list in seller stats.
const RecentTransactionsLimit = 10

// SellerStore defines the persistence operations for the seller dashboard.
type SellerStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUserStripeAccount(ctx context.Context, userID int64, accountID string) error
	GetSellerTransactions(ctx context.Context, sellerID int64) ([]*models.Transaction, error)
	GetProductsBySeller(ctx context.Context, sellerID int64) ([]*models.Product, error)
}

// PayoutClient manages connected accounts with the payment provider.
type PayoutClient interface {
	CreateConnectedAccount(email string) (string, error)
	CreateAccountLink(accountID string) (string, error)
}

// SellerHandler handles seller dashboard and payout onboarding endpoints.
type SellerHandler struct {
	store   SellerStore
	payouts PayoutClient
	logger  zerolog.Logger
}

// NewSellerHandler creates a new seller handler.
func NewSellerHandler(store SellerStore, payouts PayoutClient, logger zerolog.Logger) *SellerHandler {
	return &SellerHandler{
		store:   store,
		payouts: payouts,
		logger:  logger.With().Str("component", "seller_handler").Logger(),
	}
}

// RegisterRoutes registers seller routes on the protected group.
func (h *SellerHandler) RegisterRoutes(protected *gin.RouterGroup) {
	protected.GET("/seller/stats", h.Stats)
	protected.POST("/seller/onboarding", h.Onboarding)
}

// sellerStats is the dashboard summary. Revenue figures are the seller's
// net in dollars; the ledger itself stays in integer cents.
type sellerStats struct {
	TotalRevenue       float64               `json:"total_revenue"`
	TotalFees          float64               `json:"total_fees"`
	TotalSales         int                   `json:"total_sales"`
	ProductCount       int                   `json:"product_count"`
	RecentTransactions []*models.Transaction `json:"recent_transactions"`
}

// Stats aggregates the seller's revenue across all their transactions.
func (h *SellerHandler) Stats(c *gin.Context) {
	user := middleware.RequireRole(c, models.UserRoleSeller, models.UserRoleAdmin)
	if user == nil {
		return
	}

	transactions, err := h.store.GetSellerTransactions(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	products, err := h.store.GetProductsBySeller(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var netCents, feeCents int64
	for _, t := range transactions {
		netCents += t.NetCents
		feeCents += t.FeeCents
	}

	recent := transactions
	if len(recent) > RecentTransactionsLimit {
		recent = recent[:RecentTransactionsLimit]
	}

	c.JSON(http.StatusOK, sellerStats{
		TotalRevenue:       float64(netCents) / 100,
		TotalFees:          float64(feeCents) / 100,
		TotalSales:         len(transactions),
		ProductCount:       len(products),
		RecentTransactions: recent,
	})
}

// Onboarding creates a connected payout account for the seller if they
// do not have one, and returns a fresh onboarding link.
func (h *SellerHandler) Onboarding(c *gin.Context) {
	sessionUser := middleware.RequireRole(c, models.UserRoleSeller, models.UserRoleAdmin)
	if sessionUser == nil {
		return
	}

	user, err := h.store.GetUserByID(c.Request.Context(), sessionUser.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	accountID := user.StripeAccountID
	if accountID == "" {
		accountID, err = h.payouts.CreateConnectedAccount(user.Email)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		if err := h.store.UpdateUserStripeAccount(c.Request.Context(), user.ID, accountID); err != nil {
			respondError(c, h.logger, err)
			return
		}
		h.logger.Info().Int64("user_id", user.ID).Str("account_id", accountID).Msg("connected account created")
	}

	link, err := h.payouts.CreateAccountLink(accountID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"onboarding_url": link, "account_id": accountID})
}

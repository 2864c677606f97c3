package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/api/middleware"
	"github.com/sellforge/sellforge/internal/models"
	"github.com/sellforge/sellforge/internal/payments"
	"github.com/sellforge/sellforge/internal/storage"
)

// PurchaseStore defines the persistence operations for checkout and
// download authorization.
type PurchaseStore interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetPurchaseByID(ctx context.Context, id int64) (*models.Purchase, error)
	GetPurchasesByBuyer(ctx context.Context, buyerID int64) ([]*models.Purchase, error)
}

// CheckoutClient creates hosted checkout sessions with the payment provider.
type CheckoutClient interface {
	CreateCheckoutSession(product *models.Product, buyerID int64, buyerEmail string, kind models.PurchaseKind, priceCents int64) (*payments.CheckoutSession, error)
}

// Downloader presigns download URLs for product files.
type Downloader interface {
	PresignGet(ctx context.Context, key string, validity time.Duration) (string, error)
}

// PurchasesHandler handles checkout and purchase endpoints.
type PurchasesHandler struct {
	store      PurchaseStore
	checkout   CheckoutClient
	downloader Downloader
	logger     zerolog.Logger

	now func() time.Time
}

// NewPurchasesHandler creates a new purchases handler.
func NewPurchasesHandler(store PurchaseStore, checkout CheckoutClient, downloader Downloader, logger zerolog.Logger) *PurchasesHandler {
	return &PurchasesHandler{
		store:      store,
		checkout:   checkout,
		downloader: downloader,
		logger:     logger.With().Str("component", "purchases_handler").Logger(),
		now:        time.Now,
	}
}

// RegisterRoutes registers purchase routes on the protected group.
func (h *PurchasesHandler) RegisterRoutes(protected *gin.RouterGroup) {
	protected.POST("/checkout", h.Checkout)
	protected.GET("/purchases", h.List)
	protected.GET("/purchases/:id/download", h.Download)
}

type checkoutRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Kind      string `json:"kind" binding:"required"`
}

// Checkout creates a hosted checkout session for one product. The
// purchase itself is only created later, by the webhook pipeline, once
// payment completes.
func (h *PurchasesHandler) Checkout(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	kind, ok := models.ParsePurchaseKind(req.Kind)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be sale or rent"})
		return
	}

	product, err := h.store.GetProductByID(c.Request.Context(), req.ProductID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if product.SellerID == user.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot purchase your own product"})
		return
	}
	if !product.Purchasable(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product is not available for " + string(kind)})
		return
	}

	price := product.PriceFor(kind)
	session, err := h.checkout.CreateCheckoutSession(product, user.ID, user.Email, kind, *price)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info().
		Int64("product_id", product.ID).
		Int64("buyer_id", user.ID).
		Str("kind", string(kind)).
		Str("session_id", session.ID).
		Msg("checkout session created")
	c.JSON(http.StatusOK, session)
}

// List returns the authenticated user's purchases.
func (h *PurchasesHandler) List(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	purchases, err := h.store.GetPurchasesByBuyer(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

// Download authorizes a file download and returns a fresh presigned URL.
// The purchase must belong to the caller, be completed, and, for
// rentals, not be past its end date.
func (h *PurchasesHandler) Download(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase id"})
		return
	}

	purchase, err := h.store.GetPurchaseByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// Not found rather than forbidden: do not leak other users' purchase ids.
	if purchase.BuyerID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "purchase not found"})
		return
	}
	if purchase.Status != models.PurchaseStatusCompleted {
		c.JSON(http.StatusForbidden, gin.H{"error": "purchase is not completed"})
		return
	}
	if purchase.Expired(h.now()) {
		c.JSON(http.StatusGone, gin.H{"error": "rental period has ended"})
		return
	}

	product, err := h.store.GetProductByID(c.Request.Context(), purchase.ProductID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if product.StorageKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no file available for this product"})
		return
	}

	url, err := h.downloader.PresignGet(c.Request.Context(), product.StorageKey, storage.DownloadURLValidity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info().Int64("purchase_id", purchase.ID).Int64("buyer_id", user.ID).Msg("download url issued")
	c.JSON(http.StatusOK, gin.H{
		"download_url": url,
		"expires_in":   int(storage.DownloadURLValidity.Seconds()),
	})
}

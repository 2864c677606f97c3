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
	"github.com/sellforge/sellforge/internal/storage"
)

// UploadURLValidity is the validity window for presigned upload URLs.
const UploadURLValidity = 15 * time.Minute

// ProductStore defines the persistence operations for catalog management.
type ProductStore interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	SetProductStorageKey(ctx context.Context, productID int64, key string) error
	ListPublishedProducts(ctx context.Context, limit, offset int) ([]*models.Product, error)
	GetProductsBySeller(ctx context.Context, sellerID int64) ([]*models.Product, error)
}

// Uploader presigns upload URLs for product files.
type Uploader interface {
	PresignPut(ctx context.Context, key string, validity time.Duration) (string, error)
}

// ProductsHandler handles catalog endpoints.
type ProductsHandler struct {
	store    ProductStore
	uploader Uploader
	logger   zerolog.Logger
}

// NewProductsHandler creates a new products handler.
func NewProductsHandler(store ProductStore, uploader Uploader, logger zerolog.Logger) *ProductsHandler {
	return &ProductsHandler{
		store:    store,
		uploader: uploader,
		logger:   logger.With().Str("component", "products_handler").Logger(),
	}
}

// RegisterRoutes registers product routes.
func (h *ProductsHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.GET("/products", h.List)
	public.GET("/products/:id", h.Get)
	protected.POST("/products", h.Create)
	protected.PUT("/products/:id", h.Update)
	protected.GET("/products/mine", h.Mine)
	protected.POST("/products/:id/upload-url", h.UploadURL)
}

type productRequest struct {
	Title          string   `json:"title" binding:"required"`
	Description    string   `json:"description"`
	Summary        string   `json:"summary"`
	PriceSaleCents *int64   `json:"price_sale_cents"`
	PriceRentCents *int64   `json:"price_rent_cents"`
	RentPeriodDays *int     `json:"rent_period_days"`
	Images         []string `json:"images"`
	Tags           []string `json:"tags"`
	Version        string   `json:"version"`
	LicenseType    string   `json:"license_type"`
	Status         string   `json:"status"`
}

func (r *productRequest) validate() string {
	if r.PriceSaleCents != nil && *r.PriceSaleCents <= 0 {
		return "price_sale_cents must be positive"
	}
	if r.PriceRentCents != nil && *r.PriceRentCents <= 0 {
		return "price_rent_cents must be positive"
	}
	if r.RentPeriodDays != nil && *r.RentPeriodDays <= 0 {
		return "rent_period_days must be positive"
	}
	switch models.ProductStatus(r.Status) {
	case "", models.ProductStatusDraft, models.ProductStatusPublished, models.ProductStatusArchived:
	default:
		return "status must be draft, published, or archived"
	}
	return ""
}

func (r *productRequest) apply(p *models.Product) {
	p.Title = r.Title
	p.Description = r.Description
	p.Summary = r.Summary
	p.PriceSaleCents = r.PriceSaleCents
	p.PriceRentCents = r.PriceRentCents
	p.RentPeriodDays = r.RentPeriodDays
	if r.Images != nil {
		p.Images = r.Images
	}
	if r.Tags != nil {
		p.Tags = r.Tags
	}
	p.Version = r.Version
	p.LicenseType = r.LicenseType
	if r.Status != "" {
		p.Status = models.ProductStatus(r.Status)
	}
}

// Create lists a new product. Sellers and admins only.
func (h *ProductsHandler) Create(c *gin.Context) {
	user := middleware.RequireRole(c, models.UserRoleSeller, models.UserRoleAdmin)
	if user == nil {
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	product := models.NewProduct(user.ID, req.Title)
	req.apply(product)

	if err := h.store.CreateProduct(c.Request.Context(), product); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info().Int64("product_id", product.ID).Int64("seller_id", user.ID).Msg("product created")
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

// Update modifies a product. Only the owning seller or an admin may update.
func (h *ProductsHandler) Update(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	product, err := h.store.GetProductByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if product.SellerID != user.ID && user.Role != models.UserRoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	req.apply(product)
	if err := h.store.UpdateProduct(c.Request.Context(), product); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product})
}

// Get returns one product. Drafts and archived products are only visible
// to their owner and admins.
func (h *ProductsHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	product, err := h.store.GetProductByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if product.Status != models.ProductStatusPublished {
		user := middleware.GetUser(c)
		if user == nil || (product.SellerID != user.ID && user.Role != models.UserRoleAdmin) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"product": product})
}

// List returns published products, paginated.
func (h *ProductsHandler) List(c *gin.Context) {
	limit, offset := pagination(c, 20, 100)

	products, err := h.store.ListPublishedProducts(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "limit": limit, "offset": offset})
}

// Mine returns all products owned by the authenticated seller.
func (h *ProductsHandler) Mine(c *gin.Context) {
	user := middleware.RequireRole(c, models.UserRoleSeller, models.UserRoleAdmin)
	if user == nil {
		return
	}

	products, err := h.store.GetProductsBySeller(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

type uploadURLRequest struct {
	FileName string `json:"file_name" binding:"required"`
}

// UploadURL presigns an upload URL for a product file and records the
// resulting storage key on the product.
func (h *ProductsHandler) UploadURL(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	product, err := h.store.GetProductByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if product.SellerID != user.ID && user.Role != models.UserRoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}

	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	key := storage.ObjectKey(product.ID, req.FileName)
	url, err := h.uploader.PresignPut(c.Request.Context(), key, UploadURLValidity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.store.SetProductStorageKey(c.Request.Context(), product.ID, key); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info().Int64("product_id", product.ID).Str("key", key).Msg("upload url issued")
	c.JSON(http.StatusOK, gin.H{"upload_url": url, "storage_key": key, "expires_in": int(UploadURLValidity.Seconds())})
}

// pagination reads limit and offset query parameters with bounds.
func pagination(c *gin.Context, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

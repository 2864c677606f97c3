package models

import "time"

// ProductStatus is the lifecycle state of a catalog entry.
type ProductStatus string

const (
	// ProductStatusDraft is the initial state; not visible to buyers.
	ProductStatusDraft ProductStatus = "draft"
	// ProductStatusPublished makes the product purchasable.
	ProductStatusPublished ProductStatus = "published"
	// ProductStatusArchived retires a product. Products are never hard-deleted.
	ProductStatusArchived ProductStatus = "archived"
)

// Product is a seller-owned catalog entry for a downloadable artifact.
// Monetary fields are integer cents; nil means the product is not offered
// under that acquisition kind.
type Product struct {
	ID             int64         `json:"id"`
	SellerID       int64         `json:"seller_id"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Summary        string        `json:"summary,omitempty"`
	PriceSaleCents *int64        `json:"price_sale_cents,omitempty"`
	PriceRentCents *int64        `json:"price_rent_cents,omitempty"`
	RentPeriodDays *int          `json:"rent_period_days,omitempty"`
	StorageKey     string        `json:"-"`
	Images         []string      `json:"images"`
	Tags           []string      `json:"tags"`
	Version        string        `json:"version,omitempty"`
	LicenseType    string        `json:"license_type,omitempty"`
	Status         ProductStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// NewProduct creates a draft Product owned by the given seller.
func NewProduct(sellerID int64, title string) *Product {
	now := time.Now()
	return &Product{
		SellerID:  sellerID,
		Title:     title,
		Images:    []string{},
		Tags:      []string{},
		Status:    ProductStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PriceFor returns the price in cents for the given acquisition kind,
// or nil if the product is not offered under that kind.
func (p *Product) PriceFor(kind PurchaseKind) *int64 {
	switch kind {
	case PurchaseKindSale:
		return p.PriceSaleCents
	case PurchaseKindRent:
		return p.PriceRentCents
	}
	return nil
}

// Purchasable reports whether the product can be bought under the given
// kind: it must be published and carry a price for that kind. A rental
// offer additionally requires a rental period.
func (p *Product) Purchasable(kind PurchaseKind) bool {
	if p.Status != ProductStatusPublished {
		return false
	}
	price := p.PriceFor(kind)
	if price == nil {
		return false
	}
	if kind == PurchaseKindRent && p.RentPeriodDays == nil {
		return false
	}
	return true
}

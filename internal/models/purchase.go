package models

import "time"

// PurchaseKind distinguishes outright sales from time-boxed rentals.
type PurchaseKind string

const (
	// PurchaseKindSale grants permanent access.
	PurchaseKindSale PurchaseKind = "sale"
	// PurchaseKindRent grants access until EndDate.
	PurchaseKindRent PurchaseKind = "rent"
)

// ParsePurchaseKind validates a raw kind string.
func ParsePurchaseKind(s string) (PurchaseKind, bool) {
	switch PurchaseKind(s) {
	case PurchaseKindSale, PurchaseKindRent:
		return PurchaseKind(s), true
	}
	return "", false
}

// PurchaseStatus is the lifecycle state of a purchase.
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
	PurchaseStatusRefunded  PurchaseStatus = "refunded"
)

// Purchase records one buyer acquiring one product. PaymentRef is the
// external payment reference and is unique: at most one purchase exists
// per payment event, which anchors webhook idempotency.
type Purchase struct {
	ID         int64          `json:"id"`
	BuyerID    int64          `json:"buyer_id"`
	ProductID  int64          `json:"product_id"`
	Kind       PurchaseKind   `json:"kind"`
	StartDate  time.Time      `json:"start_date"`
	EndDate    *time.Time     `json:"end_date,omitempty"`
	LicenseKey string         `json:"license_key"`
	PaymentRef string         `json:"payment_ref"`
	Status     PurchaseStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Expired reports whether a rental purchase is past its end date at the
// given instant. Sales never expire.
func (p *Purchase) Expired(at time.Time) bool {
	return p.Kind == PurchaseKindRent && p.EndDate != nil && at.After(*p.EndDate)
}

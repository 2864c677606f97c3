package models

import "time"

// Transaction is an immutable ledger entry for one purchase.
// AmountCents is the gross charge; FeeCents the platform's cut;
// NetCents the remainder owed to the seller. FeeCents + NetCents ==
// AmountCents always holds.
type Transaction struct {
	ID              int64     `json:"id"`
	PurchaseID      int64     `json:"purchase_id"`
	ProviderPayload []byte    `json:"-"`
	AmountCents     int64     `json:"amount_cents"`
	FeeCents        int64     `json:"fee_cents"`
	NetCents        int64     `json:"net_cents"`
	CreatedAt       time.Time `json:"created_at"`
}

package models

import "time"

// License is the activation record tied 1:1 to a purchase. The key is
// duplicated from the purchase so licenses can be looked up without it.
type License struct {
	ID                 int64      `json:"id"`
	PurchaseID         int64      `json:"purchase_id"`
	LicenseKey         string     `json:"license_key"`
	ActivationsAllowed int        `json:"activations_allowed"`
	ActivationsUsed    int        `json:"activations_used"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Expired reports whether the license is past its expiry at the given
// instant. Licenses without an expiry never expire.
func (l *License) Expired(at time.Time) bool {
	return l.ExpiresAt != nil && at.After(*l.ExpiresAt)
}

// Exhausted reports whether all allowed activations are used.
func (l *License) Exhausted() bool {
	return l.ActivationsUsed >= l.ActivationsAllowed
}

package fulfillment

import (
	"encoding/json"
	"strconv"

	"github.com/sellforge/sellforge/internal/errs"
	"github.com/sellforge/sellforge/internal/models"
	"github.com/stripe/stripe-go/v82"
)

// EventTypeCheckoutCompleted is the only event type the pipeline acts on.
// Every other type is acknowledged as a no-op, so callers may forward all
// provider events without pre-filtering.
const EventTypeCheckoutCompleted = "checkout.session.completed"

// CompletedCheckout is the strongly-typed variant of a completed-checkout
// event, carrying exactly the fields the pipeline needs.
type CompletedCheckout struct {
	EventID     string
	PaymentRef  string
	AmountCents int64
	ProductID   int64
	BuyerID     int64
	Kind        models.PurchaseKind
	// Raw is the provider's session object, stored verbatim on the
	// transaction ledger entry as an audit blob.
	Raw json.RawMessage
}

// checkoutSession is the wire shape of the nested session object.
type checkoutSession struct {
	ID            string            `json:"id"`
	AmountTotal   int64             `json:"amount_total"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

// ParseEvent classifies a provider event. It returns (nil, nil) for event
// types the pipeline ignores, a CompletedCheckout for a well-formed
// completion event, and errs.ErrValidation when the completion event's
// metadata is missing or malformed (terminal; never retried).
func ParseEvent(event *stripe.Event) (*CompletedCheckout, error) {
	if string(event.Type) != EventTypeCheckoutCompleted {
		return nil, nil
	}

	var session checkoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, errs.Validationf("decode checkout session: %v", err)
	}

	productID, err := requiredID(session.Metadata, "productId")
	if err != nil {
		return nil, err
	}
	buyerID, err := requiredID(session.Metadata, "buyerId")
	if err != nil {
		return nil, err
	}

	kindRaw, ok := session.Metadata["type"]
	if !ok || kindRaw == "" {
		return nil, errs.Validationf("checkout metadata missing type")
	}
	kind, ok := models.ParsePurchaseKind(kindRaw)
	if !ok {
		return nil, errs.Validationf("checkout metadata has unknown type %q", kindRaw)
	}

	// The payment intent is the canonical reference; fall back to the
	// session id when the provider omits it.
	paymentRef := session.PaymentIntent
	if paymentRef == "" {
		paymentRef = session.ID
	}
	if paymentRef == "" {
		return nil, errs.Validationf("checkout session has no payment reference")
	}

	if session.AmountTotal < 0 {
		return nil, errs.Validationf("checkout session has negative amount %d", session.AmountTotal)
	}

	return &CompletedCheckout{
		EventID:     event.ID,
		PaymentRef:  paymentRef,
		AmountCents: session.AmountTotal,
		ProductID:   productID,
		BuyerID:     buyerID,
		Kind:        kind,
		Raw:         event.Data.Raw,
	}, nil
}

func requiredID(metadata map[string]string, key string) (int64, error) {
	raw, ok := metadata[key]
	if !ok || raw == "" {
		return 0, errs.Validationf("checkout metadata missing %s", key)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Validationf("checkout metadata has invalid %s %q", key, raw)
	}
	return id, nil
}

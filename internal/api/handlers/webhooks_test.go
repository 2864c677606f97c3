package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/errs"
	"github.com/sellforge/sellforge/internal/fulfillment"
	"github.com/sellforge/sellforge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

// fakeFulfillmentStore backs a real pipeline in webhook handler tests.
type fakeFulfillmentStore struct {
	products     map[int64]*models.Product
	purchases    map[string]*models.Purchase
	transactions map[int64]*models.Transaction
	licenses     map[int64]*models.License
	logs         map[int64]*models.WebhookLog
	nextID       int64
}

func newFakeFulfillmentStore() *fakeFulfillmentStore {
	return &fakeFulfillmentStore{
		products:     make(map[int64]*models.Product),
		purchases:    make(map[string]*models.Purchase),
		transactions: make(map[int64]*models.Transaction),
		licenses:     make(map[int64]*models.License),
		logs:         make(map[int64]*models.WebhookLog),
	}
}

func (s *fakeFulfillmentStore) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, errs.NotFoundf("product %d not found", id)
	}
	return p, nil
}

func (s *fakeFulfillmentStore) GetPurchaseByPaymentRef(_ context.Context, ref string) (*models.Purchase, error) {
	p, ok := s.purchases[ref]
	if !ok {
		return nil, errs.NotFoundf("purchase for payment %s not found", ref)
	}
	return p, nil
}

func (s *fakeFulfillmentStore) CreatePurchase(_ context.Context, p *models.Purchase) error {
	if _, ok := s.purchases[p.PaymentRef]; ok {
		return errs.Conflictf("purchase for payment %s already exists", p.PaymentRef)
	}
	s.nextID++
	p.ID = s.nextID
	s.purchases[p.PaymentRef] = p
	return nil
}

func (s *fakeFulfillmentStore) GetTransactionByPurchaseID(_ context.Context, purchaseID int64) (*models.Transaction, error) {
	t, ok := s.transactions[purchaseID]
	if !ok {
		return nil, errs.NotFoundf("transaction for purchase %d not found", purchaseID)
	}
	return t, nil
}

func (s *fakeFulfillmentStore) CreateTransaction(_ context.Context, t *models.Transaction) error {
	if _, ok := s.transactions[t.PurchaseID]; ok {
		return errs.Conflictf("transaction for purchase %d already exists", t.PurchaseID)
	}
	s.nextID++
	t.ID = s.nextID
	s.transactions[t.PurchaseID] = t
	return nil
}

func (s *fakeFulfillmentStore) GetLicenseByPurchaseID(_ context.Context, purchaseID int64) (*models.License, error) {
	l, ok := s.licenses[purchaseID]
	if !ok {
		return nil, errs.NotFoundf("license for purchase %d not found", purchaseID)
	}
	return l, nil
}

func (s *fakeFulfillmentStore) CreateLicense(_ context.Context, l *models.License) error {
	if _, ok := s.licenses[l.PurchaseID]; ok {
		return errs.Conflictf("license for purchase %d already exists", l.PurchaseID)
	}
	s.nextID++
	l.ID = s.nextID
	s.licenses[l.PurchaseID] = l
	return nil
}

func (s *fakeFulfillmentStore) UpdateWebhookLogStatus(_ context.Context, id int64, status models.WebhookLogStatus, errorMessage string) error {
	l, ok := s.logs[id]
	if !ok {
		return errs.NotFoundf("webhook log %d not found", id)
	}
	l.Status = status
	l.ErrorMessage = errorMessage
	return nil
}

func (s *fakeFulfillmentStore) CreateWebhookLog(_ context.Context, l *models.WebhookLog) error {
	s.nextID++
	l.ID = s.nextID
	s.logs[l.ID] = l
	return nil
}

// fakeVerifier accepts any payload carrying the expected signature header.
type fakeVerifier struct{}

func (fakeVerifier) VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error) {
	if signatureHeader != "valid" {
		return stripe.Event{}, errs.Validationf("invalid webhook signature")
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripe.Event{}, errs.Validationf("invalid payload: %v", err)
	}
	return event, nil
}

func webhookTestRouter(store *fakeFulfillmentStore) *gin.Engine {
	pipeline := fulfillment.New(store, fulfillment.Config{PlatformFeePercent: 10, DefaultRentalDays: 30}, nil, zerolog.Nop())
	h := NewWebhooksHandler(fakeVerifier{}, store, pipeline, zerolog.Nop())

	engine := newTestRouter()
	h.RegisterRoutes(&engine.RouterGroup)
	return engine
}

func postWebhook(t *testing.T, engine *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func checkoutCompletedPayload(t *testing.T, paymentRef string) []byte {
	t.Helper()
	session := map[string]any{
		"id":             "cs_test",
		"amount_total":   2000,
		"payment_intent": paymentRef,
		"metadata": map[string]string{
			"productId": "1",
			"buyerId":   "7",
			"type":      "sale",
		},
	}
	raw, err := json.Marshal(session)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"id":   "evt_test",
		"type": "checkout.session.completed",
		"data": map[string]any{"object": json.RawMessage(raw)},
	})
	require.NoError(t, err)
	return payload
}

func TestWebhookFulfillsCheckout(t *testing.T) {
	store := newFakeFulfillmentStore()
	price := int64(2000)
	store.products[1] = &models.Product{ID: 1, SellerID: 3, Status: models.ProductStatusPublished, PriceSaleCents: &price}
	engine := webhookTestRouter(store)

	w := postWebhook(t, engine, checkoutCompletedPayload(t, "pi_123"), "valid")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]bool
	decodeBody(t, w, &resp)
	assert.True(t, resp["received"])

	purchase, ok := store.purchases["pi_123"]
	require.True(t, ok, "purchase must be created")
	assert.Equal(t, models.PurchaseStatusCompleted, purchase.Status)

	tx := store.transactions[purchase.ID]
	require.NotNil(t, tx)
	assert.Equal(t, int64(200), tx.FeeCents)
	assert.Equal(t, int64(1800), tx.NetCents)

	license := store.licenses[purchase.ID]
	require.NotNil(t, license)
	assert.Equal(t, purchase.LicenseKey, license.LicenseKey)

	require.Len(t, store.logs, 1)
	for _, logEntry := range store.logs {
		assert.Equal(t, models.WebhookLogStatusProcessed, logEntry.Status)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	store := newFakeFulfillmentStore()
	engine := webhookTestRouter(store)

	w := postWebhook(t, engine, checkoutCompletedPayload(t, "pi_123"), "bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.logs, "unverified deliveries are never persisted")
	assert.Empty(t, store.purchases)
}

func TestWebhookDuplicateDeliveryStillAcknowledged(t *testing.T) {
	store := newFakeFulfillmentStore()
	price := int64(2000)
	store.products[1] = &models.Product{ID: 1, SellerID: 3, Status: models.ProductStatusPublished, PriceSaleCents: &price}
	engine := webhookTestRouter(store)

	payload := checkoutCompletedPayload(t, "pi_123")
	first := postWebhook(t, engine, payload, "valid")
	require.Equal(t, http.StatusOK, first.Code)
	firstKey := store.purchases["pi_123"].LicenseKey

	second := postWebhook(t, engine, payload, "valid")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Len(t, store.purchases, 1)
	assert.Len(t, store.licenses, 1)
	assert.Equal(t, firstKey, store.purchases["pi_123"].LicenseKey)
}

func TestWebhookAcknowledgesIgnoredAndMalformedEvents(t *testing.T) {
	store := newFakeFulfillmentStore()
	engine := webhookTestRouter(store)

	ignored, err := json.Marshal(map[string]any{
		"id":   "evt_other",
		"type": "invoice.paid",
		"data": map[string]any{"object": map[string]any{}},
	})
	require.NoError(t, err)

	w := postWebhook(t, engine, ignored, "valid")
	assert.Equal(t, http.StatusOK, w.Code)

	// A completion event with broken metadata is still acknowledged; the
	// failure lands on the webhook log instead.
	session, err := json.Marshal(map[string]any{"id": "cs_bad", "metadata": map[string]string{}})
	require.NoError(t, err)
	malformed, err := json.Marshal(map[string]any{
		"id":   "evt_bad",
		"type": "checkout.session.completed",
		"data": map[string]any{"object": json.RawMessage(session)},
	})
	require.NoError(t, err)

	w = postWebhook(t, engine, malformed, "valid")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, store.purchases)

	failed := 0
	for _, logEntry := range store.logs {
		if logEntry.Status == models.WebhookLogStatusFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

package fulfillment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/errs"
	"github.com/sellforge/sellforge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func centsPtr(v int64) *int64 { return &v }

func testPipeline(store *fakeStore) *Pipeline {
	p := New(store, Config{PlatformFeePercent: 10, DefaultRentalDays: 30}, nil, zerolog.Nop())
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	keys := 0
	p.newLicenseKey = func() string {
		keys++
		return []string{
			"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA1-AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA1",
			"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA2-AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA2",
			"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA3-AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA3",
		}[keys-1]
	}
	return p
}

func saleCheckout(productID int64) *CompletedCheckout {
	return &CompletedCheckout{
		EventID:     "evt_1",
		PaymentRef:  "pi_123",
		AmountCents: 2000,
		ProductID:   productID,
		BuyerID:     7,
		Kind:        models.PurchaseKindSale,
		Raw:         []byte(`{"id":"cs_1"}`),
	}
}

func TestProcessSale(t *testing.T) {
	store := newFakeStore()
	product := store.addProduct(&models.Product{
		Title:          "Editor Pro",
		SellerID:       3,
		Status:         models.ProductStatusPublished,
		PriceSaleCents: centsPtr(2000),
	})
	p := testPipeline(store)

	res, err := p.Process(context.Background(), saleCheckout(product.ID))
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.NoError(t, res.PartialErr)

	purchase, err := store.GetPurchaseByPaymentRef(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, res.PurchaseID, purchase.ID)
	assert.Equal(t, models.PurchaseStatusCompleted, purchase.Status)
	assert.Nil(t, purchase.EndDate, "sales have no end date")

	tx, err := store.GetTransactionByPurchaseID(context.Background(), purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), tx.AmountCents)
	assert.Equal(t, int64(200), tx.FeeCents)
	assert.Equal(t, int64(1800), tx.NetCents)

	license, err := store.GetLicenseByPurchaseID(context.Background(), purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.LicenseKey, license.LicenseKey)
	assert.Equal(t, 1, license.ActivationsAllowed)
	assert.Equal(t, 0, license.ActivationsUsed)
	assert.Nil(t, license.ExpiresAt)
}

func TestProcessRentUsesProductPeriod(t *testing.T) {
	store := newFakeStore()
	product := store.addProduct(&models.Product{
		Title:          "Render Farm",
		SellerID:       3,
		Status:         models.ProductStatusPublished,
		PriceRentCents: centsPtr(500),
		RentPeriodDays: intPtr(7),
	})
	p := testPipeline(store)

	cc := saleCheckout(product.ID)
	cc.Kind = models.PurchaseKindRent
	cc.AmountCents = 500

	res, err := p.Process(context.Background(), cc)
	require.NoError(t, err)
	require.NoError(t, res.PartialErr)

	purchase, err := store.GetPurchaseByPaymentRef(context.Background(), "pi_123")
	require.NoError(t, err)
	require.NotNil(t, purchase.EndDate)
	assert.Equal(t, p.now().Add(7*24*time.Hour), *purchase.EndDate)

	license, err := store.GetLicenseByPurchaseID(context.Background(), purchase.ID)
	require.NoError(t, err)
	require.NotNil(t, license.ExpiresAt)
	assert.Equal(t, *purchase.EndDate, *license.ExpiresAt)
}

func TestProcessRentFallsBackToDefaultPeriod(t *testing.T) {
	store := newFakeStore()
	product := store.addProduct(&models.Product{
		Title:          "Legacy Plugin",
		SellerID:       3,
		Status:         models.ProductStatusPublished,
		PriceRentCents: centsPtr(500),
	})
	p := testPipeline(store)

	cc := saleCheckout(product.ID)
	cc.Kind = models.PurchaseKindRent

	_, err := p.Process(context.Background(), cc)
	require.NoError(t, err)

	purchase, err := store.GetPurchaseByPaymentRef(context.Background(), "pi_123")
	require.NoError(t, err)
	require.NotNil(t, purchase.EndDate)
	assert.Equal(t, p.now().Add(30*24*time.Hour), *purchase.EndDate)
}

func TestProcessRentUnknownProduct(t *testing.T) {
	store := newFakeStore()
	p := testPipeline(store)

	cc := saleCheckout(999)
	cc.Kind = models.PurchaseKindRent

	_, err := p.Process(context.Background(), cc)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Zero(t, store.purchaseWrites, "nothing may be written for an invalid checkout")
}

func TestProcessDuplicateDeliveryWritesNothing(t *testing.T) {
	store := newFakeStore()
	product := store.addProduct(&models.Product{
		Title:          "Editor Pro",
		SellerID:       3,
		Status:         models.ProductStatusPublished,
		PriceSaleCents: centsPtr(2000),
	})
	p := testPipeline(store)

	first, err := p.Process(context.Background(), saleCheckout(product.ID))
	require.NoError(t, err)

	second, err := p.Process(context.Background(), saleCheckout(product.ID))
	require.NoError(t, err)
	require.NoError(t, second.PartialErr)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.PurchaseID, second.PurchaseID)
	assert.Equal(t, 1, store.purchaseWrites)
	assert.Equal(t, 1, store.txWrites)
	assert.Equal(t, 1, store.licenseWrites)
}

func TestProcessConcurrentConflictUsesWinner(t *testing.T) {
	store := newFakeStore()
	product := store.addProduct(&models.Product{
		Title:          "Editor Pro",
		SellerID:       3,
		Status:         models.ProductStatusPublished,
		PriceSaleCents: centsPtr(2000),
	})

	// The winner's purchase lands between this worker's lookup and insert.
	winner := &models.Purchase{
		ID:         41,
		BuyerID:    7,
		ProductID:  product.ID,
		Kind:       models.PurchaseKindSale,
		LicenseKey: "BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB1-BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB1",
		PaymentRef: "pi_123",
		Status:     models.PurchaseStatusCompleted,
	}
	p := testPipeline(store)
	store.createPurchaseErr = errs.Conflictf("purchase for payment pi_123 already exists")
	store.purchases["pi_123"] = winner

	res, err := p.Process(context.Background(), saleCheckout(product.ID))
	require.NoError(t, err)
	require.NoError(t, res.PartialErr)

	assert.True(t, res.Duplicate)
	assert.Equal(t, winner.ID, res.PurchaseID)
	assert.Zero(t, store.purchaseWrites)

	license, err := store.GetLicenseByPurchaseID(context.Background(), winner.ID)
	require.NoError(t, err)
	assert.Equal(t, winner.LicenseKey, license.LicenseKey, "loser must reuse the winner's key")
}

func TestProcessPartialFailureThenRepair(t *testing.T) {
	store := newFakeStore()
	product := store.addProduct(&models.Product{
		Title:          "Editor Pro",
		SellerID:       3,
		Status:         models.ProductStatusPublished,
		PriceSaleCents: centsPtr(2000),
	})
	p := testPipeline(store)
	store.createTransactionErr = errors.New("connection reset")

	res, err := p.Process(context.Background(), saleCheckout(product.ID))
	require.NoError(t, err, "errors after the purchase commit must not propagate")
	require.Error(t, res.PartialErr)
	assert.Equal(t, 1, store.purchaseWrites)
	assert.Equal(t, 0, store.txWrites)
	assert.Equal(t, 1, store.licenseWrites, "license write proceeds despite the transaction failure")

	// Redelivery repairs the gap without touching existing rows.
	res, err = p.Process(context.Background(), saleCheckout(product.ID))
	require.NoError(t, err)
	require.NoError(t, res.PartialErr)
	assert.True(t, res.Duplicate)
	assert.Equal(t, 1, store.purchaseWrites)
	assert.Equal(t, 1, store.txWrites)
	assert.Equal(t, 1, store.licenseWrites)

	tx, err := store.GetTransactionByPurchaseID(context.Background(), res.PurchaseID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), tx.FeeCents)
	assert.Equal(t, int64(1800), tx.NetCents)
}

func TestFeeSplit(t *testing.T) {
	tests := []struct {
		gross   int64
		percent int
		fee     int64
	}{
		{2000, 10, 200},
		{999, 10, 100},  // 99.9 rounds up
		{994, 10, 99},   // 99.4 rounds down
		{5, 10, 1},      // 0.5 rounds up
		{4, 10, 0},      // 0.4 rounds down
		{0, 10, 0},
		{2000, 0, 0},
		{2000, 100, 2000},
		{1, 33, 0},
	}
	for _, tt := range tests {
		fee, net := FeeSplit(tt.gross, tt.percent)
		assert.Equal(t, tt.fee, fee, "gross=%d percent=%d", tt.gross, tt.percent)
		assert.Equal(t, tt.gross, fee+net, "split must conserve the gross amount")
		assert.GreaterOrEqual(t, fee, int64(0))
		assert.GreaterOrEqual(t, net, int64(0))
	}
}

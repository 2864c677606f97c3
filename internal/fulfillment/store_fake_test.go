package fulfillment

import (
	"context"
	"sync"
	"time"

	"github.com/sellforge/sellforge/internal/errs"
	"github.com/sellforge/sellforge/internal/models"
)

// fakeStore is an in-memory Store and ReconcilerStore with the same
// sentinel error behavior as the real one, plus write counters and
// error injection for exercising failure paths.
type fakeStore struct {
	mu sync.Mutex

	products     map[int64]*models.Product
	purchases    map[string]*models.Purchase
	transactions map[int64]*models.Transaction
	licenses     map[int64]*models.License
	webhookLogs  map[int64]*models.WebhookLog

	nextID int64

	purchaseWrites int
	txWrites       int
	licenseWrites  int

	createPurchaseErr    error
	createTransactionErr error
	createLicenseErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:     make(map[int64]*models.Product),
		purchases:    make(map[string]*models.Purchase),
		transactions: make(map[int64]*models.Transaction),
		licenses:     make(map[int64]*models.License),
		webhookLogs:  make(map[int64]*models.WebhookLog),
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) addProduct(p *models.Product) *models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	s.products[p.ID] = p
	return p
}

func (s *fakeStore) addWebhookLog(l *models.WebhookLog) *models.WebhookLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		l.ID = s.id()
	}
	s.webhookLogs[l.ID] = l
	return l
}

func (s *fakeStore) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, errs.NotFoundf("product %d not found", id)
	}
	return p, nil
}

func (s *fakeStore) GetPurchaseByPaymentRef(_ context.Context, ref string) (*models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[ref]
	if !ok {
		return nil, errs.NotFoundf("purchase for payment %s not found", ref)
	}
	return p, nil
}

func (s *fakeStore) CreatePurchase(_ context.Context, p *models.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createPurchaseErr != nil {
		err := s.createPurchaseErr
		s.createPurchaseErr = nil
		return err
	}
	if _, ok := s.purchases[p.PaymentRef]; ok {
		return errs.Conflictf("purchase for payment %s already exists", p.PaymentRef)
	}
	p.ID = s.id()
	s.purchases[p.PaymentRef] = p
	s.purchaseWrites++
	return nil
}

func (s *fakeStore) GetTransactionByPurchaseID(_ context.Context, purchaseID int64) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[purchaseID]
	if !ok {
		return nil, errs.NotFoundf("transaction for purchase %d not found", purchaseID)
	}
	return t, nil
}

func (s *fakeStore) CreateTransaction(_ context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createTransactionErr != nil {
		err := s.createTransactionErr
		s.createTransactionErr = nil
		return err
	}
	if _, ok := s.transactions[t.PurchaseID]; ok {
		return errs.Conflictf("transaction for purchase %d already exists", t.PurchaseID)
	}
	t.ID = s.id()
	s.transactions[t.PurchaseID] = t
	s.txWrites++
	return nil
}

func (s *fakeStore) GetLicenseByPurchaseID(_ context.Context, purchaseID int64) (*models.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.licenses[purchaseID]
	if !ok {
		return nil, errs.NotFoundf("license for purchase %d not found", purchaseID)
	}
	return l, nil
}

func (s *fakeStore) CreateLicense(_ context.Context, l *models.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createLicenseErr != nil {
		err := s.createLicenseErr
		s.createLicenseErr = nil
		return err
	}
	if _, ok := s.licenses[l.PurchaseID]; ok {
		return errs.Conflictf("license for purchase %d already exists", l.PurchaseID)
	}
	l.ID = s.id()
	s.licenses[l.PurchaseID] = l
	s.licenseWrites++
	return nil
}

func (s *fakeStore) UpdateWebhookLogStatus(_ context.Context, id int64, status models.WebhookLogStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.webhookLogs[id]
	if !ok {
		return errs.NotFoundf("webhook log %d not found", id)
	}
	l.Status = status
	l.ErrorMessage = errorMessage
	return nil
}

func (s *fakeStore) ListUnresolvedWebhookLogs(_ context.Context, stuckAfter time.Duration, limit int) ([]*models.WebhookLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.WebhookLog
	cutoff := time.Now().Add(-stuckAfter)
	for _, l := range s.webhookLogs {
		if len(out) >= limit {
			break
		}
		if l.Status == models.WebhookLogStatusFailed ||
			(l.Status == models.WebhookLogStatusReceived && l.CreatedAt.Before(cutoff)) {
			out = append(out, l)
		}
	}
	return out, nil
}

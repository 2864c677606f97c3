package db

import (
	"context"
	"fmt"
	"time"

	"github.com/sellforge/sellforge/internal/errs"
	"github.com/sellforge/sellforge/internal/models"
)

const purchaseColumns = `id, buyer_id, product_id, kind, start_date, end_date,
	license_key, payment_ref, status, created_at, updated_at`

// CreatePurchase inserts a purchase and assigns its ID. The unique
// constraint on payment_ref is the idempotency anchor for webhook
// processing: a duplicate insert, including one racing a concurrent
// delivery of the same event, returns errs.ErrConflict.
func (db *DB) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO purchases (buyer_id, product_id, kind, start_date, end_date,
			license_key, payment_ref, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, p.BuyerID, p.ProductID, string(p.Kind), p.StartDate, p.EndDate,
		p.LicenseKey, p.PaymentRef, string(p.Status), p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Conflictf("purchase for payment %s already exists", p.PaymentRef)
		}
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

// GetPurchaseByID returns a purchase by its ID.
func (db *DB) GetPurchaseByID(ctx context.Context, id int64) (*models.Purchase, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
	p, err := scanPurchase(row)
	if err != nil {
		if isNoRows(err) {
			return nil, errs.NotFoundf("purchase %d", id)
		}
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return p, nil
}

// GetPurchaseByPaymentRef returns the purchase created for an external
// payment reference, or errs.ErrNotFound if the event was never fulfilled.
func (db *DB) GetPurchaseByPaymentRef(ctx context.Context, ref string) (*models.Purchase, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE payment_ref = $1`, ref)
	p, err := scanPurchase(row)
	if err != nil {
		if isNoRows(err) {
			return nil, errs.NotFoundf("purchase for payment %s", ref)
		}
		return nil, fmt.Errorf("get purchase by payment ref: %w", err)
	}
	return p, nil
}

// GetPurchasesByBuyer returns all purchases made by a buyer, newest first.
func (db *DB) GetPurchasesByBuyer(ctx context.Context, buyerID int64) ([]*models.Purchase, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE buyer_id = $1
		ORDER BY created_at DESC
	`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list buyer purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*models.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// UpdatePurchaseStatus transitions a purchase's status.
func (db *DB) UpdatePurchaseStatus(ctx context.Context, id int64, status models.PurchaseStatus) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE purchases SET status = $2, updated_at = $3 WHERE id = $1
	`, id, string(status), time.Now())
	if err != nil {
		return fmt.Errorf("update purchase status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFoundf("purchase %d", id)
	}
	return nil
}

func scanPurchase(row rowScanner) (*models.Purchase, error) {
	var p models.Purchase
	var kindStr, statusStr string
	err := row.Scan(
		&p.ID, &p.BuyerID, &p.ProductID, &kindStr, &p.StartDate, &p.EndDate,
		&p.LicenseKey, &p.PaymentRef, &statusStr, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Kind = models.PurchaseKind(kindStr)
	p.Status = models.PurchaseStatus(statusStr)
	return &p, nil
}

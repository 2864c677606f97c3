package db

import (
	"context"
	"fmt"

	"github.com/sellforge/sellforge/internal/errs"
	"github.com/sellforge/sellforge/internal/models"
)

// CreateTransaction inserts the immutable ledger entry for a purchase.
// The ledger holds at most one entry per purchase; a duplicate insert
// (reconciler racing the pipeline) returns errs.ErrConflict.
func (db *DB) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO transactions (purchase_id, provider_payload, amount_cents, fee_cents, net_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, t.PurchaseID, t.ProviderPayload, t.AmountCents, t.FeeCents, t.NetCents, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Conflictf("transaction for purchase %d already exists", t.PurchaseID)
		}
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// GetTransactionByPurchaseID returns the ledger entry for a purchase.
func (db *DB) GetTransactionByPurchaseID(ctx context.Context, purchaseID int64) (*models.Transaction, error) {
	var t models.Transaction
	err := db.Pool.QueryRow(ctx, `
		SELECT id, purchase_id, provider_payload, amount_cents, fee_cents, net_cents, created_at
		FROM transactions
		WHERE purchase_id = $1
	`, purchaseID).Scan(
		&t.ID, &t.PurchaseID, &t.ProviderPayload, &t.AmountCents, &t.FeeCents, &t.NetCents, &t.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, errs.NotFoundf("transaction for purchase %d", purchaseID)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

// GetSellerTransactions returns every ledger entry for purchases of the
// seller's products, newest first.
func (db *DB) GetSellerTransactions(ctx context.Context, sellerID int64) ([]*models.Transaction, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT t.id, t.purchase_id, t.provider_payload, t.amount_cents, t.fee_cents, t.net_cents, t.created_at
		FROM transactions t
		JOIN purchases p ON p.id = t.purchase_id
		JOIN products pr ON pr.id = p.product_id
		WHERE pr.seller_id = $1
		ORDER BY t.created_at DESC
	`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list seller transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ListTransactions returns all ledger entries, newest first. Admin use only.
func (db *DB) ListTransactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, purchase_id, provider_payload, amount_cents, fee_cents, net_cents, created_at
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

type transactionRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectTransactions(rows transactionRows) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(&t.ID, &t.PurchaseID, &t.ProviderPayload, &t.AmountCents, &t.FeeCents, &t.NetCents, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, &t)
	}
	return txs, rows.Err()
}

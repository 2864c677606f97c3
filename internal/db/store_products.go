package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sellforge/sellforge/internal/errs"
	"github.com/sellforge/sellforge/internal/models"
)

// productColumns is the select list shared by all product queries.
const productColumns = `id, seller_id, title, description, summary,
	price_sale_cents, price_rent_cents, rent_period_days, storage_key,
	images, tags, version, license_type, status, created_at, updated_at`

// CreateProduct inserts a new product and assigns its ID. Images and tags
// are serialized to JSON only here, at the storage boundary.
func (db *DB) CreateProduct(ctx context.Context, p *models.Product) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("marshal product images: %w", err)
	}
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("marshal product tags: %w", err)
	}

	err = db.Pool.QueryRow(ctx, `
		INSERT INTO products (seller_id, title, description, summary,
			price_sale_cents, price_rent_cents, rent_period_days, storage_key,
			images, tags, version, license_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`, p.SellerID, p.Title, p.Description, p.Summary,
		p.PriceSaleCents, p.PriceRentCents, p.RentPeriodDays, p.StorageKey,
		images, tags, p.Version, p.LicenseType, string(p.Status), p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// GetProductByID returns a product by its ID.
func (db *DB) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if isNoRows(err) {
			return nil, errs.NotFoundf("product %d", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// UpdateProduct persists mutable product fields.
func (db *DB) UpdateProduct(ctx context.Context, p *models.Product) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("marshal product images: %w", err)
	}
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("marshal product tags: %w", err)
	}

	p.UpdatedAt = time.Now()
	_, err = db.Pool.Exec(ctx, `
		UPDATE products
		SET title = $2, description = $3, summary = $4,
			price_sale_cents = $5, price_rent_cents = $6, rent_period_days = $7,
			images = $8, tags = $9, version = $10, license_type = $11,
			status = $12, updated_at = $13
		WHERE id = $1
	`, p.ID, p.Title, p.Description, p.Summary,
		p.PriceSaleCents, p.PriceRentCents, p.RentPeriodDays,
		images, tags, p.Version, p.LicenseType, string(p.Status), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// SetProductStorageKey records the object-storage key for a product's file.
func (db *DB) SetProductStorageKey(ctx context.Context, productID int64, key string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE products SET storage_key = $2, updated_at = $3 WHERE id = $1
	`, productID, key, time.Now())
	if err != nil {
		return fmt.Errorf("set product storage key: %w", err)
	}
	return nil
}

// ListPublishedProducts returns published products, newest first.
func (db *DB) ListPublishedProducts(ctx context.Context, limit, offset int) ([]*models.Product, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE status = 'published'
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list published products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetProductsBySeller returns all products owned by a seller.
func (db *DB) GetProductsBySeller(ctx context.Context, sellerID int64) ([]*models.Product, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE seller_id = $1
		ORDER BY created_at DESC
	`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list seller products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// rowScanner matches both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var statusStr string
	var imagesBytes, tagsBytes []byte
	err := row.Scan(
		&p.ID, &p.SellerID, &p.Title, &p.Description, &p.Summary,
		&p.PriceSaleCents, &p.PriceRentCents, &p.RentPeriodDays, &p.StorageKey,
		&imagesBytes, &tagsBytes, &p.Version, &p.LicenseType, &statusStr,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = models.ProductStatus(statusStr)
	if err := json.Unmarshal(imagesBytes, &p.Images); err != nil {
		return nil, fmt.Errorf("unmarshal product images: %w", err)
	}
	if err := json.Unmarshal(tagsBytes, &p.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal product tags: %w", err)
	}
	return &p, nil
}

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/sellforge/sellforge/internal/errs"
	"github.com/sellforge/sellforge/internal/models"
)

// CreateLicense inserts the activation record for a purchase. At most one
// license exists per purchase; duplicates return errs.ErrConflict.
func (db *DB) CreateLicense(ctx context.Context, l *models.License) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO licenses (purchase_id, license_key, activations_allowed, activations_used, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, l.PurchaseID, l.LicenseKey, l.ActivationsAllowed, l.ActivationsUsed, l.ExpiresAt, l.CreatedAt,
	).Scan(&l.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Conflictf("license for purchase %d already exists", l.PurchaseID)
		}
		return fmt.Errorf("create license: %w", err)
	}
	return nil
}

// GetLicenseByKey returns a license by its key.
func (db *DB) GetLicenseByKey(ctx context.Context, key string) (*models.License, error) {
	return db.getLicense(ctx, "license_key = $1", key)
}

// GetLicenseByPurchaseID returns the license for a purchase.
func (db *DB) GetLicenseByPurchaseID(ctx context.Context, purchaseID int64) (*models.License, error) {
	return db.getLicense(ctx, "purchase_id = $1", purchaseID)
}

func (db *DB) getLicense(ctx context.Context, where string, arg any) (*models.License, error) {
	var l models.License
	err := db.Pool.QueryRow(ctx, `
		SELECT id, purchase_id, license_key, activations_allowed, activations_used, expires_at, created_at
		FROM licenses
		WHERE `+where,
		arg,
	).Scan(&l.ID, &l.PurchaseID, &l.LicenseKey, &l.ActivationsAllowed, &l.ActivationsUsed, &l.ExpiresAt, &l.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, errs.NotFoundf("license")
		}
		return nil, fmt.Errorf("get license: %w", err)
	}
	return &l, nil
}

// ActivateLicense consumes one activation of the license with the given
// key. The increment is a single conditional UPDATE so concurrent
// activations cannot exceed the allowed count. Returns the license after
// activation, errs.ErrExpired past expiry, or errs.ErrConflict when all
// activations are used.
func (db *DB) ActivateLicense(ctx context.Context, key string, at time.Time) (*models.License, error) {
	var l models.License
	err := db.Pool.QueryRow(ctx, `
		UPDATE licenses
		SET activations_used = activations_used + 1
		WHERE license_key = $1
		  AND activations_used < activations_allowed
		  AND (expires_at IS NULL OR expires_at > $2)
		RETURNING id, purchase_id, license_key, activations_allowed, activations_used, expires_at, created_at
	`, key, at).Scan(
		&l.ID, &l.PurchaseID, &l.LicenseKey, &l.ActivationsAllowed, &l.ActivationsUsed, &l.ExpiresAt, &l.CreatedAt,
	)
	if err == nil {
		return &l, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("activate license: %w", err)
	}

	// The conditional update matched nothing; read the row to report why.
	existing, getErr := db.GetLicenseByKey(ctx, key)
	if getErr != nil {
		return nil, getErr
	}
	if existing.Expired(at) {
		return nil, errs.Expiredf("license %s", key)
	}
	return nil, errs.Conflictf("license %s has no activations left", key)
}

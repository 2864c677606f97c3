package db

import (
	"context"
	"fmt"
	"time"

	"github.com/sellforge/sellforge/internal/errs"
	"github.com/sellforge/sellforge/internal/models"
)

// CreateUser inserts a new user and assigns its ID.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (email, name, password_hash, role, stripe_account_id, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, user.Email, user.Name, user.PasswordHash, string(user.Role), user.StripeAccountID,
		user.EmailVerified, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Conflictf("user with email %s already exists", user.Email)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByID returns a user by their ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.getUser(ctx, "id = $1", id)
}

// GetUserByEmail returns a user by their email address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.getUser(ctx, "email = $1", email)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var user models.User
	var roleStr string
	err := db.Pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, role, stripe_account_id, email_verified, created_at, updated_at
		FROM users
		WHERE `+where,
		arg,
	).Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &roleStr,
		&user.StripeAccountID, &user.EmailVerified, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, errs.NotFoundf("user")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.Role = models.UserRole(roleStr)
	return &user, nil
}

// UpdateUserStripeAccount records the user's connected payment account.
func (db *DB) UpdateUserStripeAccount(ctx context.Context, userID int64, accountID string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE users SET stripe_account_id = $2, updated_at = $3 WHERE id = $1
	`, userID, accountID, time.Now())
	if err != nil {
		return fmt.Errorf("update user stripe account: %w", err)
	}
	return nil
}

// SetUserEmailVerified marks the user's email address as verified.
func (db *DB) SetUserEmailVerified(ctx context.Context, userID int64) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE users SET email_verified = TRUE, updated_at = $2 WHERE id = $1
	`, userID, time.Now())
	if err != nil {
		return fmt.Errorf("set user email verified: %w", err)
	}
	return nil
}

// CreateEmailToken inserts an email verification token.
func (db *DB) CreateEmailToken(ctx context.Context, token *models.EmailToken) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO email_tokens (user_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, token.UserID, token.Token, token.ExpiresAt, token.CreatedAt).Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("create email token: %w", err)
	}
	return nil
}

// ConsumeEmailToken deletes and returns a verification token. A token that
// is absent or past its expiry yields an error; consumption is single-use.
func (db *DB) ConsumeEmailToken(ctx context.Context, token string) (*models.EmailToken, error) {
	var t models.EmailToken
	err := db.Pool.QueryRow(ctx, `
		DELETE FROM email_tokens
		WHERE token = $1
		RETURNING id, user_id, token, expires_at, created_at
	`, token).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, errs.NotFoundf("email token")
		}
		return nil, fmt.Errorf("consume email token: %w", err)
	}
	if time.Now().After(t.ExpiresAt) {
		return nil, errs.Expiredf("email token")
	}
	return &t, nil
}

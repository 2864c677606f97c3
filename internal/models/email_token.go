package models

import "time"

// EmailToken is a single-use email verification token.
type EmailToken struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEmailToken creates an EmailToken valid for the given duration.
func NewEmailToken(userID int64, token string, ttl time.Duration) *EmailToken {
	now := time.Now()
	return &EmailToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

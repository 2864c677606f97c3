package models

import "time"

// UserRole defines what a user may do on the marketplace.
type UserRole string

const (
	// UserRoleBuyer can browse and purchase products.
	UserRoleBuyer UserRole = "buyer"
	// UserRoleSeller can additionally list products and view revenue.
	UserRoleSeller UserRole = "seller"
	// UserRoleAdmin has full access.
	UserRoleAdmin UserRole = "admin"
)

// User represents a marketplace account.
type User struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name,omitempty"`
	PasswordHash    string    `json:"-"`
	Role            UserRole  `json:"role"`
	StripeAccountID string    `json:"stripe_account_id,omitempty"`
	EmailVerified   bool      `json:"email_verified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewUser creates a new User with the given details. The ID is assigned
// by the store on insert.
func NewUser(email, name, passwordHash string, role UserRole) *User {
	now := time.Now()
	return &User{
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsAdmin returns true if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// CanSell returns true if the user may list products.
func (u *User) CanSell() bool {
	return u.Role == UserRoleSeller || u.Role == UserRoleAdmin
}

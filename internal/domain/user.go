package domain

import (
	"slices"
	"time"
)

// User is a registered account. Wishlist holds product ids in insertion order
// and never contains the same id twice.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	Wishlist     []string  `json:"wishlist"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// InWishlist reports whether productID is saved in the wishlist.
func (u *User) InWishlist(productID string) bool {
	return slices.Contains(u.Wishlist, productID)
}

// ToggleWishlist removes productID when present and appends it otherwise.
// It reports whether the id was added.
func (u *User) ToggleWishlist(productID string) bool {
	if i := slices.Index(u.Wishlist, productID); i >= 0 {
		u.Wishlist = slices.Delete(u.Wishlist, i, i+1)
		return false
	}
	u.Wishlist = append(u.Wishlist, productID)
	return true
}

// RefreshToken represents a stored refresh token for a user session.
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

package repository

import (
	"context"
	"time"

	"github.com/utafrali/storefront/internal/domain"
)

// WishlistStore is the user-record store behind the wishlist service.
// Lookups of an unknown user return an error wrapping apperrors.ErrNotFound.
type WishlistStore interface {
	// GetByID loads the user record with its raw wishlist of product ids.
	GetByID(ctx context.Context, userID string) (*domain.User, error)

	// GetWishlistResolved loads the user's wishlist with each id replaced by
	// its product, in stored order. Ids without a product are skipped. The
	// result is never nil.
	GetWishlistResolved(ctx context.Context, userID string) ([]domain.Product, error)

	// SaveWishlist replaces the stored wishlist of the user.
	SaveWishlist(ctx context.Context, userID string, wishlist []string) error

	// RemoveFromAllWishlists drops productID from every wishlist and returns
	// the number of users touched.
	RemoveFromAllWishlists(ctx context.Context, productID string) (int64, error)
}

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user. A taken email yields apperrors.ErrAlreadyExists.
	Create(ctx context.Context, user *domain.User) error

	GetByID(ctx context.Context, id string) (*domain.User, error)

	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update writes the profile fields of user. The wishlist is left untouched.
	Update(ctx context.Context, user *domain.User) error
}

// RefreshTokenRepository defines the interface for refresh token persistence operations.
type RefreshTokenRepository interface {
	// Create stores a new refresh token hash.
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// GetByHash retrieves a refresh token record by its hash.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// RevokeByUserID revokes all refresh tokens for the given user.
	RevokeByUserID(ctx context.Context, userID string) error

	// Revoke revokes a specific refresh token by its hash.
	Revoke(ctx context.Context, tokenHash string) error
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// Create inserts a product. A taken slug yields apperrors.ErrAlreadyExists.
	Create(ctx context.Context, product *domain.Product) error

	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// List returns one page of products matching filter and the total count.
	List(ctx context.Context, filter domain.ProductFilter, offset, limit int) ([]domain.Product, int, error)

	Delete(ctx context.Context, id string) error
}

// CartRepository stores one cart per user. A missing cart yields
// apperrors.ErrNotFound.
type CartRepository interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// SaveIfVersion writes cart only when the stored version still equals
	// expected (zero for a cart that does not exist yet) and bumps
	// cart.Version. A lost race yields apperrors.ErrConflict.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expected int64) error

	Delete(ctx context.Context, userID string) error
}

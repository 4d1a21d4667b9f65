package http

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/pagination"
)

// Services consumed by the handlers. The concrete types live in
// internal/service.

type AuthService interface {
	Register(ctx context.Context, input service.RegisterInput) (*domain.User, *domain.TokenPair, error)
	Login(ctx context.Context, input service.LoginInput) (*domain.User, *domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, input service.UpdateProfileInput) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}

type WishlistService interface {
	Toggle(ctx context.Context, userID, productID string) ([]domain.Product, error)
	Get(ctx context.Context, userID string) ([]domain.Product, error)
	Contains(ctx context.Context, userID, productID string) (bool, error)
}

type CartService interface {
	Get(ctx context.Context, userID string) (*domain.CartView, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.CartView, error)
	UpdateItem(ctx context.Context, userID, productID string, quantity int) (*domain.CartView, error)
	RemoveItem(ctx context.Context, userID, productID string) (*domain.CartView, error)
	Clear(ctx context.Context, userID string) error
}

type ProductService interface {
	Create(ctx context.Context, input service.CreateProductInput) (*domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error)
	Search(ctx context.Context, q domain.ProductSearch, page pagination.Params) ([]domain.Product, int, error)
	Delete(ctx context.Context, id string) error
}

var (
	_ AuthService     = (*service.AuthService)(nil)
	_ WishlistService = (*service.WishlistService)(nil)
	_ CartService     = (*service.CartService)(nil)
	_ ProductService  = (*service.ProductService)(nil)
)

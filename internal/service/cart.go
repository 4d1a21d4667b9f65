package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

// Cart limits.
const (
	MaxQuantityPerItem = 100
	MaxItemsPerCart    = 50
)

// CartService keeps the caller's cart and prices it against the catalog.
// A nil cart repository means no cart store is configured and every call
// answers 503.
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	logger   *slog.Logger
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository, l *slog.Logger) *CartService {
	return &CartService{carts: carts, products: products, logger: l}
}

// Get returns the user's cart resolved to products. A user without a cart
// gets an empty one.
func (s *CartService) Get(ctx context.Context, userID string) (*domain.CartView, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, cart)
}

// AddItem adds quantity units of productID, merging with a line already
// in the cart.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.CartView, error) {
	if quantity < 1 {
		return nil, apperrors.InvalidInput("quantity must be at least 1")
	}
	return s.setItem(ctx, userID, productID, func(current int) (int, error) {
		if current+quantity > MaxQuantityPerItem {
			return 0, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem))
		}
		return current + quantity, nil
	})
}

// UpdateItem sets the quantity of productID, adding the product when it is
// not in the cart yet. A zero quantity removes the line.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, quantity int) (*domain.CartView, error) {
	if quantity < 0 {
		return nil, apperrors.InvalidInput("quantity must not be negative")
	}
	if quantity > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}
	return s.setItem(ctx, userID, productID, func(int) (int, error) { return quantity, nil })
}

// setItem loads the cart, asks next for the new quantity of productID
// given the current one and saves the result against the loaded version.
func (s *CartService) setItem(ctx context.Context, userID, productID string, next func(current int) (int, error)) (*domain.CartView, error) {
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	current := 0
	if i := cart.FindItemIndex(productID); i >= 0 {
		current = cart.Items[i].Quantity
	}
	quantity, err := next(current)
	if err != nil {
		return nil, err
	}

	if quantity > 0 {
		if _, err := s.products.GetByID(ctx, productID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NotFound("product", productID)
			}
			return nil, fmt.Errorf("load product %s for cart: %w", productID, err)
		}
		if current == 0 && len(cart.Items) >= MaxItemsPerCart {
			return nil, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
		}
	} else if current == 0 {
		return nil, apperrors.NotFound("cart item", productID)
	}

	expected := cart.Version
	cart.SetQuantity(productID, quantity)
	if err := s.save(ctx, cart, expected); err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "cart item updated",
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)
	return s.resolve(ctx, cart)
}

// RemoveItem drops productID from the cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.CartView, error) {
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	expected := cart.Version
	if !cart.RemoveItem(productID) {
		return nil, apperrors.NotFound("cart item", productID)
	}
	if err := s.save(ctx, cart, expected); err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "cart item removed",
		slog.String("product_id", productID))
	return s.resolve(ctx, cart)
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	if s.carts == nil {
		return errCartUnconfigured()
	}
	if err := s.carts.Delete(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "cart cleared")
	return nil
}

func errCartUnconfigured() error {
	return apperrors.Unavailable("cart is not configured", nil)
}

func (s *CartService) load(ctx context.Context, userID string) (*domain.Cart, error) {
	if s.carts == nil {
		return nil, errCartUnconfigured()
	}
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	cart, err := s.carts.Get(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return domain.NewCart(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart, expected int64) error {
	err := s.carts.SaveIfVersion(ctx, cart, expected)
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("save cart: %w", err)
}

// resolve looks up every line's product. Lines whose product no longer
// exists are left out of the view but stay in the stored cart until the
// user changes it.
func (s *CartService) resolve(ctx context.Context, cart *domain.Cart) (*domain.CartView, error) {
	lines := make([]domain.CartLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		p, err := s.products.GetByID(ctx, item.ProductID)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve cart product %s: %w", item.ProductID, err)
		}
		lines = append(lines, domain.CartLine{Product: *p, Quantity: item.Quantity})
	}
	return domain.NewCartView(lines), nil
}

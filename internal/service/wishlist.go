package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

// WishlistEvents publishes wishlist changes.
type WishlistEvents interface {
	PublishWishlistToggled(ctx context.Context, userID, productID string, added bool) error
}

// WishlistService toggles and reads the wishlist stored on a user record.
//
// A toggle is load, mutate, persist and reload with no lock or version
// check, so two concurrent toggles of the same user can lose an update.
type WishlistService struct {
	store   repository.WishlistStore
	catalog catalog.Checker
	events  WishlistEvents
	logger  *slog.Logger
}

type WishlistOption func(*WishlistService)

// WithProductValidation makes Toggle reject additions of product ids the
// checker does not know. Removals are never checked.
func WithProductValidation(c catalog.Checker) WishlistOption {
	return func(s *WishlistService) { s.catalog = c }
}

func WithWishlistEvents(e WishlistEvents) WishlistOption {
	return func(s *WishlistService) { s.events = e }
}

func NewWishlistService(store repository.WishlistStore, l *slog.Logger, opts ...WishlistOption) *WishlistService {
	s := &WishlistService{store: store, logger: l}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Toggle removes productID from the user's wishlist when present and
// appends it otherwise, then returns the resolved wishlist. An unknown user
// is reported before an empty product id.
func (s *WishlistService) Toggle(ctx context.Context, userID, productID string) ([]domain.Product, error) {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, userLookupError(err, userID, "load user for wishlist toggle")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	if !user.InWishlist(productID) && s.catalog != nil {
		exists, err := s.catalog.Exists(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("validate product %s: %w", productID, err)
		}
		if !exists {
			return nil, apperrors.NotFound("product", productID)
		}
	}

	added := user.ToggleWishlist(productID)
	if err := s.store.SaveWishlist(ctx, userID, user.Wishlist); err != nil {
		return nil, userLookupError(err, userID, "save wishlist")
	}

	log := logger.WithContext(ctx, s.logger)
	if s.events != nil {
		if err := s.events.PublishWishlistToggled(ctx, userID, productID, added); err != nil {
			log.ErrorContext(ctx, "failed to publish wishlist event",
				slog.String("product_id", productID),
				logger.Err(err),
			)
		}
	}

	log.InfoContext(ctx, "wishlist toggled",
		slog.String("product_id", productID),
		slog.Bool("added", added),
		slog.Int("size", len(user.Wishlist)),
	)

	return s.Get(ctx, userID)
}

// Get returns the user's wishlist resolved to products, in stored order.
func (s *WishlistService) Get(ctx context.Context, userID string) ([]domain.Product, error) {
	products, err := s.store.GetWishlistResolved(ctx, userID)
	if err != nil {
		return nil, userLookupError(err, userID, "get resolved wishlist")
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// Contains reports whether productID is on the user's wishlist.
func (s *WishlistService) Contains(ctx context.Context, userID, productID string) (bool, error) {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return false, userLookupError(err, userID, "load user for wishlist lookup")
	}
	return user.InWishlist(productID), nil
}

// userLookupError turns a store not-found into a user NotFound and wraps
// everything else.
func userLookupError(err error, userID, action string) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFound("user", userID)
	}
	return fmt.Errorf("%s: %w", action, err)
}

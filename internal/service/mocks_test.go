package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

var discardLogger = slog.New(slog.DiscardHandler)

// --- WishlistStore ---

type mockWishlistStore struct {
	mock.Mock
}

func (m *mockWishlistStore) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockWishlistStore) GetWishlistResolved(ctx context.Context, userID string) ([]domain.Product, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockWishlistStore) SaveWishlist(ctx context.Context, userID string, wishlist []string) error {
	return m.Called(ctx, userID, wishlist).Error(0)
}

func (m *mockWishlistStore) RemoveFromAllWishlists(ctx context.Context, productID string) (int64, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(int64), args.Error(1)
}

// memoryStore is an in-memory WishlistStore that resolves ids against a
// product catalog, skipping unknown ids.
type memoryStore struct {
	users    map[string]*domain.User
	products map[string]domain.Product
	writes   int
}

func newMemoryStore(products ...string) *memoryStore {
	s := &memoryStore{users: map[string]*domain.User{}, products: map[string]domain.Product{}}
	for _, id := range products {
		s.products[id] = domain.Product{ID: id, Name: "Product " + id}
	}
	return s
}

func (s *memoryStore) addUser(id string, wishlist ...string) {
	s.users[id] = &domain.User{ID: id, Wishlist: append([]string{}, wishlist...)}
}

func (s *memoryStore) GetByID(_ context.Context, userID string) (*domain.User, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	cp.Wishlist = slices.Clone(u.Wishlist)
	return &cp, nil
}

func (s *memoryStore) GetWishlistResolved(_ context.Context, userID string) ([]domain.Product, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, apperrors.NotFound("user", userID)
	}
	out := []domain.Product{}
	for _, id := range u.Wishlist {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memoryStore) SaveWishlist(_ context.Context, userID string, wishlist []string) error {
	u, ok := s.users[userID]
	if !ok {
		return apperrors.NotFound("user", userID)
	}
	s.writes++
	u.Wishlist = slices.Clone(wishlist)
	return nil
}

func (s *memoryStore) RemoveFromAllWishlists(_ context.Context, productID string) (int64, error) {
	var n int64
	for _, u := range s.users {
		if i := slices.Index(u.Wishlist, productID); i >= 0 {
			u.Wishlist = slices.Delete(u.Wishlist, i, i+1)
			n++
		}
	}
	return n, nil
}

// --- Catalog and events ---

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) Exists(ctx context.Context, productID string) (bool, error) {
	args := m.Called(ctx, productID)
	return args.Bool(0), args.Error(1)
}

type mockWishlistEvents struct {
	mock.Mock
}

func (m *mockWishlistEvents) PublishWishlistToggled(ctx context.Context, userID, productID string, added bool) error {
	return m.Called(ctx, userID, productID, added).Error(0)
}

// --- User and token repositories ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return m.Called(ctx, userID, tokenHash, expiresAt).Error(0)
}

func (m *mockRefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshTokenRepository) RevokeByUserID(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	return m.Called(ctx, tokenHash).Error(0)
}

type mockUserEvents struct {
	mock.Mock
}

func (m *mockUserEvents) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

// --- Products ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, f domain.ProductFilter, offset, limit int) ([]domain.Product, int, error) {
	args := m.Called(ctx, f, offset, limit)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockProductEvents struct {
	mock.Mock
}

func (m *mockProductEvents) PublishProductCreated(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductEvents) PublishProductDeleted(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockProductIndex struct {
	mock.Mock
}

func (m *mockProductIndex) Index(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductIndex) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockProductIndex) BulkIndex(ctx context.Context, products []domain.Product) error {
	return m.Called(ctx, products).Error(0)
}

func (m *mockProductIndex) Search(ctx context.Context, q domain.ProductSearch, page pagination.Params) ([]domain.Product, int, error) {
	args := m.Called(ctx, q, page)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) SaveIfVersion(ctx context.Context, cart *domain.Cart, expected int64) error {
	return m.Called(ctx, cart, expected).Error(0)
}

func (m *mockCartRepository) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

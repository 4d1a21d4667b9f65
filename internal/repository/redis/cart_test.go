package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func setupCartStore(t *testing.T) (*CartStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCartStore(client, 24*time.Hour), mr
}

func TestCartStore_Get_NotFound(t *testing.T) {
	store, _ := setupCartStore(t)

	_, err := store.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartStore_SaveAndGet(t *testing.T) {
	store, mr := setupCartStore(t)
	ctx := context.Background()

	cart := domain.NewCart("u1")
	cart.SetQuantity("p1", 2)
	cart.SetQuantity("p2", 1)

	require.NoError(t, store.SaveIfVersion(ctx, cart, 0))
	assert.Equal(t, int64(1), cart.Version)
	assert.False(t, cart.UpdatedAt.IsZero())
	assert.True(t, mr.Exists("storefront:cart:u1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("storefront:cart:u1"))

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, []domain.CartItem{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 1}}, got.Items)
}

func TestCartStore_SaveIfVersion_StaleVersionConflicts(t *testing.T) {
	store, _ := setupCartStore(t)
	ctx := context.Background()

	first := domain.NewCart("u1")
	first.SetQuantity("p1", 1)
	require.NoError(t, store.SaveIfVersion(ctx, first, 0))

	// A second writer that read the cart before the first save.
	stale := domain.NewCart("u1")
	stale.SetQuantity("p2", 1)
	err := store.SaveIfVersion(ctx, stale, 0)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, int64(0), stale.Version)

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []domain.CartItem{{ProductID: "p1", Quantity: 1}}, got.Items)
}

func TestCartStore_SaveIfVersion_RefreshesTTL(t *testing.T) {
	store, mr := setupCartStore(t)
	ctx := context.Background()

	cart := domain.NewCart("u1")
	cart.SetQuantity("p1", 1)
	require.NoError(t, store.SaveIfVersion(ctx, cart, 0))

	mr.FastForward(20 * time.Hour)
	cart.SetQuantity("p1", 3)
	require.NoError(t, store.SaveIfVersion(ctx, cart, 1))
	assert.Equal(t, 24*time.Hour, mr.TTL("storefront:cart:u1"))

	mr.FastForward(25 * time.Hour)
	_, err := store.Get(ctx, "u1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartStore_Get_EmptyItemsIsSlice(t *testing.T) {
	store, mr := setupCartStore(t)
	require.NoError(t, mr.Set("storefront:cart:u1", `{"user_id":"u1","version":3}`))

	got, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, got.Items)
	assert.Equal(t, int64(3), got.Version)
}

func TestCartStore_Delete(t *testing.T) {
	store, mr := setupCartStore(t)
	ctx := context.Background()

	cart := domain.NewCart("u1")
	cart.SetQuantity("p1", 1)
	require.NoError(t, store.SaveIfVersion(ctx, cart, 0))

	require.NoError(t, store.Delete(ctx, "u1"))
	assert.False(t, mr.Exists("storefront:cart:u1"))

	// Deleting a missing cart is not an error.
	require.NoError(t, store.Delete(ctx, "u1"))
}

func TestCartStore_RedisDown(t *testing.T) {
	store, mr := setupCartStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

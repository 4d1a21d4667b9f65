package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func newMockT(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func productDoc(id, name string) bson.D {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: name},
		{Key: "slug", Value: id + "-slug"},
		{Key: "category", Value: "home"},
		{Key: "initial_price", Value: int64(1000)},
		{Key: "currency", Value: "USD"},
		{Key: "status", Value: domain.ProductStatusPublished},
		{Key: "created_at", Value: now},
		{Key: "updated_at", Value: now},
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	mt := newMockT(t)

	mt.Run("found", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "storefront.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "email", Value: "u1@example.com"},
			{Key: "role", Value: domain.RoleCustomer},
			{Key: "is_active", Value: true},
			{Key: "wishlist", Value: bson.A{"p1", "p2"}},
		}))

		u, err := repo.GetByID(context.Background(), "u1")
		require.NoError(mt, err)
		assert.Equal(mt, "u1@example.com", u.Email)
		assert.Equal(mt, []string{"p1", "p2"}, u.Wishlist)
	})

	mt.Run("missing wishlist field decodes empty", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "storefront.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
		}))

		u, err := repo.GetByID(context.Background(), "u1")
		require.NoError(mt, err)
		assert.NotNil(mt, u.Wishlist)
		assert.Empty(mt, u.Wishlist)
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "storefront.users", mtest.FirstBatch))

		_, err := repo.GetByID(context.Background(), "ghost")
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	mt := newMockT(t)

	mt.Run("duplicate", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		err := repo.Create(context.Background(), &domain.User{ID: "u1", Email: "a@example.com"})
		assert.ErrorIs(mt, err, apperrors.ErrAlreadyExists)
	})
}

func TestUserRepository_GetWishlistResolved(t *testing.T) {
	mt := newMockT(t)

	mt.Run("keeps stored order and skips dangling ids", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "storefront.users", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "u1"},
				{Key: "wishlist", Value: bson.A{"p3", "deleted", "p1"}},
			}),
			// $in returns documents in natural order, not wishlist order.
			mtest.CreateCursorResponse(0, "storefront.products", mtest.FirstBatch,
				productDoc("p1", "Desk"),
				productDoc("p3", "Lamp"),
			),
		)

		got, err := repo.GetWishlistResolved(context.Background(), "u1")
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, "p3", got[0].ID)
		assert.Equal(mt, "Lamp", got[0].Name)
		assert.Equal(mt, "p1", got[1].ID)
	})

	mt.Run("empty wishlist", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "storefront.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "wishlist", Value: bson.A{}},
		}))

		got, err := repo.GetWishlistResolved(context.Background(), "u1")
		require.NoError(mt, err)
		assert.NotNil(mt, got)
		assert.Empty(mt, got)
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "storefront.users", mtest.FirstBatch))

		_, err := repo.GetWishlistResolved(context.Background(), "ghost")
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})
}

func TestUserRepository_SaveWishlist(t *testing.T) {
	mt := newMockT(t)

	mt.Run("matched", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		assert.NoError(mt, repo.SaveWishlist(context.Background(), "u1", []string{"p1"}))
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := repo.SaveWishlist(context.Background(), "ghost", nil)
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})

	mt.Run("command error", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    91,
			Message: "shutdown in progress",
		}))

		err := repo.SaveWishlist(context.Background(), "u1", []string{"p1"})
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "save wishlist")
		assert.NotErrorIs(mt, err, apperrors.ErrNotFound)
	})
}

func TestUserRepository_RemoveFromAllWishlists(t *testing.T) {
	mt := newMockT(t)

	mt.Run("pulls from every match", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 4},
			bson.E{Key: "nModified", Value: 4},
		))

		n, err := repo.RemoveFromAllWishlists(context.Background(), "p1")
		require.NoError(mt, err)
		assert.Equal(mt, int64(4), n)
	})
}

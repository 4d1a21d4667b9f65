package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func TestProductRepository_GetByID(t *testing.T) {
	mt := newMockT(t)

	mt.Run("found", func(mt *mtest.T) {
		repo := NewProductRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "storefront.products", mtest.FirstBatch, productDoc("p1", "Desk")))

		p, err := repo.GetByID(context.Background(), "p1")
		require.NoError(mt, err)
		assert.Equal(mt, "Desk", p.Name)
		assert.Equal(mt, int64(1000), p.InitialPrice)
		assert.Nil(mt, p.DiscountedPrice)
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewProductRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "storefront.products", mtest.FirstBatch))

		_, err := repo.GetByID(context.Background(), "nope")
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
		assert.Equal(mt, 404, apperrors.HTTPStatus(err))
	})
}

func TestProductRepository_List(t *testing.T) {
	mt := newMockT(t)

	mt.Run("counts and pages", func(mt *mtest.T) {
		repo := NewProductRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "storefront.products", mtest.FirstBatch, bson.D{{Key: "n", Value: int32(7)}}),
			mtest.CreateCursorResponse(0, "storefront.products", mtest.FirstBatch,
				productDoc("p7", "Chair"),
				productDoc("p6", "Rug"),
			),
		)

		got, total, err := repo.List(context.Background(), domain.ProductFilter{Category: "home"}, 0, 2)
		require.NoError(mt, err)
		assert.Equal(mt, 7, total)
		require.Len(mt, got, 2)
		assert.Equal(mt, "p7", got[0].ID)
	})
}

func TestProductRepository_Delete(t *testing.T) {
	mt := newMockT(t)

	mt.Run("deleted", func(mt *mtest.T) {
		repo := NewProductRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		assert.NoError(mt, repo.Delete(context.Background(), "p1"))
	})

	mt.Run("missing", func(mt *mtest.T) {
		repo := NewProductRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		assert.ErrorIs(mt, repo.Delete(context.Background(), "p1"), apperrors.ErrNotFound)
	})
}

func TestRefreshTokenRepository_GetByHash(t *testing.T) {
	mt := newMockT(t)

	mt.Run("found", func(mt *mtest.T) {
		repo := NewRefreshTokenRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "storefront.refresh_tokens", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "rt1"},
			{Key: "user_id", Value: "u1"},
			{Key: "token_hash", Value: "h1"},
		}))

		rt, err := repo.GetByHash(context.Background(), "h1")
		require.NoError(mt, err)
		assert.Equal(mt, "u1", rt.UserID)
		assert.Nil(mt, rt.RevokedAt)
	})

	mt.Run("missing", func(mt *mtest.T) {
		repo := NewRefreshTokenRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "storefront.refresh_tokens", mtest.FirstBatch))

		_, err := repo.GetByHash(context.Background(), "h2")
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})
}

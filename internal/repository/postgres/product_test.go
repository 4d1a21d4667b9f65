package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func productRows(products ...*domain.Product) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "name", "slug", "description", "category", "niche", "image_url",
		"initial_price", "discounted_price", "currency", "status", "created_at", "updated_at",
	})
	for _, p := range products {
		rows.AddRow(p.ID, p.Name, p.Slug, p.Description, p.Category, p.Niche, p.ImageURL,
			p.InitialPrice, p.DiscountedPrice, p.Currency, p.Status, p.CreatedAt, p.UpdatedAt)
	}
	return rows
}

func sampleProduct() *domain.Product {
	now := time.Now().UTC().Truncate(time.Microsecond)
	discount := int64(1999)
	return &domain.Product{
		ID:              "p1",
		Name:            "Linen Shirt",
		Slug:            "linen-shirt",
		Description:     "Breathable",
		Category:        "apparel",
		Niche:           "summer",
		ImageURL:        "https://cdn.example.com/p1.jpg",
		InitialPrice:    2999,
		DiscountedPrice: &discount,
		Currency:        "USD",
		Status:          domain.ProductStatusPublished,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestProductRepository_Create_DuplicateSlug(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	p := sampleProduct()
	mock.ExpectExec("INSERT INTO products").
		WithArgs(p.ID, p.Name, p.Slug, p.Description, p.Category, p.Niche, p.ImageURL,
			p.InitialPrice, p.DiscountedPrice, p.Currency, p.Status, p.CreatedAt, p.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), p)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectQuery("SELECT .+ FROM products WHERE id =").
		WithArgs("p1").
		WillReturnRows(productRows(p))

	got, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, int64(1999), got.EffectivePrice())
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products WHERE id =").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductRepository_List_FiltersByCategory(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products WHERE category = \$1`).
		WithArgs("apparel").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(41))
	mock.ExpectQuery(`FROM products WHERE category = \$1 ORDER BY created_at DESC, id LIMIT \$2 OFFSET \$3`).
		WithArgs("apparel", 20, 40).
		WillReturnRows(productRows(p))

	got, total, err := repo.List(context.Background(), domain.ProductFilter{Category: "apparel"}, 40, 20)
	require.NoError(t, err)
	assert.Equal(t, 41, total)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Delete(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectExec("DELETE FROM products").
		WithArgs("p1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM products").
		WithArgs("p1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), "p1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "p1"), apperrors.ErrNotFound)
}

func TestRefreshTokenRepository_GetByHash(t *testing.T) {
	mock := newMock(t)
	repo := NewRefreshTokenRepository(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)
	revoked := now.Add(-time.Minute)

	mock.ExpectQuery("SELECT .+ FROM refresh_tokens").
		WithArgs("hash-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at", "revoked_at"}).
			AddRow("rt-1", "u1", "hash-1", now.Add(time.Hour), now, &revoked))

	rt, err := repo.GetByHash(context.Background(), "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rt.UserID)
	require.NotNil(t, rt.RevokedAt)
	assert.Equal(t, revoked, *rt.RevokedAt)

	mock.ExpectQuery("SELECT .+ FROM refresh_tokens").
		WithArgs("hash-2").
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetByHash(context.Background(), "hash-2")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRefreshTokenRepository_RevokeByUserID(t *testing.T) {
	mock := newMock(t)
	repo := NewRefreshTokenRepository(mock)

	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
		WithArgs(pgxmock.AnyArg(), "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	require.NoError(t, repo.RevokeByUserID(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

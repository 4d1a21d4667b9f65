package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

func ptr[T any](v T) *T { return &v }

func TestProductService_Create(t *testing.T) {
	repo := &mockProductRepository{}
	events := &mockProductEvents{}
	repo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
		return p.Slug == "creme-brulee-set" && p.Currency == "EUR" && p.Status == domain.ProductStatusPublished
	})).Return(nil)
	events.On("PublishProductCreated", mock.Anything, mock.Anything).Return(nil)
	svc := NewProductService(repo, events, discardLogger)

	p, err := svc.Create(context.Background(), CreateProductInput{
		Name:            "Crème Brûlée Set",
		Category:        "kitchen",
		InitialPrice:    2500,
		DiscountedPrice: ptr(int64(1999)),
		Currency:        "eur",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, int64(1999), p.EffectivePrice())
	repo.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestProductService_Create_SlugCollisionAddsSuffix(t *testing.T) {
	repo := &mockProductRepository{}
	events := &mockProductEvents{}
	repo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool { return p.Slug == "mug" })).
		Return(apperrors.ErrAlreadyExists).Once()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool { return p.Slug != "mug" })).
		Return(nil).Once()
	events.On("PublishProductCreated", mock.Anything, mock.Anything).Return(nil)
	svc := NewProductService(repo, events, discardLogger)

	p, err := svc.Create(context.Background(), CreateProductInput{Name: "Mug", InitialPrice: 900})
	require.NoError(t, err)
	assert.Equal(t, "mug-"+p.ID[:8], p.Slug)
	assert.Equal(t, "USD", p.Currency)
}

func TestProductService_Create_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input CreateProductInput
	}{
		{"empty name", CreateProductInput{Name: "  "}},
		{"punctuation only name", CreateProductInput{Name: "!!!"}},
		{"negative price", CreateProductInput{Name: "Mug", InitialPrice: -1}},
		{"discount above price", CreateProductInput{Name: "Mug", InitialPrice: 100, DiscountedPrice: ptr(int64(200))}},
		{"bad currency", CreateProductInput{Name: "Mug", Currency: "EURO"}},
		{"bad status", CreateProductInput{Name: "Mug", Status: "sold"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockProductRepository{}
			svc := NewProductService(repo, &mockProductEvents{}, discardLogger)

			_, err := svc.Create(context.Background(), tt.input)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestProductService_Get_NotFound(t *testing.T) {
	repo := &mockProductRepository{}
	repo.On("GetByID", mock.Anything, "p9").Return(nil, apperrors.ErrNotFound)
	svc := NewProductService(repo, &mockProductEvents{}, discardLogger)

	_, err := svc.Get(context.Background(), "p9")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "product with id p9")
}

func TestProductService_List(t *testing.T) {
	repo := &mockProductRepository{}
	filter := domain.ProductFilter{Category: "kitchen"}
	repo.On("List", mock.Anything, filter, 20, 10).Return([]domain.Product(nil), 25, nil)
	svc := NewProductService(repo, &mockProductEvents{}, discardLogger)

	products, total, err := svc.List(context.Background(), filter, pagination.Params{Page: 3, PerPage: 10})
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Equal(t, 25, total)

	_, _, err = svc.List(context.Background(), domain.ProductFilter{Status: "bogus"}, pagination.DefaultParams())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestProductService_Delete(t *testing.T) {
	t.Run("publishes event", func(t *testing.T) {
		repo := &mockProductRepository{}
		events := &mockProductEvents{}
		repo.On("Delete", mock.Anything, "p1").Return(nil)
		events.On("PublishProductDeleted", mock.Anything, "p1").Return(errors.New("broker down"))
		svc := NewProductService(repo, events, discardLogger)

		require.NoError(t, svc.Delete(context.Background(), "p1"))
		events.AssertExpectations(t)
	})

	t.Run("unknown product", func(t *testing.T) {
		repo := &mockProductRepository{}
		events := &mockProductEvents{}
		repo.On("Delete", mock.Anything, "p1").Return(apperrors.ErrNotFound)
		svc := NewProductService(repo, events, discardLogger)

		err := svc.Delete(context.Background(), "p1")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		events.AssertNotCalled(t, "PublishProductDeleted", mock.Anything, mock.Anything)
	})
}

func TestProductService_IndexFollowsWrites(t *testing.T) {
	repo := &mockProductRepository{}
	idx := &mockProductIndex{}
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("Delete", mock.Anything, mock.Anything).Return(nil)
	idx.On("Index", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool { return p.Name == "Mug" })).
		Return(errors.New("cluster red"))
	idx.On("Delete", mock.Anything, mock.Anything).Return(nil)
	svc := NewProductService(repo, nil, discardLogger, WithSearchIndex(idx))

	p, err := svc.Create(context.Background(), CreateProductInput{Name: "Mug", InitialPrice: 900})
	require.NoError(t, err, "index failure must not fail the write")

	require.NoError(t, svc.Delete(context.Background(), p.ID))
	idx.AssertCalled(t, "Delete", mock.Anything, p.ID)
}

func TestProductService_Search(t *testing.T) {
	page := pagination.Params{Page: 1, PerPage: 20}

	t.Run("not configured", func(t *testing.T) {
		svc := NewProductService(&mockProductRepository{}, nil, discardLogger)
		_, _, err := svc.Search(context.Background(), domain.ProductSearch{Text: "mug"}, page)
		assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	})

	t.Run("defaults sort and trims text", func(t *testing.T) {
		idx := &mockProductIndex{}
		want := domain.ProductSearch{Text: "mug", Sort: domain.SortRelevance}
		idx.On("Search", mock.Anything, want, page).Return([]domain.Product(nil), 0, nil)
		svc := NewProductService(&mockProductRepository{}, nil, discardLogger, WithSearchIndex(idx))

		products, total, err := svc.Search(context.Background(), domain.ProductSearch{Text: "  mug "}, page)
		require.NoError(t, err)
		assert.NotNil(t, products)
		assert.Zero(t, total)
		idx.AssertExpectations(t)
	})

	t.Run("index failure is unavailable", func(t *testing.T) {
		idx := &mockProductIndex{}
		idx.On("Search", mock.Anything, mock.Anything, page).Return([]domain.Product(nil), 0, errors.New("timeout"))
		svc := NewProductService(&mockProductRepository{}, nil, discardLogger, WithSearchIndex(idx))

		_, _, err := svc.Search(context.Background(), domain.ProductSearch{}, page)
		assert.Equal(t, 503, apperrors.HTTPStatus(err))
	})

	invalid := []struct {
		name string
		q    domain.ProductSearch
	}{
		{"unknown sort", domain.ProductSearch{Sort: "cheapest"}},
		{"unknown status", domain.ProductSearch{Status: "hidden"}},
		{"negative price", domain.ProductSearch{MinPrice: ptr(int64(-1))}},
		{"inverted range", domain.ProductSearch{MinPrice: ptr(int64(500)), MaxPrice: ptr(int64(100))}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			idx := &mockProductIndex{}
			svc := NewProductService(&mockProductRepository{}, nil, discardLogger, WithSearchIndex(idx))

			_, _, err := svc.Search(context.Background(), tt.q, page)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			idx.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestProductService_Reindex(t *testing.T) {
	repo := &mockProductRepository{}
	idx := &mockProductIndex{}
	first := make([]domain.Product, reindexBatchSize)
	second := []domain.Product{{ID: "last"}}
	repo.On("List", mock.Anything, domain.ProductFilter{}, 0, reindexBatchSize).Return(first, reindexBatchSize+1, nil)
	repo.On("List", mock.Anything, domain.ProductFilter{}, reindexBatchSize, reindexBatchSize).Return(second, reindexBatchSize+1, nil)
	idx.On("BulkIndex", mock.Anything, mock.Anything).Return(nil).Twice()
	svc := NewProductService(repo, nil, discardLogger, WithSearchIndex(idx))

	n, err := svc.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reindexBatchSize+1, n)
	repo.AssertExpectations(t)
	idx.AssertExpectations(t)
}

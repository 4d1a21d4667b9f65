package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/slug"
)

const defaultCurrency = "USD"

// ProductEvents publishes catalog changes.
type ProductEvents interface {
	PublishProductCreated(ctx context.Context, product *domain.Product) error
	PublishProductDeleted(ctx context.Context, productID string) error
}

// ProductIndex is a full-text product index kept beside the store.
type ProductIndex interface {
	Index(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error
	BulkIndex(ctx context.Context, products []domain.Product) error
	Search(ctx context.Context, q domain.ProductSearch, page pagination.Params) ([]domain.Product, int, error)
}

// ProductService manages the catalog that wishlists reference. A nil
// events publisher disables product events.
type ProductService struct {
	repo   repository.ProductRepository
	events ProductEvents
	index  ProductIndex
	logger *slog.Logger
	now    func() time.Time
}

type ProductOption func(*ProductService)

// WithSearchIndex mirrors catalog writes into idx and enables Search.
func WithSearchIndex(idx ProductIndex) ProductOption {
	return func(s *ProductService) { s.index = idx }
}

func NewProductService(repo repository.ProductRepository, events ProductEvents, l *slog.Logger, opts ...ProductOption) *ProductService {
	s := &ProductService{
		repo:   repo,
		events: events,
		logger: l,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateProductInput struct {
	Name            string
	Description     string
	Category        string
	Niche           string
	ImageURL        string
	InitialPrice    int64
	DiscountedPrice *int64
	Currency        string
	Status          string
}

// Create validates input and stores a new product. A slug collision is
// retried once with a short random suffix.
func (s *ProductService) Create(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("product name is required")
	}
	if input.InitialPrice < 0 {
		return nil, apperrors.InvalidInput("initial price must not be negative")
	}
	if d := input.DiscountedPrice; d != nil && (*d < 0 || *d > input.InitialPrice) {
		return nil, apperrors.InvalidInput("discounted price must be between 0 and the initial price")
	}

	currency := strings.ToUpper(input.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	if len(currency) != 3 {
		return nil, apperrors.InvalidInput("currency must be a 3-letter ISO code")
	}

	status := input.Status
	if status == "" {
		status = domain.ProductStatusPublished
	}
	if !domain.IsValidStatus(status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("status must be one of %s", strings.Join(domain.ValidStatuses(), ", ")))
	}

	base := slug.Generate(name)
	if base == "" {
		return nil, apperrors.InvalidInput("product name must contain letters or digits")
	}

	now := s.now()
	product := &domain.Product{
		ID:              uuid.NewString(),
		Name:            name,
		Slug:            base,
		Description:     input.Description,
		Category:        strings.TrimSpace(input.Category),
		Niche:           strings.TrimSpace(input.Niche),
		ImageURL:        input.ImageURL,
		InitialPrice:    input.InitialPrice,
		DiscountedPrice: input.DiscountedPrice,
		Currency:        currency,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.repo.Create(ctx, product)
	if errors.Is(err, apperrors.ErrAlreadyExists) {
		product.Slug = slug.WithSuffix(base, product.ID[:8])
		err = s.repo.Create(ctx, product)
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.AlreadyExists("product", "slug", product.Slug)
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	log := logger.WithContext(ctx, s.logger)
	if s.index != nil {
		if err := s.index.Index(ctx, product); err != nil {
			log.ErrorContext(ctx, "failed to index product",
				slog.String("product_id", product.ID),
				logger.Err(err),
			)
		}
	}
	if s.events != nil {
		if err := s.events.PublishProductCreated(ctx, product); err != nil {
			log.ErrorContext(ctx, "failed to publish product.created event",
				slog.String("product_id", product.ID),
				logger.Err(err),
			)
		}
	}
	log.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("slug", product.Slug),
	)
	return product, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// List returns one page of products and the total number of matches.
func (s *ProductService) List(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error) {
	if filter.Status != "" && !domain.IsValidStatus(filter.Status) {
		return nil, 0, apperrors.InvalidInput("unknown product status " + filter.Status)
	}
	products, total, err := s.repo.List(ctx, filter, page.Offset(), page.Limit())
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, total, nil
}

// Delete removes the product and announces it so wishlists drop the id.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("product", id)
		}
		return fmt.Errorf("delete product: %w", err)
	}

	log := logger.WithContext(ctx, s.logger)
	if s.index != nil {
		if err := s.index.Delete(ctx, id); err != nil {
			log.ErrorContext(ctx, "failed to remove product from index",
				slog.String("product_id", id),
				logger.Err(err),
			)
		}
	}
	if s.events != nil {
		if err := s.events.PublishProductDeleted(ctx, id); err != nil {
			log.ErrorContext(ctx, "failed to publish product.deleted event",
				slog.String("product_id", id),
				logger.Err(err),
			)
		}
	}
	log.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// Search queries the product index. It fails with 503 when no index is
// configured.
func (s *ProductService) Search(ctx context.Context, q domain.ProductSearch, page pagination.Params) ([]domain.Product, int, error) {
	if s.index == nil {
		return nil, 0, apperrors.Unavailable("product search is not configured", nil)
	}

	q.Text = strings.TrimSpace(q.Text)
	if q.Sort == "" {
		q.Sort = domain.SortRelevance
	}
	if !domain.IsValidSort(q.Sort) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("sort must be one of %s", strings.Join(domain.ValidSorts(), ", ")))
	}
	if q.Status != "" && !domain.IsValidStatus(q.Status) {
		return nil, 0, apperrors.InvalidInput("unknown product status " + q.Status)
	}
	if (q.MinPrice != nil && *q.MinPrice < 0) || (q.MaxPrice != nil && *q.MaxPrice < 0) {
		return nil, 0, apperrors.InvalidInput("price bounds must not be negative")
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return nil, 0, apperrors.InvalidInput("min_price must not exceed max_price")
	}

	products, total, err := s.index.Search(ctx, q, page)
	if err != nil {
		return nil, 0, apperrors.Unavailable("product search failed", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, total, nil
}

const reindexBatchSize = 100

// Reindex copies every stored product into the search index and returns
// how many were sent.
func (s *ProductService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, apperrors.Unavailable("product search is not configured", nil)
	}

	indexed := 0
	for offset := 0; ; offset += reindexBatchSize {
		batch, total, err := s.repo.List(ctx, domain.ProductFilter{}, offset, reindexBatchSize)
		if err != nil {
			return indexed, fmt.Errorf("list products at offset %d: %w", offset, err)
		}
		if err := s.index.BulkIndex(ctx, batch); err != nil {
			return indexed, fmt.Errorf("index products at offset %d: %w", offset, err)
		}
		indexed += len(batch)
		if len(batch) < reindexBatchSize || offset+len(batch) >= total {
			break
		}
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "product index rebuilt", slog.Int("products", indexed))
	return indexed, nil
}

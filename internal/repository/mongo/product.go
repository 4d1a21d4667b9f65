package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

type productDocument struct {
	ID              string    `bson:"_id"`
	Name            string    `bson:"name"`
	Slug            string    `bson:"slug"`
	Description     string    `bson:"description"`
	Category        string    `bson:"category"`
	Niche           string    `bson:"niche,omitempty"`
	ImageURL        string    `bson:"image_url,omitempty"`
	InitialPrice    int64     `bson:"initial_price"`
	DiscountedPrice *int64    `bson:"discounted_price,omitempty"`
	Currency        string    `bson:"currency"`
	Status          string    `bson:"status"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toProductDocument(p *domain.Product) productDocument {
	return productDocument{
		ID:              p.ID,
		Name:            p.Name,
		Slug:            p.Slug,
		Description:     p.Description,
		Category:        p.Category,
		Niche:           p.Niche,
		ImageURL:        p.ImageURL,
		InitialPrice:    p.InitialPrice,
		DiscountedPrice: p.DiscountedPrice,
		Currency:        p.Currency,
		Status:          p.Status,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (d *productDocument) toDomain() *domain.Product {
	return &domain.Product{
		ID:              d.ID,
		Name:            d.Name,
		Slug:            d.Slug,
		Description:     d.Description,
		Category:        d.Category,
		Niche:           d.Niche,
		ImageURL:        d.ImageURL,
		InitialPrice:    d.InitialPrice,
		DiscountedPrice: d.DiscountedPrice,
		Currency:        d.Currency,
		Status:          d.Status,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// ProductRepository implements repository.ProductRepository on MongoDB.
type ProductRepository struct {
	products *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{products: db.Collection(productsCollection)}
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceMongo(ctx, "InsertProduct", productsCollection)
	defer func() { end(err) }()

	if _, err = r.products.InsertOne(ctx, toProductDocument(p)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	ctx, end := database.TraceMongo(ctx, "FindProductByID", productsCollection)

	var doc productDocument
	if err := r.products.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			end(nil)
			return nil, apperrors.NotFound("product", id)
		}
		end(err)
		return nil, fmt.Errorf("find product: %w", err)
	}
	end(nil)
	return doc.toDomain(), nil
}

func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter, offset, limit int) (products []domain.Product, total int, err error) {
	ctx, end := database.TraceMongo(ctx, "ListProducts", productsCollection)
	defer func() { end(err) }()

	query := bson.D{}
	if filter.Category != "" {
		query = append(query, bson.E{Key: "category", Value: filter.Category})
	}
	if filter.Status != "" {
		query = append(query, bson.E{Key: "status", Value: filter.Status})
	}

	count, err := r.products.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.products.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	var docs []productDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode products: %w", err)
	}

	products = make([]domain.Product, 0, len(docs))
	for i := range docs {
		products = append(products, *docs[i].toDomain())
	}
	return products, int(count), nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceMongo(ctx, "DeleteProduct", productsCollection)
	defer func() { end(err) }()

	res, err := r.products.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

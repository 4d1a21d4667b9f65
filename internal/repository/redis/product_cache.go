// Package redis holds the Redis-backed stores: a read-through cache in
// front of the product repository and the per-user cart.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/logger"
)

const keyPrefix = "storefront:product:"

// ProductCache decorates a repository.ProductRepository. Cache failures are
// logged and the call falls through to the wrapped repository.
type ProductCache struct {
	next   repository.ProductRepository
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

var _ repository.ProductRepository = (*ProductCache)(nil)

func NewProductCache(next repository.ProductRepository, client redis.UniversalClient, ttl time.Duration, l *slog.Logger) *ProductCache {
	return &ProductCache{next: next, client: client, ttl: ttl, logger: l}
}

func key(id string) string {
	return keyPrefix + id
}

func (c *ProductCache) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if p, ok := c.get(ctx, id); ok {
		return p, nil
	}

	p, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, p)
	return p, nil
}

func (c *ProductCache) get(ctx context.Context, id string) (*domain.Product, bool) {
	ctx, end := database.TraceCache(ctx, "GET", key(id))
	raw, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		end(nil)
		return nil, false
	}
	end(err)
	if err != nil {
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "product cache read failed",
			slog.String("product_id", id), logger.Err(err))
		return nil, false
	}

	var p domain.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "discarding corrupt cached product",
			slog.String("product_id", id), logger.Err(err))
		_ = c.client.Del(ctx, key(id)).Err()
		return nil, false
	}
	return &p, true
}

func (c *ProductCache) set(ctx context.Context, p *domain.Product) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	ctx, end := database.TraceCache(ctx, "SET", key(p.ID))
	err = c.client.Set(ctx, key(p.ID), raw, c.ttl).Err()
	end(err)
	if err != nil {
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "product cache write failed",
			slog.String("product_id", p.ID), logger.Err(err))
	}
}

// Invalidate drops the cached copy of a product.
func (c *ProductCache) Invalidate(ctx context.Context, id string) error {
	ctx, end := database.TraceCache(ctx, "DEL", key(id))
	err := c.client.Del(ctx, key(id)).Err()
	end(err)
	if err != nil {
		return fmt.Errorf("invalidate product %s: %w", id, err)
	}
	return nil
}

func (c *ProductCache) Create(ctx context.Context, p *domain.Product) error {
	return c.next.Create(ctx, p)
}

func (c *ProductCache) List(ctx context.Context, filter domain.ProductFilter, offset, limit int) ([]domain.Product, int, error) {
	return c.next.List(ctx, filter, offset, limit)
}

func (c *ProductCache) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, id); err != nil {
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "product cache invalidation failed",
			slog.String("product_id", id), logger.Err(err))
	}
	return nil
}

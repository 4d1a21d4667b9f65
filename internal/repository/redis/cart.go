package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const cartKeyPrefix = "storefront:cart:"

var errVersionMismatch = errors.New("cart version mismatch")

// CartStore keeps each cart as one JSON value. Every save refreshes the
// TTL, so a cart expires ttl after its last change.
type CartStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ repository.CartRepository = (*CartStore)(nil)

func NewCartStore(client redis.UniversalClient, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttl}
}

func cartKey(userID string) string {
	return cartKeyPrefix + userID
}

func (s *CartStore) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	k := cartKey(userID)
	ctx, end := database.TraceCache(ctx, "GET", k)
	raw, err := s.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		end(nil)
		return nil, apperrors.NotFound("cart", userID)
	}
	end(err)
	if err != nil {
		return nil, fmt.Errorf("get cart %s: %w", userID, err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", userID, err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

// SaveIfVersion runs the compare and set inside WATCH/MULTI so a writer
// that changed the key in between aborts the transaction.
func (s *CartStore) SaveIfVersion(ctx context.Context, cart *domain.Cart, expected int64) error {
	k := cartKey(cart.UserID)
	next := *cart
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", cart.UserID, err)
	}

	ctx, end := database.TraceCache(ctx, "SET", k)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := storedVersion(ctx, tx, k)
		if err != nil {
			return err
		}
		if stored != expected {
			return errVersionMismatch
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, raw, s.ttl)
			return nil
		})
		return err
	}, k)

	switch {
	case err == nil:
		end(nil)
		cart.Version = next.Version
		cart.UpdatedAt = next.UpdatedAt
		return nil
	case errors.Is(err, errVersionMismatch), errors.Is(err, redis.TxFailedErr):
		end(nil)
		return apperrors.Conflict("cart was modified concurrently, please retry")
	default:
		end(err)
		return fmt.Errorf("save cart %s: %w", cart.UserID, err)
	}
}

func storedVersion(ctx context.Context, tx *redis.Tx, k string) (int64, error) {
	raw, err := tx.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("decode stored cart: %w", err)
	}
	return v.Version, nil
}

func (s *CartStore) Delete(ctx context.Context, userID string) error {
	k := cartKey(userID)
	ctx, end := database.TraceCache(ctx, "DEL", k)
	err := s.client.Del(ctx, k).Err()
	end(err)
	if err != nil {
		return fmt.Errorf("delete cart %s: %w", userID, err)
	}
	return nil
}

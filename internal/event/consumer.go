package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// WishlistCleaner removes a product id from every wishlist.
type WishlistCleaner interface {
	RemoveFromAllWishlists(ctx context.Context, productID string) (int64, error)
}

// ProductDeletedHandler drops deleted products from all wishlists so they
// stop holding dangling ids. Events of other types are ignored. A store
// failure is returned so the consumer retries and eventually dead-letters.
func ProductDeletedHandler(store WishlistCleaner, l *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, e *pkgkafka.Event) error {
		if e.EventType != TopicProductDeleted {
			l.DebugContext(ctx, "ignoring event", slog.String("event_type", e.EventType))
			return nil
		}

		var data ProductDeletedData
		if err := e.UnmarshalData(&data); err != nil {
			return err
		}
		productID := data.ID
		if productID == "" {
			productID = e.AggregateID
		}
		if productID == "" {
			return fmt.Errorf("product.deleted event %s carries no product id", e.EventID)
		}

		n, err := store.RemoveFromAllWishlists(ctx, productID)
		if err != nil {
			return fmt.Errorf("remove deleted product from wishlists: %w", err)
		}

		l.InfoContext(ctx, "removed deleted product from wishlists",
			slog.String("product_id", productID),
			slog.Int64("users", n),
		)
		return nil
	}
}

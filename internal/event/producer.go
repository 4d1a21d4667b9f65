package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Topics produced or consumed by the storefront.
var (
	TopicUserRegistered      = pkgkafka.Topic("user", "registered")
	TopicWishlistItemAdded   = pkgkafka.Topic("wishlist", "item_added")
	TopicWishlistItemRemoved = pkgkafka.Topic("wishlist", "item_removed")
	TopicProductCreated      = pkgkafka.Topic("product", "created")
	TopicProductDeleted      = pkgkafka.Topic("product", "deleted")
)

const (
	AggregateTypeUser    = "user"
	AggregateTypeProduct = "product"

	Source = "storefront"
)

type UserRegisteredData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// WishlistItemData is the payload of item_added and item_removed events.
type WishlistItemData struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
}

type ProductCreatedData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Category string `json:"category"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
}

type ProductDeletedData struct {
	ID string `json:"id"`
}

// Publisher is satisfied by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront domain events.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if actor := logger.UserIDFromContext(ctx); actor != "" {
		event.WithMetadata("actor_id", actor)
	}
	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, user.ID, AggregateTypeUser, UserRegisteredData{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	})
}

// PublishWishlistToggled emits item_added when added is true and
// item_removed otherwise. Events are keyed by user id.
func (p *Producer) PublishWishlistToggled(ctx context.Context, userID, productID string, added bool) error {
	topic := TopicWishlistItemRemoved
	if added {
		topic = TopicWishlistItemAdded
	}
	return p.publish(ctx, topic, userID, AggregateTypeUser, WishlistItemData{
		UserID:    userID,
		ProductID: productID,
	})
}

func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, product.ID, AggregateTypeProduct, ProductCreatedData{
		ID:       product.ID,
		Name:     product.Name,
		Slug:     product.Slug,
		Category: product.Category,
		Price:    product.EffectivePrice(),
		Currency: product.Currency,
	})
}

func (p *Producer) PublishProductDeleted(ctx context.Context, productID string) error {
	return p.publish(ctx, TopicProductDeleted, productID, AggregateTypeProduct, ProductDeletedData{ID: productID})
}

package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

type refreshTokenDocument struct {
	ID        string     `bson:"_id"`
	UserID    string     `bson:"user_id"`
	TokenHash string     `bson:"token_hash"`
	ExpiresAt time.Time  `bson:"expires_at"`
	CreatedAt time.Time  `bson:"created_at"`
	RevokedAt *time.Time `bson:"revoked_at,omitempty"`
}

// RefreshTokenRepository implements repository.RefreshTokenRepository on MongoDB.
type RefreshTokenRepository struct {
	tokens *mongo.Collection
}

func NewRefreshTokenRepository(db *mongo.Database) *RefreshTokenRepository {
	return &RefreshTokenRepository{tokens: db.Collection(refreshTokensCollection)}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	doc := refreshTokenDocument{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.tokens.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	var doc refreshTokenDocument
	if err := r.tokens.FindOne(ctx, bson.D{{Key: "token_hash", Value: tokenHash}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &domain.RefreshToken{
		ID:        doc.ID,
		UserID:    doc.UserID,
		TokenHash: doc.TokenHash,
		ExpiresAt: doc.ExpiresAt,
		CreatedAt: doc.CreatedAt,
		RevokedAt: doc.RevokedAt,
	}, nil
}

func (r *RefreshTokenRepository) RevokeByUserID(ctx context.Context, userID string) error {
	return r.revoke(ctx, bson.D{{Key: "user_id", Value: userID}})
}

func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	return r.revoke(ctx, bson.D{{Key: "token_hash", Value: tokenHash}})
}

func (r *RefreshTokenRepository) revoke(ctx context.Context, filter bson.D) error {
	filter = append(filter, bson.E{Key: "revoked_at", Value: bson.D{{Key: "$exists", Value: false}}})
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "revoked_at", Value: time.Now().UTC()}}}}
	if _, err := r.tokens.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

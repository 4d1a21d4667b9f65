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

type userDocument struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	FirstName    string    `bson:"first_name"`
	LastName     string    `bson:"last_name"`
	Role         string    `bson:"role"`
	IsActive     bool      `bson:"is_active"`
	Wishlist     []string  `bson:"wishlist"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toUserDocument(u *domain.User) userDocument {
	wishlist := u.Wishlist
	if wishlist == nil {
		wishlist = []string{}
	}
	return userDocument{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         u.Role,
		IsActive:     u.IsActive,
		Wishlist:     wishlist,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d *userDocument) toDomain() *domain.User {
	wishlist := d.Wishlist
	if wishlist == nil {
		wishlist = []string{}
	}
	return &domain.User{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Role:         d.Role,
		IsActive:     d.IsActive,
		Wishlist:     wishlist,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// UserRepository stores user documents and implements both
// repository.UserRepository and repository.WishlistStore.
type UserRepository struct {
	users    *mongo.Collection
	products *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		users:    db.Collection(usersCollection),
		products: db.Collection(productsCollection),
	}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceMongo(ctx, "InsertUser", usersCollection)
	defer func() { end(err) }()

	if _, err = r.users.InsertOne(ctx, toUserDocument(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "FindUserByID", bson.D{{Key: "_id", Value: id}})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "FindUserByEmail", bson.D{{Key: "email", Value: email}})
}

func (r *UserRepository) findOne(ctx context.Context, op string, filter bson.D) (*domain.User, error) {
	ctx, end := database.TraceMongo(ctx, op, usersCollection)

	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			end(nil)
			return nil, apperrors.ErrNotFound
		}
		end(err)
		return nil, fmt.Errorf("find user: %w", err)
	}
	end(nil)
	return doc.toDomain(), nil
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceMongo(ctx, "UpdateUser", usersCollection)
	defer func() { end(err) }()

	u.UpdatedAt = time.Now().UTC()
	res, err := r.users.UpdateByID(ctx, u.ID, bson.D{{Key: "$set", Value: bson.D{
		{Key: "email", Value: u.Email},
		{Key: "password_hash", Value: u.PasswordHash},
		{Key: "first_name", Value: u.FirstName},
		{Key: "last_name", Value: u.LastName},
		{Key: "role", Value: u.Role},
		{Key: "is_active", Value: u.IsActive},
		{Key: "updated_at", Value: u.UpdatedAt},
	}}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("user", u.ID)
	}
	return nil
}

// --- Wishlist ---

// GetWishlistResolved fetches the referenced products with $in and restores
// the stored order, dropping ids that match no product.
func (r *UserRepository) GetWishlistResolved(ctx context.Context, userID string) (products []domain.Product, err error) {
	ctx, end := database.TraceMongo(ctx, "ResolveWishlist", usersCollection)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var doc struct {
		Wishlist []string `bson:"wishlist"`
	}
	opts := options.FindOne().SetProjection(bson.D{{Key: "wishlist", Value: 1}})
	if err := r.users.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("find wishlist: %w", err)
	}

	products = []domain.Product{}
	if len(doc.Wishlist) == 0 {
		return products, nil
	}

	cur, err := r.products.Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: doc.Wishlist}}}})
	if err != nil {
		return nil, fmt.Errorf("find wishlist products: %w", err)
	}
	var docs []productDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode wishlist products: %w", err)
	}

	byID := make(map[string]*productDocument, len(docs))
	for i := range docs {
		byID[docs[i].ID] = &docs[i]
	}
	for _, id := range doc.Wishlist {
		if d, ok := byID[id]; ok {
			products = append(products, *d.toDomain())
		}
	}
	return products, nil
}

func (r *UserRepository) SaveWishlist(ctx context.Context, userID string, wishlist []string) (err error) {
	ctx, end := database.TraceMongo(ctx, "SaveWishlist", usersCollection)
	defer func() { end(err) }()

	if wishlist == nil {
		wishlist = []string{}
	}
	res, err := r.users.UpdateByID(ctx, userID, bson.D{{Key: "$set", Value: bson.D{
		{Key: "wishlist", Value: wishlist},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}})
	if err != nil {
		return fmt.Errorf("save wishlist: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("user", userID)
	}
	return nil
}

func (r *UserRepository) RemoveFromAllWishlists(ctx context.Context, productID string) (n int64, err error) {
	ctx, end := database.TraceMongo(ctx, "PullFromWishlists", usersCollection)
	defer func() { end(err) }()

	res, err := r.users.UpdateMany(ctx,
		bson.D{{Key: "wishlist", Value: productID}},
		bson.D{
			{Key: "$pull", Value: bson.D{{Key: "wishlist", Value: productID}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("remove %s from wishlists: %w", productID, err)
	}
	return res.ModifiedCount, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, is_active, wishlist, created_at, updated_at`

// UserRepository stores users, wishlist included, in the users table. It
// implements both repository.UserRepository and repository.WishlistStore.
type UserRepository struct {
	db database.DBTX
}

func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	ctx, end := database.TraceQuery(ctx, "CreateUser", query)
	defer func() { end(err) }()

	wishlist := u.Wishlist
	if wishlist == nil {
		wishlist = []string{}
	}

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.FirstName,
		u.LastName,
		u.Role,
		u.IsActive,
		wishlist,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "GetUserByID", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "GetUserByEmail", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) getOne(ctx context.Context, op, query string, arg string) (u *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var user domain.User
	err = r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.IsActive,
		&user.Wishlist,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if user.Wishlist == nil {
		user.Wishlist = []string{}
	}
	return &user, nil
}

// Update writes the profile columns of u and bumps updated_at.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) (err error) {
	query := `
		UPDATE users
		SET email = $1, password_hash = $2, first_name = $3, last_name = $4,
		    role = $5, is_active = $6, updated_at = $7
		WHERE id = $8`

	ctx, end := database.TraceQuery(ctx, "UpdateUser", query)
	defer func() { end(err) }()

	u.UpdatedAt = time.Now().UTC()
	ct, err := r.db.Exec(ctx, query,
		u.Email,
		u.PasswordHash,
		u.FirstName,
		u.LastName,
		u.Role,
		u.IsActive,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		if isMalformedID(err) {
			return apperrors.NotFound("user", u.ID)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}
	return nil
}

// --- Wishlist ---

// GetWishlistResolved joins the stored id array against products, keeping
// the array order through WITH ORDINALITY.
func (r *UserRepository) GetWishlistResolved(ctx context.Context, userID string) (products []domain.Product, err error) {
	var wishlist []string
	{
		query := `SELECT wishlist FROM users WHERE id = $1`
		qctx, end := database.TraceQuery(ctx, "GetWishlist", query)
		err = r.db.QueryRow(qctx, query, userID).Scan(&wishlist)
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			end(nil)
			return nil, apperrors.NotFound("user", userID)
		}
		end(err)
		if err != nil {
			return nil, fmt.Errorf("get wishlist: %w", err)
		}
	}

	products = []domain.Product{}
	if len(wishlist) == 0 {
		return products, nil
	}

	query := `
		SELECT ` + productColumnsQualified + `
		FROM unnest($1::text[]) WITH ORDINALITY AS w(product_id, pos)
		JOIN products p ON p.id = w.product_id
		ORDER BY w.pos`

	ctx, end := database.TraceQuery(ctx, "ResolveWishlist", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, wishlist)
	if err != nil {
		return nil, fmt.Errorf("resolve wishlist: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wishlist product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wishlist rows: %w", err)
	}
	return products, nil
}

func (r *UserRepository) SaveWishlist(ctx context.Context, userID string, wishlist []string) (err error) {
	query := `UPDATE users SET wishlist = $1, updated_at = $2 WHERE id = $3`

	ctx, end := database.TraceQuery(ctx, "SaveWishlist", query)
	defer func() { end(err) }()

	if wishlist == nil {
		wishlist = []string{}
	}
	ct, err := r.db.Exec(ctx, query, wishlist, time.Now().UTC(), userID)
	if isMalformedID(err) {
		return apperrors.NotFound("user", userID)
	}
	if err != nil {
		return fmt.Errorf("save wishlist: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", userID)
	}
	return nil
}

func (r *UserRepository) RemoveFromAllWishlists(ctx context.Context, productID string) (n int64, err error) {
	query := `
		UPDATE users
		SET wishlist = array_remove(wishlist, $1), updated_at = $2
		WHERE wishlist @> ARRAY[$1]::text[]`

	ctx, end := database.TraceQuery(ctx, "RemoveFromAllWishlists", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, productID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("remove %s from wishlists: %w", productID, err)
	}
	return ct.RowsAffected(), nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

// SeedConfig controls cmd/seed.
type SeedConfig struct {
	AdminEmail    string `env:"SEED_ADMIN_EMAIL"`
	AdminPassword string `env:"SEED_ADMIN_PASSWORD"`
	// Force inserts the demo catalog even when products already exist.
	Force bool `env:"SEED_FORCE" envDefault:"false"`
}

func price(cents int64) *int64 { return &cents }

var demoCatalog = []service.CreateProductInput{
	{Name: "Wireless Noise Cancelling Headphones", Category: "electronics", Niche: "audio", InitialPrice: 19999, DiscountedPrice: price(14999)},
	{Name: "Mechanical Keyboard", Category: "electronics", Niche: "peripherals", InitialPrice: 8999},
	{Name: "4K Action Camera", Category: "electronics", Niche: "cameras", InitialPrice: 24900, DiscountedPrice: price(21900)},
	{Name: "Merino Wool Sweater", Category: "clothing", Niche: "knitwear", InitialPrice: 7900},
	{Name: "Waterproof Rain Jacket", Category: "clothing", Niche: "outerwear", InitialPrice: 12900, DiscountedPrice: price(9900)},
	{Name: "Crème Brûlée Torch Set", Category: "home-kitchen", Niche: "baking", InitialPrice: 3450},
	{Name: "Cast Iron Skillet", Category: "home-kitchen", Niche: "cookware", InitialPrice: 4200},
	{Name: "Yoga Mat", Category: "sports-outdoors", Niche: "fitness", InitialPrice: 2999, DiscountedPrice: price(2499)},
	{Name: "Trail Running Shoes", Category: "sports-outdoors", Niche: "running", InitialPrice: 13500},
	{Name: "The Go Programming Language", Category: "books", Niche: "programming", InitialPrice: 3999},
}

// Seed fills an empty store with a demo catalog and, when configured,
// ensures an admin account exists. With Elasticsearch configured the search
// index is rebuilt from the store afterwards.
func Seed(ctx context.Context, cfg *config.Config, seed SeedConfig, logger *slog.Logger) error {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.close(context.Background()) }()

	if seed.AdminEmail != "" {
		jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
		authService := service.NewAuthService(st.users, st.tokens, jwtManager, logger)
		if err := ensureAdmin(ctx, authService, st.users, seed.AdminEmail, seed.AdminPassword); err != nil {
			return err
		}
		logger.Info("admin account ready", slog.String("email", seed.AdminEmail))
	}

	var opts []service.ProductOption
	index := openSearchIndex(ctx, cfg, logger)
	if index != nil {
		opts = append(opts, service.WithSearchIndex(index))
	}
	products := service.NewProductService(st.products, nil, logger, opts...)

	n, err := seedProducts(ctx, products, seed.Force)
	if err != nil {
		return err
	}
	logger.Info("catalog seeded", slog.Int("created", n))

	if index != nil {
		if _, err := products.Reindex(ctx); err != nil {
			return fmt.Errorf("rebuild search index: %w", err)
		}
	}
	return nil
}

type registerer interface {
	Register(ctx context.Context, input service.RegisterInput) (*domain.User, *domain.TokenPair, error)
}

// ensureAdmin registers email if needed and promotes it to admin.
func ensureAdmin(ctx context.Context, registrar registerer, users repository.UserRepository, email, password string) error {
	user, _, err := registrar.Register(ctx, service.RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Store",
		LastName:  "Admin",
	})
	if errors.Is(err, apperrors.ErrAlreadyExists) {
		user, err = users.GetByEmail(ctx, email)
	}
	if err != nil {
		return fmt.Errorf("ensure admin %s: %w", email, err)
	}
	if user.Role == domain.RoleAdmin {
		return nil
	}

	user.Role = domain.RoleAdmin
	if err := users.Update(ctx, user); err != nil {
		return fmt.Errorf("promote %s to admin: %w", email, err)
	}
	return nil
}

type catalogWriter interface {
	Create(ctx context.Context, input service.CreateProductInput) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error)
}

// seedProducts creates the demo catalog unless products already exist and
// force is false. It returns the number of products created.
func seedProducts(ctx context.Context, products catalogWriter, force bool) (int, error) {
	if !force {
		_, total, err := products.List(ctx, domain.ProductFilter{}, pagination.Params{Page: 1, PerPage: 1})
		if err != nil {
			return 0, fmt.Errorf("count products: %w", err)
		}
		if total > 0 {
			return 0, nil
		}
	}

	created := 0
	for _, input := range demoCatalog {
		if _, err := products.Create(ctx, input); err != nil {
			return created, fmt.Errorf("create %q: %w", input.Name, err)
		}
		created++
	}
	return created, nil
}

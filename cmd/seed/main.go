// Command seed populates an empty store with a demo catalog and an optional
// admin account. It reads the same environment as the server plus
// SEED_ADMIN_EMAIL, SEED_ADMIN_PASSWORD and SEED_FORCE.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/config"
	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var seedCfg app.SeedConfig
	if err := pkgconfig.Load(&seedCfg); err != nil {
		slog.Error("failed to load seed config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("storefront-seed", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Seed(ctx, cfg, seedCfg, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/venue-orders/internal/seed"
	"github.com/xenking/venue-orders/internal/storage/postgres"
)

type options struct {
	databaseURL  string
	menuFile     string
	apiKey       string
	apiKeyName   string
	apiKeyPepper string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.menuFile, "menu-file", "", "menu JSON or .json.gz file; empty uses the embedded menu")
	flag.StringVar(&opts.apiKey, "api-key", "", "staff API key to seed (or VENUE_SEED_STAFF_KEY env)")
	flag.StringVar(&opts.apiKeyName, "api-key-name", "seed", "name recorded for the staff API key")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or VENUE_API_KEY_PEPPER env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("VENUE_SEED_STAFF_KEY")
	}
	if opts.apiKeyPepper == "" {
		opts.apiKeyPepper = os.Getenv("VENUE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	menu, err := seed.ReadFile(opts.menuFile)
	if err != nil {
		return errors.Wrap(err, "read menu")
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	stats, err := seed.Apply(ctx, lg, postgres.NewCatalogRepository(pool), menu)
	if err != nil {
		return errors.Wrap(err, "seed menu")
	}
	lg.Info("Upserted menu",
		zap.Int("categories", stats.Categories),
		zap.Int("items", stats.Items),
	)

	if opts.apiKey == "" {
		lg.Warn("No staff API key given, skipping")
		return nil
	}
	info, err := seed.StaffKey(ctx, postgres.NewAPIKeyRepository(pool), []byte(opts.apiKeyPepper), opts.apiKeyName, opts.apiKey)
	if err != nil {
		return errors.Wrap(err, "seed api key")
	}
	lg.Info("Upserted staff API key", zap.Int64("id", info.ID), zap.String("name", info.Name))

	return nil
}

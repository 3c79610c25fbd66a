// Command seed-db loads the catalog from a products JSON file and seeds the
// default coupons. Safe to re-run: products and coupons are upserted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/dgtech/storefront/internal/domain/coupon"
	"github.com/dgtech/storefront/internal/domain/product"
	"github.com/dgtech/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	Price       decimal.Decimal `json:"price"`
	OldPrice    decimal.Decimal `json:"old_price"`
	Auction     bool            `json:"auction"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Stock       int             `json:"stock"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products := postgres.NewProductRepository(pool)
	coupons := postgres.NewCouponRepository(pool)

	if err := seedProducts(ctx, products, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var items []productJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(items)))

	for _, it := range items {
		id := it.ID
		if id == "" {
			id, err = product.UniqueSlug(ctx, repo, it.Name)
			if err != nil {
				return errors.Wrapf(err, "derive slug for %q", it.Name)
			}
		}
		p := &product.Product{
			ID:          id,
			Name:        it.Name,
			Category:    it.Category,
			Brand:       it.Brand,
			Price:       it.Price,
			OldPrice:    it.OldPrice,
			Auction:     it.Auction,
			Description: it.Description,
			ImageURL:    it.Image,
			Stock:       it.Stock,
			Available:   true,
			PublishedAt: time.Now(),
		}
		if err := repo.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", id)
		}

		slog.Info("upserted product", slog.String("id", id), slog.String("name", it.Name))
	}
	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository) error {
	slog.Info("seeding default coupons")

	expiry := time.Now().AddDate(1, 0, 0)
	coupons := []coupon.Coupon{
		{Code: "WELCOME10", Percentage: 10, Active: true, ExpiresAt: expiry, UsageLimit: 1000},
		{Code: "FREESHIP", Amount: decimal.NewFromInt(5), Active: true, ExpiresAt: expiry, UsageLimit: 500},
		{Code: "HAPPYHOURS", Percentage: 18, Active: true, ExpiresAt: expiry, UsageLimit: 200},
	}

	for i := range coupons {
		if err := repo.Upsert(ctx, &coupons[i]); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", coupons[i].Code)
		}
		slog.Info("upserted coupon", slog.String("code", coupons[i].Code))
	}
	return nil
}

// Command seed-db prepares a database for local development: it runs
// migrations, loads a product catalog from JSON, registers the built-in
// deal types, creates a demo user with an active deal set, and installs
// an API key for that user.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/minhhieu1/electronic-store/internal/domain/discount"
	"github.com/minhhieu1/electronic-store/internal/repository"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		adminKey     string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "customer API key to seed (or STORE_SEED_API_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "admin API key to seed (or STORE_SEED_ADMIN_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("STORE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STORE_SEED_API_KEY")
		os.Exit(1)
	}
	if adminKey == "" {
		adminKey = os.Getenv("STORE_SEED_ADMIN_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STORE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, adminKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, adminKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedUser(ctx, pool); err != nil {
		return errors.Wrap(err, "seed user")
	}
	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedDealTypes(ctx, pool); err != nil {
		return errors.Wrap(err, "seed deal types")
	}
	if err := seedDeals(ctx, pool); err != nil {
		return errors.Wrap(err, "seed deals")
	}
	if err := seedAPIKey(ctx, pool, "demo", "Demo customer key", apiKey, pepper, []string{}); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	if adminKey != "" {
		if err := seedAPIKey(ctx, pool, "admin", "Admin key", adminKey, pepper, []string{"admin"}); err != nil {
			return errors.Wrap(err, "seed admin key")
		}
	}

	return nil
}

const demoUserID = "demo-user"

func seedUser(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO users (id, username) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`,
		demoUserID, "demo",
	)
	return err
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, description, price, stock, category, available)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				price = EXCLUDED.price,
				stock = EXCLUDED.stock,
				category = EXCLUDED.category`,
			p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedDealTypes(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding deal types")

	types := []struct {
		id, name, description, strategyID string
	}{
		{"percentage-off", "Percentage Off", "Percentage discount on the line total", discount.StrategyPercentage},
		{"flat-discount", "Flat Discount", "Fixed amount off, capped at the line total", discount.StrategyFixedAmount},
		{"buy-n-half-off", "Buy N Get Half Off", "Half price per every N units", discount.StrategyBuyNHalfOff},
	}

	for _, t := range types {
		_, err := pool.Exec(ctx, `
			INSERT INTO deal_types (id, name, description, strategy_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				strategy_id = EXCLUDED.strategy_id`,
			t.id, t.name, t.description, t.strategyID,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert deal type %s", t.id)
		}

		slog.Info("upserted deal type", slog.String("id", t.id), slog.String("strategy", t.strategyID))
	}

	return nil
}

func seedDeals(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo deals")

	expiration := time.Now().AddDate(0, 1, 0)
	pct := decimal.NewFromInt(10)

	// A sample deal on the first catalog product, skipped when the catalog
	// is empty or the deal already exists.
	_, err := pool.Exec(ctx, `
		INSERT INTO deals (id, product_id, deal_type_id, expiration_date, discount_percent)
		SELECT 'seed-deal-10pct', p.id, 'percentage-off', $1, $2
		FROM products p
		ORDER BY p.id
		LIMIT 1
		ON CONFLICT (id) DO NOTHING`,
		expiration, pct,
	)
	return err
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, id, name, apiKey, pepper string, scopes []string) error {
	slog.Info("seeding API key", slog.String("id", id))

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, `
		INSERT INTO api_keys (id, key_hash, name, user_id, scopes, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			key_hash = EXCLUDED.key_hash,
			name = EXCLUDED.name,
			scopes = EXCLUDED.scopes,
			active = TRUE`,
		id, keyHash, name, demoUserID, scopes,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert API key %s", id)
	}

	slog.Info("upserted API key", slog.String("id", id), slog.String("name", name))
	return nil
}

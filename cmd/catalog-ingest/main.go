// Command catalog-ingest loads gzipped supplier catalog feeds into the
// products table. Feeds are CSV files with one row per SKU:
//
//	sku,name,description,price,stock,category
//
// Supplier feeds overlap and repeat SKUs; a bloom filter screens out
// already-seen SKUs cheaply before hitting the exact set, so memory stays
// bounded for very large feeds. Rows are written in batches.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/minhhieu1/electronic-store/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	batchSize     = 500
	progressEvery = 100_000
)

type feedRow struct {
	SKU         string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    string
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog *.csv.gz feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz feeds found in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	dedupe := newSKUDeduper()
	rows := make(chan feedRow, batchSize)

	g, gctx := errgroup.WithContext(ctx)

	// Parsers: one goroutine per feed file.
	parsers, pctx := errgroup.WithContext(gctx)
	for _, f := range files {
		parsers.Go(parseFeed(pctx, f, dedupe, rows))
	}
	g.Go(func() error {
		defer close(rows)
		return parsers.Wait()
	})

	// Single writer keeps batches ordered and the pool uncontended.
	g.Go(func() error {
		return writeRows(gctx, pool, rows)
	})

	return g.Wait()
}

// skuDeduper tracks seen SKUs. The bloom filter answers "definitely new"
// without touching the exact set; only possible repeats hit the map.
type skuDeduper struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	seen   map[string]struct{}
}

func newSKUDeduper() *skuDeduper {
	return &skuDeduper{
		filter: bloom.NewWithEstimates(bloomCapacity, bloomFPR),
		seen:   make(map[string]struct{}),
	}
}

// markNew reports whether sku has not been seen before and records it.
func (d *skuDeduper) markNew(sku string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filter.TestString(sku) {
		if _, ok := d.seen[sku]; ok {
			return false
		}
	}
	d.filter.AddString(sku)
	d.seen[sku] = struct{}{}
	return true
}

func parseFeed(ctx context.Context, path string, dedupe *skuDeduper, out chan<- feedRow) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		r := csv.NewReader(gz)
		r.FieldsPerRecord = 6
		r.ReuseRecord = true

		var total, kept uint64
		for {
			record, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}

			total++
			if total%progressEvery == 0 {
				slog.Info("parse progress", slog.String("file", path), slog.Uint64("rows", total))
			}

			row, err := parseRow(record)
			if err != nil {
				slog.Warn("skipping malformed row",
					slog.String("file", path),
					slog.Uint64("line", total),
					slog.String("error", err.Error()),
				)
				continue
			}
			if !dedupe.markNew(row.SKU) {
				continue
			}

			kept++
			select {
			case out <- row:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		slog.Info("feed parsed",
			slog.String("file", path),
			slog.Uint64("total_rows", total),
			slog.Uint64("new_skus", kept),
		)
		return nil
	}
}

func parseRow(record []string) (feedRow, error) {
	if record[0] == "" {
		return feedRow{}, errors.New("empty sku")
	}

	price, err := decimal.NewFromString(record[3])
	if err != nil {
		return feedRow{}, errors.Wrap(err, "parse price")
	}
	stock, err := strconv.Atoi(record[4])
	if err != nil {
		return feedRow{}, errors.Wrap(err, "parse stock")
	}
	if stock < 0 {
		stock = 0
	}

	return feedRow{
		SKU:         record[0],
		Name:        record[1],
		Description: record[2],
		Price:       price,
		Stock:       stock,
		Category:    record[5],
	}, nil
}

const upsertProductSQL = `
INSERT INTO products (id, name, description, price, stock, category, available)
VALUES ($1, $2, $3, $4, $5, $6, TRUE)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	price = EXCLUDED.price,
	stock = EXCLUDED.stock,
	category = EXCLUDED.category`

func writeRows(ctx context.Context, pool *pgxpool.Pool, rows <-chan feedRow) error {
	var (
		batch   pgx.Batch
		written uint64
	)

	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		if err := pool.SendBatch(ctx, &batch).Close(); err != nil {
			return errors.Wrap(err, "send batch")
		}
		written += uint64(batch.Len())
		slog.Info("write progress", slog.Uint64("written", written))
		batch = pgx.Batch{}
		return nil
	}

	for row := range rows {
		batch.Queue(upsertProductSQL,
			row.SKU, row.Name, row.Description, row.Price, row.Stock, row.Category,
		)
		if batch.Len() >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

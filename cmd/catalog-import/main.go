// Command catalog-import loads supplier product feeds into the catalog.
//
// Feeds are gzip-compressed JSON lines files, one product per line. Files are
// processed concurrently; a bloom filter deduplicates SKUs across feeds so
// the first feed listing a SKU wins within one run. Rows are written in
// batches.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/modaluna/storefront/internal/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	batchSize     = 1_000
	progressEvery = 100_000
)

// feedProduct is one supplier feed line.
type feedProduct struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Sizes       string `json:"sizes"`
	Color       string `json:"color"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	Photo       string `json:"photo"`
}

const upsertProductSQL = `
INSERT INTO products (id, name, description, category, sizes, color, price, available, stock, photo)
VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	category = EXCLUDED.category,
	sizes = EXCLUDED.sizes,
	color = EXCLUDED.color,
	price = EXCLUDED.price,
	stock = EXCLUDED.stock,
	photo = EXCLUDED.photo`

func main() {
	var (
		feedDir     string
		databaseURL string
	)

	flag.StringVar(&feedDir, "feed-dir", "feeds", "directory containing *.jsonl.gz supplier feeds")
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

	if err := run(ctx, feedDir, databaseURL); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, feedDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(feedDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feeds")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz feeds in %s", feedDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// seen deduplicates SKUs across all feeds; the bloom filter keeps the
	// memory footprint flat regardless of feed size.
	var (
		seenMu sync.Mutex
		seen   = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(importFeed(ctx, pool, f, seen, &seenMu))
	}
	return g.Wait()
}

func importFeed(ctx context.Context, pool *pgxpool.Pool, path string, seen *bloom.BloomFilter, seenMu *sync.Mutex) func() error {
	return func() error {
		slog.Info("importing feed", slog.String("file", path))

		var (
			batch    pgx.Batch
			total    uint64
			skipped  uint64
			imported uint64
		)

		flush := func() error {
			if batch.Len() == 0 {
				return nil
			}
			if err := pool.SendBatch(ctx, &batch).Close(); err != nil {
				return errors.Wrap(err, "flush batch")
			}
			batch = pgx.Batch{}
			return nil
		}

		err := streamGzLines(ctx, path, func(line []byte) error {
			total++
			if total%progressEvery == 0 {
				slog.Info("feed progress", slog.String("file", path), slog.Uint64("lines", total))
			}

			var p feedProduct
			if err := json.Unmarshal(line, &p); err != nil {
				slog.Warn("skipping malformed feed line",
					slog.String("file", path),
					slog.Uint64("line", total),
				)
				skipped++
				return nil
			}
			if p.SKU == "" || p.Name == "" {
				skipped++
				return nil
			}

			seenMu.Lock()
			dup := seen.TestOrAddString(p.SKU)
			seenMu.Unlock()
			if dup {
				skipped++
				return nil
			}

			price, err := decimal.NewFromString(p.Price)
			if err != nil {
				slog.Warn("malformed price, storing zero",
					slog.String("sku", p.SKU),
					slog.String("price", p.Price),
				)
				price = decimal.Zero
			}

			batch.Queue(upsertProductSQL,
				p.SKU, p.Name, p.Description, p.Category, p.Sizes, p.Color,
				price, p.Stock, p.Photo,
			)
			imported++

			if batch.Len() >= batchSize {
				return flush()
			}
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "import %s", path)
		}
		if err := flush(); err != nil {
			return errors.Wrapf(err, "import %s", path)
		}

		slog.Info("feed complete",
			slog.String("file", path),
			slog.Uint64("lines", total),
			slog.Uint64("imported", imported),
			slog.Uint64("skipped", skipped),
		)
		return nil
	}
}

// streamGzLines opens a gzip-compressed file and calls fn for each line.
func streamGzLines(ctx context.Context, path string, fn func(line []byte) error) error {
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

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// Command seed-db bootstraps a storefront database: roles, an admin account
// and a demo product catalog.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/modaluna/storefront/internal/domain/product"
	"github.com/modaluna/storefront/internal/domain/user"
	"github.com/modaluna/storefront/internal/postgres"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Sizes       string          `json:"sizes"`
	Color       string          `json:"color"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Photo       string          `json:"photo"`
}

func main() {
	var (
		databaseURL   string
		productsFile  string
		adminID       string
		adminPassword string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&adminID, "admin-id", "admin", "admin account ID")
	flag.StringVar(&adminPassword, "admin-password", "", "admin account password (or STORE_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("STORE_SEED_ADMIN_PASSWORD")
	}
	if adminPassword == "" {
		slog.Error("admin password is required: set --admin-password or STORE_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, adminID, adminPassword); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, adminID, adminPassword string) error {
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

	roles := postgres.NewRoleRepository(pool)
	users := postgres.NewUserRepository(pool)
	products := postgres.NewProductRepository(pool)

	adminRole, err := seedRoles(ctx, roles)
	if err != nil {
		return errors.Wrap(err, "seed roles")
	}

	if err := seedAdmin(ctx, users, adminRole, adminID, adminPassword); err != nil {
		return errors.Wrap(err, "seed admin user")
	}

	if err := seedProducts(ctx, products, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	return nil
}

func seedRoles(ctx context.Context, roles user.RoleRepository) (*user.Role, error) {
	slog.Info("seeding roles")

	if _, err := roles.FindOrCreate(ctx, user.RoleUser); err != nil {
		return nil, errors.Wrapf(err, "role %s", user.RoleUser)
	}
	admin, err := roles.FindOrCreate(ctx, user.RoleAdmin)
	if err != nil {
		return nil, errors.Wrapf(err, "role %s", user.RoleAdmin)
	}
	return admin, nil
}

func seedAdmin(ctx context.Context, users user.Repository, role *user.Role, id, password string) error {
	if _, err := users.GetByID(ctx, id); err == nil {
		slog.Info("admin user already exists", slog.String("id", id))
		return nil
	} else if !errors.Is(err, user.ErrNotFound) {
		return errors.Wrap(err, "check admin user")
	}

	u := &user.User{
		ID:     id,
		Name:   "Administrator",
		Email:  id + "@storefront.local",
		RoleID: role.ID,
	}
	if err := u.SetPassword(password); err != nil {
		return err
	}
	if err := users.Create(ctx, u); err != nil {
		return errors.Wrap(err, "create admin user")
	}

	slog.Info("created admin user", slog.String("id", id))
	return nil
}

func seedProducts(ctx context.Context, products product.Repository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var parsed []productJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("seeding products", slog.Int("count", len(parsed)))

	for _, p := range parsed {
		if _, err := products.GetByID(ctx, p.ID); err == nil {
			slog.Info("product already exists", slog.String("id", p.ID))
			continue
		} else if !errors.Is(err, product.ErrNotFound) {
			return errors.Wrapf(err, "check product %s", p.ID)
		}

		if err := products.Create(ctx, &product.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			Sizes:       p.Sizes,
			Color:       p.Color,
			Price:       p.Price,
			Available:   true,
			Stock:       p.Stock,
			Photo:       p.Photo,
		}); err != nil {
			return errors.Wrapf(err, "create product %s", p.ID)
		}

		slog.Info("created product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

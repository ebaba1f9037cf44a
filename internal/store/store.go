package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a requested row does not exist or is scoped to
// another tenant.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sqlx.DB
}

// NewStore connects to the database, applies pending migrations and returns
// the store.
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrateUp(db.DB); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection. Used by tests.
func NewStoreWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateStore inserts a new merchant store.
func (s *Store) CreateStore(ctx context.Context, st *models.Store) error {
	query := `
		INSERT INTO stores (owner_id, name, slug, currency, subscription_plan, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, st, query,
		st.OwnerID, st.Name, st.Slug, st.Currency, st.SubscriptionPlan, st.Status)
}

// GetStoreByID retrieves a store by ID
func (s *Store) GetStoreByID(ctx context.Context, id string) (*models.Store, error) {
	var st models.Store
	err := s.db.GetContext(ctx, &st, "SELECT * FROM stores WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetStoreBySlug retrieves a store by its public slug
func (s *Store) GetStoreBySlug(ctx context.Context, slug string) (*models.Store, error) {
	var st models.Store
	err := s.db.GetContext(ctx, &st, "SELECT * FROM stores WHERE slug = $1", slug)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetStoreByOwner retrieves the store owned by the given identity.
func (s *Store) GetStoreByOwner(ctx context.Context, ownerID string) (*models.Store, error) {
	var st models.Store
	err := s.db.GetContext(ctx, &st,
		"SELECT * FROM stores WHERE owner_id = $1 ORDER BY created_at LIMIT 1", ownerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store for owner %s: %w", ownerID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// SlugExists reports whether a store already claimed the slug. Best-effort
// only: a concurrent registration can still win the unique index.
func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM stores WHERE slug = $1)", slug)
	return exists, err
}

// SetStorePlan updates the store's subscription plan flag.
func (s *Store) SetStorePlan(ctx context.Context, storeID, plan string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE stores SET subscription_plan = $1, updated_at = NOW() WHERE id = $2",
		plan, storeID)
	return err
}

// CreateProduct inserts a new product for a store.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (store_id, name, description, category, price, sale_price,
			status, image_urls, file_url, download_limit, expiry_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, p, query,
		p.StoreID, p.Name, p.Description, p.Category, p.Price, p.SalePrice,
		p.Status, p.ImageURLs, p.FileURL, p.DownloadLimit, p.ExpiryDays)
}

// UpdateProduct updates an existing product scoped to its store.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, category = $3, price = $4, sale_price = $5,
			status = $6, image_urls = $7, file_url = $8, download_limit = $9,
			expiry_days = $10, updated_at = NOW()
		WHERE id = $11 AND store_id = $12`,
		p.Name, p.Description, p.Category, p.Price, p.SalePrice,
		p.Status, p.ImageURLs, p.FileURL, p.DownloadLimit, p.ExpiryDays,
		p.ID, p.StoreID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

// GetProductsForStore retrieves the requested products scoped to one store.
// IDs belonging to other stores are silently excluded.
func (s *Store) GetProductsForStore(ctx context.Context, ids []string, storeID string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT * FROM products WHERE id IN (?) AND store_id = ?", ids, storeID)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetStoreProducts retrieves all products of a store, newest first.
func (s *Store) GetStoreProducts(ctx context.Context, storeID string) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE store_id = $1 ORDER BY created_at DESC", storeID)
	return products, err
}

// GetPublishedProducts retrieves the storefront-visible products of a store.
func (s *Store) GetPublishedProducts(ctx context.Context, storeID string) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE store_id = $1 AND status = $2 ORDER BY created_at DESC",
		storeID, models.ProductStatusPublished)
	return products, err
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const storefrontCacheTTL = time.Minute

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// CatalogStore is the persistence surface for store and product management.
type CatalogStore interface {
	CreateStore(ctx context.Context, st *models.Store) error
	GetStoreBySlug(ctx context.Context, slug string) (*models.Store, error)
	GetStoreByOwner(ctx context.Context, ownerID string) (*models.Store, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	GetStoreProducts(ctx context.Context, storeID string) ([]models.Product, error)
	GetPublishedProducts(ctx context.Context, storeID string) ([]models.Product, error)
}

// StorefrontCache caches public storefront projections by slug.
type StorefrontCache interface {
	GetStorefront(ctx context.Context, slug string, dest interface{}) (bool, error)
	CacheStorefront(ctx context.Context, slug string, value interface{}, ttl time.Duration) error
	InvalidateStorefront(ctx context.Context, slug string) error
}

// CatalogService covers merchant store registration, product management and
// the public storefront projection.
type CatalogService struct {
	store           CatalogStore
	cache           StorefrontCache
	defaultCurrency string
	logger          *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store CatalogStore, cache StorefrontCache, defaultCurrency string) *CatalogService {
	return &CatalogService{
		store:           store,
		cache:           cache,
		defaultCurrency: defaultCurrency,
		logger:          util.GetLogger(),
	}
}

// RegisterStoreRequest carries the merchant's registration form.
type RegisterStoreRequest struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Currency string `json:"currency,omitempty"`
}

// RegisterStore creates a merchant store on the free plan. The slug check is
// best effort; the unique index is the final arbiter under races.
func (s *CatalogService) RegisterStore(ctx context.Context, ownerID string, req *RegisterStoreRequest) (*models.Store, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: identity required", ErrUnauthorized)
	}

	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if req.Name == "" || slug == "" {
		return nil, fmt.Errorf("%w: store name and slug are required", ErrValidation)
	}
	if !slugPattern.MatchString(slug) {
		return nil, fmt.Errorf("%w: slug may only contain lowercase letters, digits and hyphens", ErrValidation)
	}

	taken, err := s.store.SlugExists(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to check slug: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%w: slug %q is already taken", ErrValidation, slug)
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}

	st := &models.Store{
		OwnerID:          ownerID,
		Name:             req.Name,
		Slug:             slug,
		Currency:         currency,
		SubscriptionPlan: models.PlanFree,
		Status:           models.StoreStatusActive,
	}
	if err := s.store.CreateStore(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	s.logger.Info("Store registered",
		zap.String("store_id", st.ID),
		zap.String("slug", st.Slug))
	return st, nil
}

// SlugAvailable reports whether a slug is still free to claim.
func (s *CatalogService) SlugAvailable(ctx context.Context, slug string) (bool, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return false, fmt.Errorf("%w: slug is required", ErrValidation)
	}
	taken, err := s.store.SlugExists(ctx, slug)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return !taken, nil
}

// ProductInput carries a product create or update form.
type ProductInput struct {
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Category      string          `json:"category,omitempty"`
	Price         decimal.Decimal `json:"price"`
	SalePrice     decimal.Decimal `json:"sale_price,omitempty"`
	Status        string          `json:"status,omitempty"`
	ImageURLs     []string        `json:"image_urls,omitempty"`
	FileURL       string          `json:"file_url,omitempty"`
	DownloadLimit *int64          `json:"download_limit,omitempty"`
	ExpiryDays    *int64          `json:"expiry_days,omitempty"`
}

func (in *ProductInput) validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if in.Price.IsNegative() || in.SalePrice.IsNegative() {
		return fmt.Errorf("%w: prices must not be negative", ErrValidation)
	}
	switch in.Status {
	case "", models.ProductStatusDraft, models.ProductStatusPublished:
	default:
		return fmt.Errorf("%w: status must be draft or published", ErrValidation)
	}
	return nil
}

func (in *ProductInput) apply(p *models.Product) {
	p.Name = in.Name
	p.Description = in.Description
	p.Category = in.Category
	p.Price = in.Price
	p.SalePrice = in.SalePrice
	p.Status = in.Status
	if p.Status == "" {
		p.Status = models.ProductStatusDraft
	}
	p.ImageURLs = in.ImageURLs
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	p.FileURL = sql.NullString{String: in.FileURL, Valid: in.FileURL != ""}
	p.DownloadLimit = sql.NullInt64{}
	if in.DownloadLimit != nil {
		p.DownloadLimit = sql.NullInt64{Int64: *in.DownloadLimit, Valid: true}
	}
	p.ExpiryDays = sql.NullInt64{}
	if in.ExpiryDays != nil {
		p.ExpiryDays = sql.NullInt64{Int64: *in.ExpiryDays, Valid: true}
	}
}

// CreateProduct adds a product to the caller's store.
func (s *CatalogService) CreateProduct(ctx context.Context, ownerID string, in *ProductInput) (*models.Product, error) {
	st, err := s.ownedStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	p := &models.Product{StoreID: st.ID}
	in.apply(p)
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.invalidateStorefront(ctx, st.Slug)
	s.logger.Info("Product created",
		zap.String("product_id", p.ID),
		zap.String("store_id", st.ID))
	return p, nil
}

// UpdateProduct edits a product of the caller's store. Products of other
// stores are invisible, not forbidden.
func (s *CatalogService) UpdateProduct(ctx context.Context, ownerID, productID string, in *ProductInput) (*models.Product, error) {
	st, err := s.ownedStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	p := &models.Product{ID: productID, StoreID: st.ID}
	in.apply(p)
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.invalidateStorefront(ctx, st.Slug)
	return p, nil
}

// ListProducts returns all products of the caller's store, drafts included.
func (s *CatalogService) ListProducts(ctx context.Context, ownerID string) ([]models.Product, error) {
	st, err := s.ownedStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.store.GetStoreProducts(ctx, st.ID)
}

// StorefrontResponse is the public projection of a store and its published
// products.
type StorefrontResponse struct {
	Store    *models.Store    `json:"store"`
	Products []models.Product `json:"products"`
}

// Storefront resolves the public storefront by slug, served from cache when
// fresh.
func (s *CatalogService) Storefront(ctx context.Context, slug string) (*StorefrontResponse, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, fmt.Errorf("%w: slug is required", ErrValidation)
	}

	if s.cache != nil {
		var cached StorefrontResponse
		hit, err := s.cache.GetStorefront(ctx, slug, &cached)
		if err != nil {
			s.logger.Warn("Storefront cache read failed", zap.String("slug", slug), zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	st, err := s.store.GetStoreBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: store %s", ErrNotFound, slug)
		}
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	products, err := s.store.GetPublishedProducts(ctx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	resp := &StorefrontResponse{Store: st, Products: products}
	if s.cache != nil {
		if err := s.cache.CacheStorefront(ctx, slug, resp, storefrontCacheTTL); err != nil {
			s.logger.Warn("Storefront cache write failed", zap.String("slug", slug), zap.Error(err))
		}
	}
	return resp, nil
}

func (s *CatalogService) ownedStore(ctx context.Context, ownerID string) (*models.Store, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: identity required", ErrUnauthorized)
	}
	st, err := s.store.GetStoreByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no store for caller", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load store: %w", err)
	}
	return st, nil
}

func (s *CatalogService) invalidateStorefront(ctx context.Context, slug string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateStorefront(ctx, slug); err != nil {
		s.logger.Warn("Storefront cache invalidation failed", zap.String("slug", slug), zap.Error(err))
	}
}

package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalogStore struct {
	slugTaken     bool
	storeBySlug   *models.Store
	storeByOwner  *models.Store
	createdStore  *models.Store
	createdProd   *models.Product
	updatedProd   *models.Product
	updateMissing bool
	published     []models.Product
	all           []models.Product
}

func (f *fakeCatalogStore) CreateStore(_ context.Context, st *models.Store) error {
	st.ID = "store-1"
	f.createdStore = st
	return nil
}

func (f *fakeCatalogStore) GetStoreBySlug(_ context.Context, slug string) (*models.Store, error) {
	if f.storeBySlug == nil {
		return nil, store.ErrNotFound
	}
	return f.storeBySlug, nil
}

func (f *fakeCatalogStore) GetStoreByOwner(_ context.Context, ownerID string) (*models.Store, error) {
	if f.storeByOwner == nil {
		return nil, store.ErrNotFound
	}
	return f.storeByOwner, nil
}

func (f *fakeCatalogStore) SlugExists(_ context.Context, slug string) (bool, error) {
	return f.slugTaken, nil
}

func (f *fakeCatalogStore) CreateProduct(_ context.Context, p *models.Product) error {
	p.ID = "product-1"
	f.createdProd = p
	return nil
}

func (f *fakeCatalogStore) UpdateProduct(_ context.Context, p *models.Product) error {
	if f.updateMissing {
		return store.ErrNotFound
	}
	f.updatedProd = p
	return nil
}

func (f *fakeCatalogStore) GetStoreProducts(_ context.Context, storeID string) ([]models.Product, error) {
	return f.all, nil
}

func (f *fakeCatalogStore) GetPublishedProducts(_ context.Context, storeID string) ([]models.Product, error) {
	return f.published, nil
}

type fakeStorefrontCache struct {
	data        map[string][]byte
	invalidated []string
}

func newFakeStorefrontCache() *fakeStorefrontCache {
	return &fakeStorefrontCache{data: map[string][]byte{}}
}

func (f *fakeStorefrontCache) GetStorefront(_ context.Context, slug string, dest interface{}) (bool, error) {
	raw, ok := f.data[slug]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeStorefrontCache) CacheStorefront(_ context.Context, slug string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[slug] = raw
	return nil
}

func (f *fakeStorefrontCache) InvalidateStorefront(_ context.Context, slug string) error {
	delete(f.data, slug)
	f.invalidated = append(f.invalidated, slug)
	return nil
}

func TestRegisterStore(t *testing.T) {
	cs := &fakeCatalogStore{}
	svc := NewCatalogService(cs, nil, "SAR")

	st, err := svc.RegisterStore(context.Background(), "user-1", &RegisterStoreRequest{
		Name: "Handmade Goods",
		Slug: " My-Shop ",
	})
	require.NoError(t, err)

	assert.Equal(t, "store-1", st.ID)
	assert.Equal(t, "my-shop", st.Slug)
	assert.Equal(t, "SAR", st.Currency)
	assert.Equal(t, models.PlanFree, st.SubscriptionPlan)
	assert.Equal(t, models.StoreStatusActive, st.Status)
}

func TestRegisterStoreValidation(t *testing.T) {
	svc := NewCatalogService(&fakeCatalogStore{}, nil, "SAR")

	_, err := svc.RegisterStore(context.Background(), "", &RegisterStoreRequest{Name: "x", Slug: "x"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.RegisterStore(context.Background(), "user-1", &RegisterStoreRequest{Name: "", Slug: "x"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.RegisterStore(context.Background(), "user-1", &RegisterStoreRequest{Name: "x", Slug: "Bad Slug!"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegisterStoreSlugTaken(t *testing.T) {
	svc := NewCatalogService(&fakeCatalogStore{slugTaken: true}, nil, "SAR")

	_, err := svc.RegisterStore(context.Background(), "user-1", &RegisterStoreRequest{
		Name: "Shop",
		Slug: "my-shop",
	})

	assert.ErrorIs(t, err, ErrValidation)
}

func TestSlugAvailable(t *testing.T) {
	svc := NewCatalogService(&fakeCatalogStore{slugTaken: false}, nil, "SAR")

	ok, err := svc.SlugAvailable(context.Background(), "my-shop")
	require.NoError(t, err)
	assert.True(t, ok)

	svc = NewCatalogService(&fakeCatalogStore{slugTaken: true}, nil, "SAR")
	ok, err = svc.SlugAvailable(context.Background(), "my-shop")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateProduct(t *testing.T) {
	cs := &fakeCatalogStore{
		storeByOwner: &models.Store{ID: "store-1", Slug: "my-shop"},
	}
	cache := newFakeStorefrontCache()
	svc := NewCatalogService(cs, cache, "SAR")

	limit := int64(5)
	p, err := svc.CreateProduct(context.Background(), "user-1", &ProductInput{
		Name:          "Ebook",
		Price:         decimal.RequireFromString("49.99"),
		Status:        models.ProductStatusPublished,
		FileURL:       "https://cdn.example.com/ebook.pdf",
		DownloadLimit: &limit,
	})
	require.NoError(t, err)

	assert.Equal(t, "product-1", p.ID)
	assert.Equal(t, "store-1", p.StoreID)
	assert.Equal(t, models.ProductStatusPublished, p.Status)
	assert.True(t, p.FileURL.Valid)
	assert.True(t, p.DownloadLimit.Valid)
	assert.Equal(t, int64(5), p.DownloadLimit.Int64)
	assert.Contains(t, cache.invalidated, "my-shop")
}

func TestCreateProductDefaultsToDraft(t *testing.T) {
	cs := &fakeCatalogStore{storeByOwner: &models.Store{ID: "store-1", Slug: "my-shop"}}
	svc := NewCatalogService(cs, nil, "SAR")

	p, err := svc.CreateProduct(context.Background(), "user-1", &ProductInput{
		Name:  "Ebook",
		Price: decimal.RequireFromString("10"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.ProductStatusDraft, p.Status)
	assert.False(t, p.FileURL.Valid)
}

func TestCreateProductValidation(t *testing.T) {
	cs := &fakeCatalogStore{storeByOwner: &models.Store{ID: "store-1"}}
	svc := NewCatalogService(cs, nil, "SAR")

	_, err := svc.CreateProduct(context.Background(), "user-1", &ProductInput{Name: ""})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateProduct(context.Background(), "user-1", &ProductInput{
		Name:  "Ebook",
		Price: decimal.RequireFromString("-1"),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateProduct(context.Background(), "user-1", &ProductInput{
		Name:   "Ebook",
		Price:  decimal.RequireFromString("1"),
		Status: "archived",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateProductNoStore(t *testing.T) {
	svc := NewCatalogService(&fakeCatalogStore{}, nil, "SAR")

	_, err := svc.CreateProduct(context.Background(), "user-1", &ProductInput{
		Name:  "Ebook",
		Price: decimal.RequireFromString("10"),
	})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProductNotFound(t *testing.T) {
	cs := &fakeCatalogStore{
		storeByOwner:  &models.Store{ID: "store-1", Slug: "my-shop"},
		updateMissing: true,
	}
	svc := NewCatalogService(cs, nil, "SAR")

	_, err := svc.UpdateProduct(context.Background(), "user-1", "other-product", &ProductInput{
		Name:  "Ebook",
		Price: decimal.RequireFromString("10"),
	})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorefrontCaching(t *testing.T) {
	cs := &fakeCatalogStore{
		storeBySlug: &models.Store{ID: "store-1", Slug: "my-shop", Name: "Shop"},
		published: []models.Product{
			{ID: "p1", Name: "Ebook", Status: models.ProductStatusPublished},
		},
	}
	cache := newFakeStorefrontCache()
	svc := NewCatalogService(cs, cache, "SAR")

	resp, err := svc.Storefront(context.Background(), "My-Shop")
	require.NoError(t, err)
	require.Len(t, resp.Products, 1)
	assert.Contains(t, cache.data, "my-shop")

	// Second read is served from cache even after the row disappears.
	cs.storeBySlug = nil
	resp, err = svc.Storefront(context.Background(), "my-shop")
	require.NoError(t, err)
	assert.Equal(t, "store-1", resp.Store.ID)
}

func TestStorefrontNotFound(t *testing.T) {
	svc := NewCatalogService(&fakeCatalogStore{}, newFakeStorefrontCache(), "SAR")

	_, err := svc.Storefront(context.Background(), "no-such-shop")

	assert.ErrorIs(t, err, ErrNotFound)
}

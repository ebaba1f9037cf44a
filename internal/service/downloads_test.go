package service

import (
	"context"
	"database/sql"
	"testing"

	"storefront-service/internal/models"
	"storefront-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDownloadStore struct {
	storeRow *models.Store
	order    *models.Order
	items    []models.DownloadItem
}

func (f *fakeDownloadStore) GetStoreBySlug(_ context.Context, slug string) (*models.Store, error) {
	if f.storeRow == nil {
		return nil, store.ErrNotFound
	}
	return f.storeRow, nil
}

func (f *fakeDownloadStore) GetOrderForStore(_ context.Context, orderID, storeID string) (*models.Order, error) {
	if f.order == nil {
		return nil, store.ErrNotFound
	}
	return f.order, nil
}

func (f *fakeDownloadStore) GetDownloadItems(_ context.Context, orderID string) ([]models.DownloadItem, error) {
	return f.items, nil
}

func TestGetDownloadsMissingParams(t *testing.T) {
	svc := NewDownloadService(&fakeDownloadStore{})

	_, err := svc.GetDownloads(context.Background(), "", "order-1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.GetDownloads(context.Background(), "my-shop", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetDownloadsStoreNotFound(t *testing.T) {
	svc := NewDownloadService(&fakeDownloadStore{})

	_, err := svc.GetDownloads(context.Background(), "no-such-shop", "order-1")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetDownloadsOrderNotFound(t *testing.T) {
	svc := NewDownloadService(&fakeDownloadStore{
		storeRow: &models.Store{ID: "store-1", Slug: "my-shop"},
	})

	_, err := svc.GetDownloads(context.Background(), "my-shop", "order-1")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetDownloadsPendingOrderRefused(t *testing.T) {
	svc := NewDownloadService(&fakeDownloadStore{
		storeRow: &models.Store{ID: "store-1", Slug: "my-shop"},
		order:    &models.Order{ID: "order-1", StoreID: "store-1", Status: models.OrderStatusPending},
		items: []models.DownloadItem{
			{ProductID: "p1", Name: "Ebook", FileURL: sql.NullString{String: "https://cdn.example.com/ebook.pdf", Valid: true}},
		},
	})

	resp, err := svc.GetDownloads(context.Background(), "my-shop", "order-1")

	assert.ErrorIs(t, err, ErrOrderNotCompleted)
	assert.Nil(t, resp)
}

func TestGetDownloadsFailedOrderRefused(t *testing.T) {
	svc := NewDownloadService(&fakeDownloadStore{
		storeRow: &models.Store{ID: "store-1", Slug: "my-shop"},
		order:    &models.Order{ID: "order-1", StoreID: "store-1", Status: models.OrderStatusFailed},
	})

	_, err := svc.GetDownloads(context.Background(), "my-shop", "order-1")

	assert.ErrorIs(t, err, ErrOrderNotCompleted)
}

func TestGetDownloadsCompletedOrder(t *testing.T) {
	svc := NewDownloadService(&fakeDownloadStore{
		storeRow: &models.Store{ID: "store-1", Slug: "my-shop"},
		order:    &models.Order{ID: "order-1", StoreID: "store-1", Status: models.OrderStatusCompleted},
		items: []models.DownloadItem{
			{
				ProductID:     "p1",
				Name:          "Ebook",
				FileURL:       sql.NullString{String: "https://cdn.example.com/ebook.pdf", Valid: true},
				DownloadLimit: sql.NullInt64{Int64: 3, Valid: true},
			},
			{ProductID: "p2", Name: "Preset Pack"},
		},
	})

	resp, err := svc.GetDownloads(context.Background(), "my-shop", "order-1")
	require.NoError(t, err)

	assert.Equal(t, "order-1", resp.OrderID)
	require.Len(t, resp.Items, 2)

	assert.True(t, resp.Items[0].Available)
	assert.Equal(t, "https://cdn.example.com/ebook.pdf", resp.Items[0].FileURL)
	require.NotNil(t, resp.Items[0].DownloadLimit)
	assert.Equal(t, int64(3), *resp.Items[0].DownloadLimit)

	// Missing file reference is surfaced as unavailable, not omitted.
	assert.False(t, resp.Items[1].Available)
	assert.Empty(t, resp.Items[1].FileURL)
}

package service

import (
	"context"
	"errors"
	"fmt"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// DownloadStore is the persistence surface the download gate reads.
type DownloadStore interface {
	GetStoreBySlug(ctx context.Context, slug string) (*models.Store, error)
	GetOrderForStore(ctx context.Context, orderID, storeID string) (*models.Order, error)
	GetDownloadItems(ctx context.Context, orderID string) ([]models.DownloadItem, error)
}

// DownloadService resolves a completed order's purchased assets. It holds the
// sole access-control gate in front of digital files: nothing is surfaced
// until the order reaches completed.
type DownloadService struct {
	store  DownloadStore
	logger *zap.Logger
}

// NewDownloadService creates a new download service
func NewDownloadService(store DownloadStore) *DownloadService {
	return &DownloadService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// DownloadEntry is one purchased product's retrievable asset. Available is
// false when the product has no file reference; the rest of the response is
// still served.
type DownloadEntry struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	FileURL       string `json:"file_url,omitempty"`
	Available     bool   `json:"available"`
	DownloadLimit *int64 `json:"download_limit,omitempty"`
	ExpiryDays    *int64 `json:"expiry_days,omitempty"`
}

// DownloadsResponse lists the assets of a completed order.
type DownloadsResponse struct {
	OrderID string          `json:"order_id"`
	Items   []DownloadEntry `json:"items"`
}

// GetDownloads resolves the store by slug, the order scoped to that store,
// refuses unless the order is completed, and projects the purchased items.
func (s *DownloadService) GetDownloads(ctx context.Context, slug, orderID string) (*DownloadsResponse, error) {
	ctx, span := util.StartSpan(ctx, "DownloadService.GetDownloads")
	defer span.End()

	if slug == "" || orderID == "" {
		util.DownloadsRefusedTotal.WithLabelValues("invalid_request").Inc()
		return nil, fmt.Errorf("%w: store slug and order id are required", ErrValidation)
	}

	st, err := s.store.GetStoreBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.DownloadsRefusedTotal.WithLabelValues("store_not_found").Inc()
			return nil, fmt.Errorf("%w: store %s", ErrNotFound, slug)
		}
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	order, err := s.store.GetOrderForStore(ctx, orderID, st.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.DownloadsRefusedTotal.WithLabelValues("order_not_found").Inc()
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if order.Status != models.OrderStatusCompleted {
		util.DownloadsRefusedTotal.WithLabelValues("order_not_completed").Inc()
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderNotCompleted, orderID, order.Status)
	}

	items, err := s.store.GetDownloadItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	entries := make([]DownloadEntry, 0, len(items))
	for _, item := range items {
		entry := DownloadEntry{
			ProductID: item.ProductID,
			Name:      item.Name,
			Available: item.FileURL.Valid && item.FileURL.String != "",
		}
		if entry.Available {
			entry.FileURL = item.FileURL.String
		}
		if item.DownloadLimit.Valid {
			v := item.DownloadLimit.Int64
			entry.DownloadLimit = &v
		}
		if item.ExpiryDays.Valid {
			v := item.ExpiryDays.Int64
			entry.ExpiryDays = &v
		}
		entries = append(entries, entry)
	}

	util.DownloadsServedTotal.Inc()
	s.logger.Info("Downloads served",
		zap.String("order_id", orderID),
		zap.String("store_slug", slug),
		zap.Int("items", len(entries)))

	return &DownloadsResponse{OrderID: orderID, Items: entries}, nil
}

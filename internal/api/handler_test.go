package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret"

type stubDownloadStore struct {
	storeRow *models.Store
	order    *models.Order
	items    []models.DownloadItem
}

func (s *stubDownloadStore) GetStoreBySlug(_ context.Context, slug string) (*models.Store, error) {
	if s.storeRow == nil {
		return nil, store.ErrNotFound
	}
	return s.storeRow, nil
}

func (s *stubDownloadStore) GetOrderForStore(_ context.Context, orderID, storeID string) (*models.Order, error) {
	if s.order == nil {
		return nil, store.ErrNotFound
	}
	return s.order, nil
}

func (s *stubDownloadStore) GetDownloadItems(_ context.Context, orderID string) ([]models.DownloadItem, error) {
	return s.items, nil
}

type stubReconcilerStore struct{}

func (stubReconcilerStore) UpdateOrderStatusByIntent(_ context.Context, _, _ string) (int64, error) {
	return 1, nil
}

func (stubReconcilerStore) UpdateSubscriptionByRemoteID(_ context.Context, _, _ string, _ *time.Time) (int64, error) {
	return 1, nil
}

func (stubReconcilerStore) SetSubscriptionStatusByRemoteID(_ context.Context, _, _ string) (int64, error) {
	return 1, nil
}

func (stubReconcilerStore) BindSubscriptionRemoteID(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (stubReconcilerStore) SetStorePlan(_ context.Context, _, _ string) error {
	return nil
}

func newTestRouter(t *testing.T, downloadStore service.DownloadStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if downloadStore == nil {
		downloadStore = &stubDownloadStore{}
	}

	h := NewHandler(
		nil,
		nil,
		service.NewReconciler(stubReconcilerStore{}, nil, nil, "whsec_test"),
		service.NewDownloadService(downloadStore),
		nil,
		testJWTSecret,
	)

	router := gin.New()
	h.SetupRoutes(router)
	return router
}

func signedToken(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": "owner@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	router := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/subscription/create",
		strings.NewReader(`{"storeId":"store-1","email":"x@example.com"}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	router := newTestRouter(t, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/subscription/create",
		strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+signed)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsTokenWithoutSubject(t *testing.T) {
	router := newTestRouter(t, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "owner@example.com",
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/subscription/create",
		strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+signed)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStripeWebhookMissingSignature(t *testing.T) {
	router := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/stripe",
		bytes.NewReader([]byte(`{"id":"evt_1"}`)))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Missing signature")
}

func TestStripeWebhookInvalidSignature(t *testing.T) {
	router := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/stripe",
		bytes.NewReader([]byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid signature")
}

func TestOrderDownloadsStoreNotFound(t *testing.T) {
	router := newTestRouter(t, &stubDownloadStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stores/no-such-shop/orders/order-1/downloads", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderDownloadsPendingOrderForbidden(t *testing.T) {
	router := newTestRouter(t, &stubDownloadStore{
		storeRow: &models.Store{ID: "store-1", Slug: "my-shop"},
		order:    &models.Order{ID: "order-1", StoreID: "store-1", Status: models.OrderStatusPending},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stores/my-shop/orders/order-1/downloads", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOrderDownloadsCompletedOrder(t *testing.T) {
	router := newTestRouter(t, &stubDownloadStore{
		storeRow: &models.Store{ID: "store-1", Slug: "my-shop"},
		order:    &models.Order{ID: "order-1", StoreID: "store-1", Status: models.OrderStatusCompleted},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stores/my-shop/orders/order-1/downloads", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "order-1")
}

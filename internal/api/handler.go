package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"storefront-service/internal/service"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// webhookBodyLimit caps inbound webhook payloads.
const webhookBodyLimit = 1 << 20

// Handler contains HTTP handlers
type Handler struct {
	checkout      *service.CheckoutService
	subscriptions *service.SubscriptionService
	reconciler    *service.Reconciler
	downloads     *service.DownloadService
	catalog       *service.CatalogService
	jwtSecret     string
	logger        *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	checkout *service.CheckoutService,
	subscriptions *service.SubscriptionService,
	reconciler *service.Reconciler,
	downloads *service.DownloadService,
	catalog *service.CatalogService,
	jwtSecret string,
) *Handler {
	return &Handler{
		checkout:      checkout,
		subscriptions: subscriptions,
		reconciler:    reconciler,
		downloads:     downloads,
		catalog:       catalog,
		jwtSecret:     jwtSecret,
		logger:        util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		// Public surface: storefront pages, checkout, downloads and the
		// processor's webhook need no identity.
		api.POST("/checkout/create", h.createCheckout)
		api.POST("/webhook/stripe", h.stripeWebhook)
		api.GET("/stores/slug-availability", h.slugAvailability)
		api.GET("/stores/:slug", h.storefront)
		api.GET("/stores/:slug/orders/:orderID/downloads", h.orderDownloads)

		authed := api.Group("", authMiddleware(h.jwtSecret))
		{
			authed.POST("/subscription/create", h.createSubscription)
			authed.POST("/stores", h.registerStore)
			authed.POST("/products", h.createProduct)
			authed.PUT("/products/:id", h.updateProduct)
			authed.GET("/merchant/products", h.listProducts)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createCheckout opens a payment intent for a cart and persists the pending
// order.
func (h *Handler) createCheckout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	resp, err := h.checkout.CreateCheckout(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// createSubscription initiates a pro-plan subscription for the caller.
func (h *Handler) createSubscription(c *gin.Context) {
	var req struct {
		StoreID string `json:"storeId"`
		Email   string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	resp, err := h.subscriptions.CreateSubscription(c.Request.Context(), c.GetString(ctxUserID), req.StoreID, req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// stripeWebhook receives the processor's signed lifecycle events. The raw
// body is required for signature verification.
func (h *Handler) stripeWebhook(c *gin.Context) {
	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing signature"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	if err := h.reconciler.HandleWebhook(c.Request.Context(), payload, sigHeader); err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
			return
		}
		h.logger.Error("Webhook handling failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process webhook"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// orderDownloads serves the download gate for a completed order.
func (h *Handler) orderDownloads(c *gin.Context) {
	resp, err := h.downloads.GetDownloads(c.Request.Context(), c.Param("slug"), c.Param("orderID"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// respondError maps service errors to status codes. Downstream failures are
// logged with the original error and surfaced as a generic 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, service.ErrOrderNotCompleted):
		c.JSON(http.StatusForbidden, gin.H{"error": "Order is not completed yet"})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

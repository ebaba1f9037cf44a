package api

import (
	"net/http"

	"storefront-service/internal/service"

	"github.com/gin-gonic/gin"
)

// registerStore creates the caller's merchant store.
func (h *Handler) registerStore(c *gin.Context) {
	var req service.RegisterStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	st, err := h.catalog.RegisterStore(c.Request.Context(), c.GetString(ctxUserID), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, st)
}

// slugAvailability reports whether a storefront slug is free to claim.
func (h *Handler) slugAvailability(c *gin.Context) {
	available, err := h.catalog.SlugAvailable(c.Request.Context(), c.Query("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"available": available})
}

// storefront serves the public projection of a store and its published
// products.
func (h *Handler) storefront(c *gin.Context) {
	resp, err := h.catalog.Storefront(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// createProduct adds a product to the caller's store.
func (h *Handler) createProduct(c *gin.Context) {
	var in service.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	p, err := h.catalog.CreateProduct(c.Request.Context(), c.GetString(ctxUserID), &in)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

// updateProduct edits a product of the caller's store.
func (h *Handler) updateProduct(c *gin.Context) {
	var in service.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	p, err := h.catalog.UpdateProduct(c.Request.Context(), c.GetString(ctxUserID), c.Param("id"), &in)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// listProducts returns all products of the caller's store, drafts included.
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

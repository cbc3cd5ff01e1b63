package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/aredondocharro/ClothingStore-sub001/services/common/errors"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DefaultContextTimeout bounds every service call made by a handler.
const DefaultContextTimeout = 10 * time.Second

// InventoryController handles HTTP requests for inventory items and their
// stock reservations. Errors are reported through c.Error and rendered by
// the common error middleware.
type InventoryController struct {
	items        services.ItemService
	reservations services.ReservationService
	timeout      time.Duration
}

// NewInventoryController creates a new InventoryController
func NewInventoryController(items services.ItemService, reservations services.ReservationService) *InventoryController {
	return &InventoryController{items: items, reservations: reservations, timeout: DefaultContextTimeout}
}

func (ic *InventoryController) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), ic.timeout)
}

func fail(c *gin.Context, err error) {
	_ = c.Error(toAppError(err))
}

func itemID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(apperrors.ErrBadRequest.WithReason(ReasonInvalidID).Wrap(err))
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		e := apperrors.ErrInvalidInput.WithReason(ReasonValidation).Wrap(err)
		e.Message = fmt.Sprintf("Invalid request: %v", err)
		_ = c.Error(e)
		return false
	}
	return true
}

// CreateItem registers a new SKU
// POST /inventory/items
func (ic *InventoryController) CreateItem(c *gin.Context) {
	var req models.CreateItemRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := ic.requestContext(c)
	defer cancel()

	item, err := ic.items.CreateItem(ctx, &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// GetItem returns a single item
// GET /inventory/items/:id
func (ic *InventoryController) GetItem(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	ctx, cancel := ic.requestContext(c)
	defer cancel()

	item, err := ic.items.GetItem(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// GetItemBySKU
// GET /inventory/skus/:sku
func (ic *InventoryController) GetItemBySKU(c *gin.Context) {
	ctx, cancel := ic.requestContext(c)
	defer cancel()

	item, err := ic.items.GetItemBySKU(ctx, c.Param("sku"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// SearchItems lists items matching the query filters
// GET /inventory/items?q=&category=&gender=&size=&status=&page=&limit=
func (ic *InventoryController) SearchItems(c *gin.Context) {
	var filter models.ItemFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		_ = c.Error(apperrors.ErrInvalidInput.WithReason(ReasonValidation).Wrap(err))
		return
	}
	page, limit := parsePaginationParams(c)
	ctx, cancel := ic.requestContext(c)
	defer cancel()

	items, total, err := ic.items.SearchItems(ctx, filter, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "meta": pageMeta(page, limit, total)})
}

// UpdateItem replaces descriptive attributes
// PUT /inventory/items/:id
func (ic *InventoryController) UpdateItem(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	var req models.UpdateItemRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := ic.requestContext(c)
	defer cancel()

	item, err := ic.items.UpdateItem(ctx, id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ChangePrice
// PUT /inventory/items/:id/price
func (ic *InventoryController) ChangePrice(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	var req models.ChangePriceRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := ic.requestContext(c)
	defer cancel()

	item, err := ic.items.ChangePrice(ctx, id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// AdjustStock applies a manual on-hand change
// POST /inventory/items/:id/stock-adjustments
func (ic *InventoryController) AdjustStock(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	var req models.AdjustStockRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := ic.requestContext(c)
	defer cancel()

	item, err := ic.items.AdjustStock(ctx, id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Discontinue
// POST /inventory/items/:id/discontinue
func (ic *InventoryController) Discontinue(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	ctx, cancel := ic.requestContext(c)
	defer cancel()

	item, err := ic.items.Discontinue(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ReserveStock holds stock for a reference
// POST /inventory/items/:id/reservations
func (ic *InventoryController) ReserveStock(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	var req models.ReserveStockRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := ic.requestContext(c)
	defer cancel()

	res, err := ic.reservations.ReserveStock(ctx, id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ReleaseStock
// POST /inventory/items/:id/reservations/:reference/release
func (ic *InventoryController) ReleaseStock(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	ctx, cancel := ic.requestContext(c)
	defer cancel()

	item, err := ic.reservations.ReleaseStock(ctx, id, c.Param("reference"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ConsumeStock
// POST /inventory/items/:id/reservations/:reference/consume
func (ic *InventoryController) ConsumeStock(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	ctx, cancel := ic.requestContext(c)
	defer cancel()

	item, err := ic.reservations.ConsumeStock(ctx, id, c.Param("reference"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ListReservations returns the reservation history of an item, newest first
// GET /inventory/items/:id/reservations
func (ic *InventoryController) ListReservations(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	page, limit := parsePaginationParams(c)
	ctx, cancel := ic.requestContext(c)
	defer cancel()

	reservations, total, err := ic.reservations.ListReservations(ctx, id, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": reservations, "meta": pageMeta(page, limit, total)})
}

// parsePaginationParams extracts and validates page/limit query params.
// MaxPage bounds the page query parameter. Larger values are clamped.
const MaxPage = 100000

func parsePaginationParams(ctx *gin.Context) (int, int) {
	const maxLimit = 100
	pageInt, limitInt := 1, 20
	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		if p > MaxPage {
			p = MaxPage
		}
		pageInt = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "20")); err == nil && l > 0 {
		if l > maxLimit {
			l = maxLimit
		}
		limitInt = l
	}
	return pageInt, limitInt
}

func pageMeta(page, limit int, total int64) gin.H {
	return gin.H{
		"page":        page,
		"limit":       limit,
		"total":       total,
		"total_pages": (total + int64(limit) - 1) / int64(limit),
		"has_more":    total > int64(page)*int64(limit),
	}
}

package routes

import (
	"net/http"

	"github.com/aredondocharro/ClothingStore-sub001/services/common/auth"
	"github.com/aredondocharro/ClothingStore-sub001/services/common/middleware"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/controllers"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all inventory service routes. Reads and the
// reservation endpoints used by other services need any valid token;
// catalog and stock mutations need the admin role.
func RegisterRoutes(r *gin.Engine, ctrl *controllers.InventoryController, validator *auth.TokenValidator) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	inventory := r.Group("/inventory")
	inventory.Use(middleware.RequireAuth(validator))
	{
		inventory.GET("/items", ctrl.SearchItems)
		inventory.GET("/items/:id", ctrl.GetItem)
		inventory.GET("/skus/:sku", ctrl.GetItemBySKU)

		inventory.GET("/items/:id/reservations", ctrl.ListReservations)
		inventory.POST("/items/:id/reservations", ctrl.ReserveStock)
		inventory.POST("/items/:id/reservations/:reference/release", ctrl.ReleaseStock)
		inventory.POST("/items/:id/reservations/:reference/consume", ctrl.ConsumeStock)
	}

	admin := inventory.Group("")
	admin.Use(middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.POST("/items", ctrl.CreateItem)
		admin.PUT("/items/:id", ctrl.UpdateItem)
		admin.PUT("/items/:id/price", ctrl.ChangePrice)
		admin.POST("/items/:id/stock-adjustments", ctrl.AdjustStock)
		admin.POST("/items/:id/discontinue", ctrl.Discontinue)
	}
}

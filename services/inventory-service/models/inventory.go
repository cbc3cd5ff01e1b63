package models

import "github.com/google/uuid"

// CreateItemRequest registers a new SKU with its opening on-hand quantity.
type CreateItemRequest struct {
	ID                uuid.UUID     `json:"id"`
	SKU               string        `json:"sku" validate:"required,max=64"`
	Name              string        `json:"name" validate:"required,max=200"`
	Description       string        `json:"description" validate:"max=2000"`
	Category          Category      `json:"category" validate:"required"`
	Gender            Gender        `json:"gender" validate:"required"`
	Size              Size          `json:"size" validate:"required"`
	Fabric            Fabric        `json:"fabric" validate:"required"`
	AccessoryType     AccessoryType `json:"accessory_type"`
	Color             string        `json:"color" validate:"max=64"`
	Price             Money         `json:"price"`
	InitialOnHand     int           `json:"initial_on_hand" validate:"gte=0"`
	LowStockThreshold int           `json:"low_stock_threshold" validate:"gte=0"`
}

func (r *CreateItemRequest) Attributes() ItemAttributes {
	return ItemAttributes{
		Name:          r.Name,
		Description:   r.Description,
		Category:      r.Category,
		Gender:        r.Gender,
		Size:          r.Size,
		Fabric:        r.Fabric,
		AccessoryType: r.AccessoryType,
		Color:         r.Color,
	}
}

// UpdateItemRequest replaces the descriptive attributes of an item.
// LowStockThreshold is left untouched when nil.
type UpdateItemRequest struct {
	Name              string        `json:"name" validate:"required,max=200"`
	Description       string        `json:"description" validate:"max=2000"`
	Category          Category      `json:"category" validate:"required"`
	Gender            Gender        `json:"gender" validate:"required"`
	Size              Size          `json:"size" validate:"required"`
	Fabric            Fabric        `json:"fabric" validate:"required"`
	AccessoryType     AccessoryType `json:"accessory_type"`
	Color             string        `json:"color" validate:"max=64"`
	LowStockThreshold *int          `json:"low_stock_threshold" validate:"omitempty,gte=0"`
}

func (r *UpdateItemRequest) Attributes() ItemAttributes {
	return ItemAttributes{
		Name:          r.Name,
		Description:   r.Description,
		Category:      r.Category,
		Gender:        r.Gender,
		Size:          r.Size,
		Fabric:        r.Fabric,
		AccessoryType: r.AccessoryType,
		Color:         r.Color,
	}
}

type ChangePriceRequest struct {
	Price Money `json:"price"`
}

// AdjustStockRequest changes on-hand by Delta.
type AdjustStockRequest struct {
	Delta  int              `json:"delta" validate:"ne=0"`
	Reason AdjustmentReason `json:"reason" validate:"required"`
}

type ReserveStockRequest struct {
	Reference string `json:"reference" validate:"required,max=128"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// ItemFilter narrows SearchItems. Empty fields match everything.
type ItemFilter struct {
	Query    string     `form:"q"`
	Category Category   `form:"category"`
	Gender   Gender     `form:"gender"`
	Size     Size       `form:"size"`
	Status   ItemStatus `form:"status"`
}

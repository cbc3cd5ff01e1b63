package repository

import (
	"fmt"
	"time"

	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// itemRecord is the relational row of an InventoryItem. Version is the
// optimistic-lock column and never leaves this package except as Version.
type itemRecord struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SKU               string          `gorm:"size:64;not null;uniqueIndex:ux_inventory_items_sku"`
	Name              string          `gorm:"size:200;not null"`
	Description       string          `gorm:"type:text"`
	Category          string          `gorm:"size:32;not null;index"`
	Gender            string          `gorm:"size:16;not null"`
	Size              string          `gorm:"size:16;not null"`
	Fabric            string          `gorm:"size:16;not null"`
	AccessoryType     string          `gorm:"size:16"`
	Color             string          `gorm:"size:64"`
	PriceAmount       decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	PriceCurrency     string          `gorm:"size:3;not null"`
	OnHand            int             `gorm:"not null;check:chk_inventory_items_on_hand,on_hand >= 0"`
	Reserved          int             `gorm:"not null;check:chk_inventory_items_reserved,reserved >= 0 AND reserved <= on_hand"`
	LowStockThreshold int             `gorm:"not null"`
	Status            string          `gorm:"size:16;not null;index"`
	Version           int64           `gorm:"not null"`
	CreatedAt         time.Time       `gorm:"not null"`
	UpdatedAt         time.Time       `gorm:"not null"`
}

func (itemRecord) TableName() string { return "inventory_items" }

func newItemRecord(item models.InventoryItem, version Version) itemRecord {
	return itemRecord{
		ID:                item.ID,
		SKU:               item.SKU,
		Name:              item.Name,
		Description:       item.Description,
		Category:          string(item.Category),
		Gender:            string(item.Gender),
		Size:              string(item.Size),
		Fabric:            string(item.Fabric),
		AccessoryType:     string(item.AccessoryType),
		Color:             item.Color,
		PriceAmount:       item.Price.Amount,
		PriceCurrency:     item.Price.Currency,
		OnHand:            item.Stock.OnHand(),
		Reserved:          item.Stock.Reserved(),
		LowStockThreshold: item.LowStockThreshold,
		Status:            string(item.Status),
		Version:           int64(version),
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
}

func (r itemRecord) toModel() (models.InventoryItem, Version, error) {
	stock, err := models.NewStock(r.OnHand, r.Reserved)
	if err != nil {
		return models.InventoryItem{}, 0, fmt.Errorf("item %s: %w", r.ID, err)
	}
	return models.InventoryItem{
		ID:  r.ID,
		SKU: r.SKU,
		ItemAttributes: models.ItemAttributes{
			Name:          r.Name,
			Description:   r.Description,
			Category:      models.Category(r.Category),
			Gender:        models.Gender(r.Gender),
			Size:          models.Size(r.Size),
			Fabric:        models.Fabric(r.Fabric),
			AccessoryType: models.AccessoryType(r.AccessoryType),
			Color:         r.Color,
		},
		Price:             models.Money{Amount: r.PriceAmount, Currency: r.PriceCurrency},
		Stock:             stock,
		LowStockThreshold: r.LowStockThreshold,
		Status:            models.ItemStatus(r.Status),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}, Version(r.Version), nil
}

// reservationRecord is the relational row of a StockReservation. The
// partial unique index keeps one ACTIVE row per (item_id, reference) while
// RELEASED and CONSUMED history accumulates freely.
type reservationRecord struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ItemID     uuid.UUID  `gorm:"type:uuid;not null;index:ix_stock_reservations_item_created,priority:1;uniqueIndex:ux_stock_reservations_active_ref,priority:1,where:status = 'ACTIVE'"`
	Reference  string     `gorm:"size:128;not null;uniqueIndex:ux_stock_reservations_active_ref,priority:2,where:status = 'ACTIVE'"`
	Quantity   int        `gorm:"not null;check:chk_stock_reservations_quantity,quantity > 0"`
	Status     string     `gorm:"size:16;not null"`
	CreatedAt  time.Time  `gorm:"not null;index:ix_stock_reservations_item_created,priority:2"`
	ReleasedAt *time.Time
	ConsumedAt *time.Time
}

func (reservationRecord) TableName() string { return "stock_reservations" }

func newReservationRecord(r models.StockReservation) reservationRecord {
	return reservationRecord{
		ID:         r.ID,
		ItemID:     r.ItemID,
		Reference:  r.Reference,
		Quantity:   r.Quantity,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt,
		ReleasedAt: r.ReleasedAt,
		ConsumedAt: r.ConsumedAt,
	}
}

func (r reservationRecord) toModel() models.StockReservation {
	return models.StockReservation{
		ID:         r.ID,
		ItemID:     r.ItemID,
		Reference:  r.Reference,
		Quantity:   r.Quantity,
		Status:     models.ReservationStatus(r.Status),
		CreatedAt:  r.CreatedAt,
		ReleasedAt: r.ReleasedAt,
		ConsumedAt: r.ConsumedAt,
	}
}

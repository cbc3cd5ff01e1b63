package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxSKULength  = 64
	maxNameLength = 200
)

// ItemAttributes are the descriptive catalog fields of an item. They never
// influence stock or price.
type ItemAttributes struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Category      Category      `json:"category"`
	Gender        Gender        `json:"gender"`
	Size          Size          `json:"size"`
	Fabric        Fabric        `json:"fabric"`
	AccessoryType AccessoryType `json:"accessory_type,omitempty"`
	Color         string        `json:"color"`
}

// Validate checks enumerations and the accessory rule.
func (a ItemAttributes) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if utf8.RuneCountInString(a.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrValidation, maxNameLength)
	}
	if !a.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, a.Category)
	}
	if !a.Gender.Valid() {
		return fmt.Errorf("%w: unknown gender %q", ErrValidation, a.Gender)
	}
	if !a.Size.Valid() {
		return fmt.Errorf("%w: unknown size %q", ErrValidation, a.Size)
	}
	if !a.Fabric.Valid() {
		return fmt.Errorf("%w: unknown fabric %q", ErrValidation, a.Fabric)
	}
	if a.AccessoryType != "" {
		if a.Category != CategoryAccessories {
			return fmt.Errorf("%w: accessory type requires category %s", ErrValidation, CategoryAccessories)
		}
		if !a.AccessoryType.Valid() {
			return fmt.Errorf("%w: unknown accessory type %q", ErrValidation, a.AccessoryType)
		}
	}
	return nil
}

func (a ItemAttributes) normalized() ItemAttributes {
	a.Name = strings.TrimSpace(a.Name)
	a.Description = strings.TrimSpace(a.Description)
	a.Color = strings.TrimSpace(a.Color)
	return a
}

// InventoryItem is the aggregate root for one sellable SKU.
//
// Every mutating method has a value receiver and returns a new item; the
// receiver is never modified. Callers persist the returned snapshot.
type InventoryItem struct {
	ID  uuid.UUID `json:"id"`
	SKU string    `json:"sku"`
	ItemAttributes
	Price             Money      `json:"price"`
	Stock             Stock      `json:"stock"`
	LowStockThreshold int        `json:"low_stock_threshold"`
	Status            ItemStatus `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewItemParams carries the inputs of NewInventoryItem. A zero ID is
// replaced with a fresh UUID.
type NewItemParams struct {
	ID                uuid.UUID
	SKU               string
	Attributes        ItemAttributes
	Price             Money
	InitialOnHand     int
	LowStockThreshold int
}

// NewInventoryItem creates an ACTIVE item with nothing reserved.
func NewInventoryItem(p NewItemParams, now time.Time) (InventoryItem, error) {
	sku := NormalizeSKU(p.SKU)
	if sku == "" {
		return InventoryItem{}, fmt.Errorf("%w: sku is required", ErrValidation)
	}
	if len(sku) > maxSKULength {
		return InventoryItem{}, fmt.Errorf("%w: sku exceeds %d characters", ErrValidation, maxSKULength)
	}
	attrs := p.Attributes.normalized()
	if err := attrs.Validate(); err != nil {
		return InventoryItem{}, err
	}
	price, err := NewMoney(p.Price.Amount, p.Price.Currency)
	if err != nil {
		return InventoryItem{}, err
	}
	stock, err := NewStock(p.InitialOnHand, 0)
	if err != nil {
		return InventoryItem{}, err
	}
	if p.LowStockThreshold < 0 {
		return InventoryItem{}, fmt.Errorf("%w: low stock threshold is negative", ErrValidation)
	}
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return InventoryItem{
		ID:                id,
		SKU:               sku,
		ItemAttributes:    attrs,
		Price:             price,
		Stock:             stock,
		LowStockThreshold: p.LowStockThreshold,
		Status:            ItemStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// NormalizeSKU trims and upper-cases a SKU.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

func (i InventoryItem) IsDiscontinued() bool { return i.Status == ItemStatusDiscontinued }

// IsLowStock reports whether available stock fell under the threshold.
// A zero threshold disables the check.
func (i InventoryItem) IsLowStock() bool {
	return i.LowStockThreshold > 0 && i.Stock.Available() < i.LowStockThreshold
}

func (i InventoryItem) ensureActive() error {
	if i.IsDiscontinued() {
		return fmt.Errorf("%w: %s", ErrItemDiscontinued, i.SKU)
	}
	return nil
}

func (i InventoryItem) touched(now time.Time) InventoryItem {
	i.UpdatedAt = now
	return i
}

func (i InventoryItem) ChangePrice(price Money, now time.Time) (InventoryItem, error) {
	if err := i.ensureActive(); err != nil {
		return i, err
	}
	validated, err := NewMoney(price.Amount, price.Currency)
	if err != nil {
		return i, err
	}
	next := i.touched(now)
	next.Price = validated
	return next, nil
}

func (i InventoryItem) AdjustOnHand(delta int, now time.Time) (InventoryItem, error) {
	if err := i.ensureActive(); err != nil {
		return i, err
	}
	stock, err := i.Stock.AdjustOnHand(delta)
	if err != nil {
		return i, err
	}
	next := i.touched(now)
	next.Stock = stock
	return next, nil
}

func (i InventoryItem) Reserve(qty int, now time.Time) (InventoryItem, error) {
	if err := i.ensureActive(); err != nil {
		return i, err
	}
	stock, err := i.Stock.Reserve(qty)
	if err != nil {
		return i, err
	}
	next := i.touched(now)
	next.Stock = stock
	return next, nil
}

func (i InventoryItem) ReleaseReserved(qty int, now time.Time) (InventoryItem, error) {
	if err := i.ensureActive(); err != nil {
		return i, err
	}
	stock, err := i.Stock.Release(qty)
	if err != nil {
		return i, err
	}
	next := i.touched(now)
	next.Stock = stock
	return next, nil
}

// ConsumeReserved ships qty reserved units: both reserved and on-hand drop.
func (i InventoryItem) ConsumeReserved(qty int, now time.Time) (InventoryItem, error) {
	if err := i.ensureActive(); err != nil {
		return i, err
	}
	stock, err := i.Stock.Consume(qty)
	if err != nil {
		return i, err
	}
	next := i.touched(now)
	next.Stock = stock
	return next, nil
}

// Discontinue freezes the item. A second call fails with ErrItemDiscontinued.
func (i InventoryItem) Discontinue(now time.Time) (InventoryItem, error) {
	if err := i.ensureActive(); err != nil {
		return i, err
	}
	next := i.touched(now)
	next.Status = ItemStatusDiscontinued
	return next, nil
}

func (i InventoryItem) UpdateDescriptive(attrs ItemAttributes, now time.Time) (InventoryItem, error) {
	if err := i.ensureActive(); err != nil {
		return i, err
	}
	attrs = attrs.normalized()
	if err := attrs.Validate(); err != nil {
		return i, err
	}
	next := i.touched(now)
	next.ItemAttributes = attrs
	return next, nil
}

// SetLowStockThreshold changes the alerting threshold.
func (i InventoryItem) SetLowStockThreshold(threshold int, now time.Time) (InventoryItem, error) {
	if err := i.ensureActive(); err != nil {
		return i, err
	}
	if threshold < 0 {
		return i, fmt.Errorf("%w: low stock threshold is negative", ErrValidation)
	}
	next := i.touched(now)
	next.LowStockThreshold = threshold
	return next, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventItemCreated      EventType = "InventoryItemCreated"
	EventItemUpdated      EventType = "InventoryItemUpdated"
	EventItemPriceChanged EventType = "InventoryItemPriceChanged"
	EventStockAdjusted    EventType = "InventoryStockAdjusted"
	EventStockReserved    EventType = "StockReserved"
	EventItemDiscontinued EventType = "InventoryItemDiscontinued"
)

// DomainEvent is an integration event emitted after a successful commit.
type DomainEvent interface {
	EventType() EventType
	Meta() EventMeta
}

// EventMeta is embedded by every event.
type EventMeta struct {
	ItemID     uuid.UUID `json:"item_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (m EventMeta) Meta() EventMeta { return m }

type ItemCreated struct {
	EventMeta
	SKU    string         `json:"sku"`
	Attrs  ItemAttributes `json:"attributes"`
	Price  Money          `json:"price"`
	OnHand int            `json:"on_hand"`
}

func (ItemCreated) EventType() EventType { return EventItemCreated }

type ItemUpdated struct {
	EventMeta
	SKU   string         `json:"sku"`
	Attrs ItemAttributes `json:"attributes"`
}

func (ItemUpdated) EventType() EventType { return EventItemUpdated }

type ItemPriceChanged struct {
	EventMeta
	SKU      string `json:"sku"`
	OldPrice Money  `json:"old_price"`
	NewPrice Money  `json:"new_price"`
}

func (ItemPriceChanged) EventType() EventType { return EventItemPriceChanged }

// StockAdjusted covers manual adjustments as well as reservation release
// and consumption. OnHandDelta and ReservedDelta are the signed changes.
type StockAdjusted struct {
	EventMeta
	SKU           string           `json:"sku"`
	Reason        AdjustmentReason `json:"reason"`
	Reference     string           `json:"reference,omitempty"`
	OnHandDelta   int              `json:"on_hand_delta"`
	ReservedDelta int              `json:"reserved_delta"`
	Stock         Stock            `json:"stock"`
	LowStock      bool             `json:"low_stock"`
}

func (StockAdjusted) EventType() EventType { return EventStockAdjusted }

type StockReserved struct {
	EventMeta
	ReservationID uuid.UUID `json:"reservation_id"`
	Reference     string    `json:"reference"`
	Quantity      int       `json:"quantity"`
	Stock         Stock     `json:"stock"`
	LowStock      bool      `json:"low_stock"`
}

func (StockReserved) EventType() EventType { return EventStockReserved }

type ItemDiscontinued struct {
	EventMeta
	SKU string `json:"sku"`
}

func (ItemDiscontinued) EventType() EventType { return EventItemDiscontinued }

package repository

import (
	"context"
	"errors"
	"math"

	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound                   = errors.New("record not found")
	ErrVersionConflict            = errors.New("record was modified concurrently")
	ErrDuplicateSKU               = errors.New("sku already exists")
	ErrDuplicateID                = errors.New("record id already exists")
	ErrDuplicateActiveReservation = errors.New("active reservation already exists for item and reference")
)

// Version is the optimistic-lock token of an item. It is returned by the
// find methods and must be passed back unchanged to Save.
type Version int64

// ItemRepository stores InventoryItem snapshots.
type ItemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (models.InventoryItem, Version, error)
	FindBySKU(ctx context.Context, sku string) (models.InventoryItem, Version, error)
	// Create fails with ErrDuplicateSKU when the SKU is taken and with
	// ErrDuplicateID when only the id is.
	Create(ctx context.Context, item models.InventoryItem) error
	// Save fails with ErrVersionConflict unless the stored version equals expected.
	Save(ctx context.Context, item models.InventoryItem, expected Version) error
	Search(ctx context.Context, filter models.ItemFilter, page, limit int) ([]models.InventoryItem, int64, error)
}

// ReservationRepository stores StockReservations. At most one ACTIVE
// reservation may exist per (item, reference).
type ReservationRepository interface {
	FindActiveByItemAndReference(ctx context.Context, itemID uuid.UUID, reference string) (models.StockReservation, error)
	// FindByItemAndReferenceAndStatus returns matches newest first.
	FindByItemAndReferenceAndStatus(ctx context.Context, itemID uuid.UUID, reference string, status models.ReservationStatus) ([]models.StockReservation, error)
	// Create fails with ErrDuplicateActiveReservation when the pair is already held.
	Create(ctx context.Context, r models.StockReservation) error
	// Save persists the transition of a stored ACTIVE reservation to a
	// terminal status. It fails with ErrVersionConflict if the stored row
	// is no longer ACTIVE.
	Save(ctx context.Context, r models.StockReservation) error
	ListByItem(ctx context.Context, itemID uuid.UUID, page, limit int) ([]models.StockReservation, int64, error)
}

// Tx exposes repositories bound to one unit of work.
type Tx interface {
	Items() ItemRepository
	Reservations() ReservationRepository
}

// UnitOfWork runs fn atomically: every write made through tx commits
// together or not at all. Items and Reservations outside Do are for reads
// and single-record writes.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(tx Tx) error) error
	Items() ItemRepository
	Reservations() ReservationRepository
}

// Offset converts a 1-based page into a row offset. It saturates at
// math.MaxInt instead of overflowing, so an absurd page reads nothing.
func Offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

package services

import (
	"errors"

	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/repository"
)

var (
	ErrItemNotFound             = errors.New("inventory item not found")
	ErrReservationNotFound      = errors.New("stock reservation not found")
	ErrReservationAlreadyExists = errors.New("an active stock reservation already exists for this reference")

	// ErrReservationNotActive is matched by *models.ReservationNotActiveError.
	ErrReservationNotActive = models.ErrReservationNotActive

	// ErrConcurrencyConflict means the item changed between load and save.
	// Nothing was written; reload and retry.
	ErrConcurrencyConflict = repository.ErrVersionConflict

	ErrDuplicateSKU = repository.ErrDuplicateSKU

	// ErrDuplicateItemID means the caller supplied an id that is already taken.
	ErrDuplicateItemID = repository.ErrDuplicateID
)

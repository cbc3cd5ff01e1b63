package controllers

import (
	"errors"

	apperrors "github.com/aredondocharro/ClothingStore-sub001/services/common/errors"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/services"
)

// Reasons returned in the error body so clients can branch without
// parsing messages.
const (
	ReasonInvalidID                = "INVALID_ID"
	ReasonValidation               = "VALIDATION_FAILED"
	ReasonItemNotFound             = "ITEM_NOT_FOUND"
	ReasonReservationNotFound      = "RESERVATION_NOT_FOUND"
	ReasonDuplicateSKU             = "DUPLICATE_SKU"
	ReasonDuplicateItemID          = "DUPLICATE_ITEM_ID"
	ReasonInsufficientStock        = "INSUFFICIENT_STOCK"
	ReasonItemDiscontinued         = "ITEM_DISCONTINUED"
	ReasonReservationAlreadyExists = "RESERVATION_ALREADY_EXISTS"
	ReasonReservationNotActive     = "RESERVATION_NOT_ACTIVE"
	ReasonInvalidStock             = "INVALID_STOCK"
	ReasonInvalidPrice             = "INVALID_PRICE"
	ReasonConcurrentModification   = "CONCURRENT_MODIFICATION"
)

// toAppError classifies a service error. Unknown errors become a 500 that
// does not leak the cause.
func toAppError(err error) *apperrors.Error {
	switch {
	case errors.Is(err, services.ErrItemNotFound):
		return detailed(apperrors.ErrNotFound, ReasonItemNotFound, err)
	case errors.Is(err, services.ErrReservationNotFound):
		return detailed(apperrors.ErrNotFound, ReasonReservationNotFound, err)
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidReference):
		return detailed(apperrors.ErrValidation, ReasonValidation, err)
	case errors.Is(err, services.ErrDuplicateSKU):
		return detailed(apperrors.ErrConflict, ReasonDuplicateSKU, err)
	case errors.Is(err, services.ErrDuplicateItemID):
		return detailed(apperrors.ErrConflict, ReasonDuplicateItemID, err)
	case errors.Is(err, models.ErrInsufficientStock):
		return detailed(apperrors.ErrInsufficientStock, ReasonInsufficientStock, err)
	case errors.Is(err, models.ErrItemDiscontinued):
		return detailed(apperrors.ErrConflict, ReasonItemDiscontinued, err)
	case errors.Is(err, services.ErrReservationAlreadyExists):
		return detailed(apperrors.ErrConflict, ReasonReservationAlreadyExists, err)
	case errors.Is(err, services.ErrReservationNotActive):
		return detailed(apperrors.ErrConflict, ReasonReservationNotActive, err)
	case errors.Is(err, services.ErrConcurrencyConflict):
		return detailed(apperrors.ErrConflict, ReasonConcurrentModification, err).AsRetryable()
	case errors.Is(err, models.ErrInvalidStock):
		return detailed(apperrors.ErrUnprocessable, ReasonInvalidStock, err)
	case errors.Is(err, models.ErrInvalidPrice):
		return detailed(apperrors.ErrUnprocessable, ReasonInvalidPrice, err)
	}
	return apperrors.ErrInternalServer.Wrap(err)
}

func detailed(template *apperrors.Error, reason string, err error) *apperrors.Error {
	e := template.WithReason(reason).Wrap(err)
	e.Message = err.Error()
	return e
}

package models

import (
	"errors"
	"fmt"
)

// Domain rule violations. Operations wrap these with detail, so callers
// should match with errors.Is.
var (
	ErrInvalidStock      = errors.New("invalid stock")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrItemDiscontinued  = errors.New("inventory item is discontinued")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidReference  = errors.New("invalid reservation reference")
	ErrValidation        = errors.New("validation failed")
)

// ErrReservationNotActive is matched by every *ReservationNotActiveError.
var ErrReservationNotActive = errors.New("stock reservation is not active")

// ReservationNotActiveError reports a reservation that exists for the
// requested reference but has already reached a terminal status.
type ReservationNotActiveError struct {
	Reference string
	Status    ReservationStatus
}

func (e *ReservationNotActiveError) Error() string {
	return fmt.Sprintf("stock reservation %q is %s", e.Reference, e.Status)
}

// Is lets errors.Is(err, ErrReservationNotActive) match.
func (e *ReservationNotActiveError) Is(target error) bool {
	return target == ErrReservationNotActive
}

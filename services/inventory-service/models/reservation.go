package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxReferenceLength = 128

type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "ACTIVE"
	ReservationReleased ReservationStatus = "RELEASED"
	ReservationConsumed ReservationStatus = "CONSUMED"
)

// Terminal reports whether no transition leaves the status.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationReleased || s == ReservationConsumed
}

// StockReservation holds Quantity units of one item for an external
// reference such as an order id. ACTIVE is the only non-terminal status.
type StockReservation struct {
	ID         uuid.UUID         `json:"id"`
	ItemID     uuid.UUID         `json:"item_id"`
	Reference  string            `json:"reference"`
	Quantity   int               `json:"quantity"`
	Status     ReservationStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	ReleasedAt *time.Time        `json:"released_at,omitempty"`
	ConsumedAt *time.Time        `json:"consumed_at,omitempty"`
}

// NormalizeReference trims the caller-supplied key and rejects blanks.
func NormalizeReference(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: reference is blank", ErrInvalidReference)
	}
	if utf8.RuneCountInString(ref) > maxReferenceLength {
		return "", fmt.Errorf("%w: reference exceeds %d characters", ErrInvalidReference, maxReferenceLength)
	}
	return ref, nil
}

// NewStockReservation builds an ACTIVE reservation. A zero id is replaced.
func NewStockReservation(id, itemID uuid.UUID, reference string, qty int, now time.Time) (StockReservation, error) {
	ref, err := NormalizeReference(reference)
	if err != nil {
		return StockReservation{}, err
	}
	if qty <= 0 {
		return StockReservation{}, fmt.Errorf("%w: reservation quantity must be positive, got %d", ErrInvalidQuantity, qty)
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	return StockReservation{
		ID:        id,
		ItemID:    itemID,
		Reference: ref,
		Quantity:  qty,
		Status:    ReservationActive,
		CreatedAt: now,
	}, nil
}

func (r StockReservation) IsActive() bool { return r.Status == ReservationActive }

func (r StockReservation) notActive() error {
	return &ReservationNotActiveError{Reference: r.Reference, Status: r.Status}
}

// Release moves an ACTIVE reservation to RELEASED.
func (r StockReservation) Release(now time.Time) (StockReservation, error) {
	if !r.IsActive() {
		return r, r.notActive()
	}
	r.Status = ReservationReleased
	r.ReleasedAt = &now
	return r, nil
}

// Consume moves an ACTIVE reservation to CONSUMED.
func (r StockReservation) Consume(now time.Time) (StockReservation, error) {
	if !r.IsActive() {
		return r, r.notActive()
	}
	r.Status = ReservationConsumed
	r.ConsumedAt = &now
	return r, nil
}

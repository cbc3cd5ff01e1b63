package models

import (
	"encoding/json"
	"fmt"
)

// Stock is the on-hand/reserved pair of an inventory item.
//
// A Stock value always satisfies 0 <= reserved <= onHand. The fields are
// unexported so the only ways to obtain one are NewStock and the operations
// below, each of which validates its result.
type Stock struct {
	onHand   int
	reserved int
}

// NewStock validates and builds a Stock.
func NewStock(onHand, reserved int) (Stock, error) {
	if onHand < 0 {
		return Stock{}, fmt.Errorf("%w: on-hand quantity %d is negative", ErrInvalidStock, onHand)
	}
	if reserved < 0 {
		return Stock{}, fmt.Errorf("%w: reserved quantity %d is negative", ErrInvalidStock, reserved)
	}
	if reserved > onHand {
		return Stock{}, fmt.Errorf("%w: reserved quantity %d exceeds on-hand %d", ErrInvalidStock, reserved, onHand)
	}
	return Stock{onHand: onHand, reserved: reserved}, nil
}

func (s Stock) OnHand() int   { return s.onHand }
func (s Stock) Reserved() int { return s.reserved }

// Available is the quantity that can still be reserved.
func (s Stock) Available() int { return s.onHand - s.reserved }

// Reserve holds qty more units.
func (s Stock) Reserve(qty int) (Stock, error) {
	if qty <= 0 {
		return s, fmt.Errorf("%w: reserve quantity must be positive, got %d", ErrInvalidQuantity, qty)
	}
	if qty > s.Available() {
		return s, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, qty, s.Available())
	}
	return NewStock(s.onHand, s.reserved+qty)
}

// Release returns qty held units to the available pool.
func (s Stock) Release(qty int) (Stock, error) {
	if qty <= 0 {
		return s, fmt.Errorf("%w: release quantity must be positive, got %d", ErrInvalidQuantity, qty)
	}
	if qty > s.reserved {
		return s, fmt.Errorf("%w: cannot release %d, only %d reserved", ErrInvalidStock, qty, s.reserved)
	}
	return NewStock(s.onHand, s.reserved-qty)
}

// AdjustOnHand adds delta (restock when positive, shrinkage when negative).
func (s Stock) AdjustOnHand(delta int) (Stock, error) {
	next := s.onHand + delta
	if next < 0 {
		return s, fmt.Errorf("%w: on-hand would become %d", ErrInvalidStock, next)
	}
	if next < s.reserved {
		return s, fmt.Errorf("%w: on-hand %d would drop below reserved %d", ErrInvalidStock, next, s.reserved)
	}
	return NewStock(next, s.reserved)
}

// Consume removes qty held units from both reserved and on-hand: the goods
// have left the warehouse.
func (s Stock) Consume(qty int) (Stock, error) {
	released, err := s.Release(qty)
	if err != nil {
		return s, err
	}
	return released.AdjustOnHand(-qty)
}

type stockJSON struct {
	OnHand    int `json:"on_hand"`
	Reserved  int `json:"reserved"`
	Available int `json:"available"`
}

func (s Stock) MarshalJSON() ([]byte, error) {
	return json.Marshal(stockJSON{OnHand: s.onHand, Reserved: s.reserved, Available: s.Available()})
}

// UnmarshalJSON rejects payloads that would produce an invalid Stock.
func (s *Stock) UnmarshalJSON(data []byte) error {
	var raw stockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewStock(raw.OnHand, raw.Reserved)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

package models_test

import (
	"encoding/json"
	"testing"

	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustStock(t *testing.T, onHand, reserved int) models.Stock {
	t.Helper()
	s, err := models.NewStock(onHand, reserved)
	require.NoError(t, err)
	return s
}

func TestNewStock_Invariants(t *testing.T) {
	cases := []struct {
		name     string
		onHand   int
		reserved int
		wantErr  bool
	}{
		{"empty", 0, 0, false},
		{"fully reserved", 5, 5, false},
		{"partially reserved", 10, 3, false},
		{"negative on hand", -1, 0, true},
		{"negative reserved", 3, -1, true},
		{"reserved above on hand", 3, 4, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := models.NewStock(tc.onHand, tc.reserved)
			if tc.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidStock)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.onHand-tc.reserved, s.Available())
			assert.GreaterOrEqual(t, s.Available(), 0)
		})
	}
}

func TestStock_ReserveReleaseRoundTrip(t *testing.T) {
	for _, qty := range []int{1, 3, 7} {
		original := mustStock(t, 10, 2)
		reserved, err := original.Reserve(qty)
		require.NoError(t, err)
		assert.Equal(t, 2+qty, reserved.Reserved())

		restored, err := reserved.Release(qty)
		require.NoError(t, err)
		assert.Equal(t, original, restored)
	}
}

func TestStock_ReserveBoundary(t *testing.T) {
	s := mustStock(t, 10, 4)

	_, err := s.Reserve(s.Available() + 1)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	all, err := s.Reserve(s.Available())
	assert.NoError(t, err)
	assert.Equal(t, 0, all.Available())
}

func TestStock_ReserveRejectsNonPositive(t *testing.T) {
	s := mustStock(t, 10, 0)
	_, err := s.Reserve(0)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)
	_, err = s.Reserve(-2)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)
}

func TestStock_ReleaseMoreThanReserved(t *testing.T) {
	s := mustStock(t, 10, 2)
	_, err := s.Release(3)
	assert.ErrorIs(t, err, models.ErrInvalidStock)
}

func TestStock_AdjustOnHand(t *testing.T) {
	s := mustStock(t, 10, 4)

	up, err := s.AdjustOnHand(5)
	require.NoError(t, err)
	assert.Equal(t, 15, up.OnHand())

	down, err := s.AdjustOnHand(-6)
	require.NoError(t, err)
	assert.Equal(t, 4, down.OnHand())
	assert.Equal(t, 0, down.Available())

	_, err = s.AdjustOnHand(-7)
	assert.ErrorIs(t, err, models.ErrInvalidStock, "on hand may not drop below reserved")

	_, err = mustStock(t, 2, 0).AdjustOnHand(-3)
	assert.ErrorIs(t, err, models.ErrInvalidStock)

	assert.Equal(t, 10, s.OnHand(), "receiver must not change")
}

func TestStock_Consume(t *testing.T) {
	s := mustStock(t, 10, 3)
	consumed, err := s.Consume(3)
	require.NoError(t, err)
	assert.Equal(t, 7, consumed.OnHand())
	assert.Equal(t, 0, consumed.Reserved())

	_, err = s.Consume(4)
	assert.ErrorIs(t, err, models.ErrInvalidStock)
}

func TestStock_JSON(t *testing.T) {
	b, err := json.Marshal(mustStock(t, 10, 3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"on_hand":10,"reserved":3,"available":7}`, string(b))

	var decoded models.Stock
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, 3, decoded.Reserved())

	err = json.Unmarshal([]byte(`{"on_hand":1,"reserved":2}`), &decoded)
	assert.ErrorIs(t, err, models.ErrInvalidStock)
}

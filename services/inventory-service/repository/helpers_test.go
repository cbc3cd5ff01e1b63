package repository_test

import (
	"testing"
	"time"

	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func sampleItem(t *testing.T, onHand int) models.InventoryItem {
	t.Helper()
	return sampleItemWithSKU(t, "TEE-BLK-M", onHand)
}

func sampleItemWithSKU(t *testing.T, sku string, onHand int) models.InventoryItem {
	t.Helper()
	item, err := models.NewInventoryItem(models.NewItemParams{
		SKU: sku,
		Attributes: models.ItemAttributes{
			Name:     "Basic tee",
			Category: models.CategoryTops,
			Gender:   models.GenderUnisex,
			Size:     models.SizeM,
			Fabric:   models.FabricCotton,
		},
		Price:         models.Money{Amount: decimal.RequireFromString("19.90"), Currency: "EUR"},
		InitialOnHand: onHand,
	}, time.Now().UTC())
	require.NoError(t, err)
	return item
}

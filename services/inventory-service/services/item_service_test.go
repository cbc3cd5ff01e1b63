package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/repository"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/services"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateItem(t *testing.T) {
	f := newFixture(t)

	item, err := f.items.CreateItem(context.Background(), createReq(" jeans-001 ", 10))
	require.NoError(t, err)
	assert.Equal(t, "JEANS-001", item.SKU)
	assert.Equal(t, models.ItemStatusActive, item.Status)
	assert.Equal(t, 10, item.Stock.OnHand())
	assert.Equal(t, item.CreatedAt, item.UpdatedAt)

	created := f.sink.ofType(models.EventItemCreated)
	require.Len(t, created, 1)
	assert.Equal(t, 10, created[0].(models.ItemCreated).OnHand)

	bySKU, err := f.items.GetItemBySKU(context.Background(), "jeans-001")
	require.NoError(t, err)
	assert.Equal(t, item.ID, bySKU.ID)
}

func TestCreateItemErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.items.CreateItem(context.Background(), createReq("JEANS-001", 1))
	require.NoError(t, err)

	_, err = f.items.CreateItem(context.Background(), createReq("jeans-001", 1))
	assert.ErrorIs(t, err, services.ErrDuplicateSKU)

	negative := createReq("JEANS-002", -1)
	_, err = f.items.CreateItem(context.Background(), negative)
	assert.ErrorIs(t, err, models.ErrValidation)

	badPrice := createReq("JEANS-003", 1)
	badPrice.Price.Amount = decimal.NewFromInt(-1)
	_, err = f.items.CreateItem(context.Background(), badPrice)
	assert.ErrorIs(t, err, models.ErrInvalidPrice)

	badCategory := createReq("JEANS-004", 1)
	badCategory.Category = "HATS"
	_, err = f.items.CreateItem(context.Background(), badCategory)
	assert.ErrorIs(t, err, models.ErrValidation)

	assert.Len(t, f.sink.all(), 1, "only the first create published")
}

func TestCreateItemWithTakenID(t *testing.T) {
	f := newFixture(t)
	existing := f.createItem(t, 1)

	req := createReq("JEANS-NEW", 1)
	req.ID = existing.ID
	_, err := f.items.CreateItem(context.Background(), req)
	assert.ErrorIs(t, err, services.ErrDuplicateItemID)
	assert.NotErrorIs(t, err, services.ErrDuplicateSKU)

	_, err = f.items.GetItemBySKU(context.Background(), "JEANS-NEW")
	assert.ErrorIs(t, err, services.ErrItemNotFound)
}

func TestChangePrice(t *testing.T) {
	f := newFixture(t)
	item := f.createItem(t, 1)
	newPrice := models.Money{Amount: decimal.RequireFromString("39.95"), Currency: "EUR"}

	updated, err := f.items.ChangePrice(context.Background(), item.ID, &models.ChangePriceRequest{Price: newPrice})
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(newPrice))
	assert.True(t, updated.UpdatedAt.After(item.UpdatedAt))

	changed := f.sink.ofType(models.EventItemPriceChanged)
	require.Len(t, changed, 1)
	ev := changed[0].(models.ItemPriceChanged)
	assert.True(t, ev.OldPrice.Equal(item.Price))

	_, err = f.items.ChangePrice(context.Background(), item.ID, &models.ChangePriceRequest{
		Price: models.Money{Amount: decimal.NewFromInt(-5), Currency: "EUR"},
	})
	assert.ErrorIs(t, err, models.ErrInvalidPrice)

	_, err = f.items.ChangePrice(context.Background(), uuid.New(), &models.ChangePriceRequest{Price: newPrice})
	assert.ErrorIs(t, err, services.ErrItemNotFound)
}

func TestAdjustStock(t *testing.T) {
	f := newFixture(t)
	item := f.createItem(t, 10)
	_, err := f.reserve(item.ID, "ORDER-1", 4)
	require.NoError(t, err)

	updated, err := f.items.AdjustStock(context.Background(), item.ID, &models.AdjustStockRequest{Delta: 5, Reason: models.ReasonRestock})
	require.NoError(t, err)
	assert.Equal(t, 15, updated.Stock.OnHand())
	assert.Equal(t, 4, updated.Stock.Reserved())

	_, err = f.items.AdjustStock(context.Background(), item.ID, &models.AdjustStockRequest{Delta: -12, Reason: models.ReasonShrinkage})
	assert.ErrorIs(t, err, models.ErrInvalidStock, "on-hand cannot drop below reserved")

	_, err = f.items.AdjustStock(context.Background(), item.ID, &models.AdjustStockRequest{Delta: 1, Reason: models.ReasonReservationReleased})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.items.AdjustStock(context.Background(), item.ID, &models.AdjustStockRequest{Delta: 0, Reason: models.ReasonRestock})
	assert.ErrorIs(t, err, models.ErrValidation)

	adjusted := f.sink.ofType(models.EventStockAdjusted)
	require.Len(t, adjusted, 1)
	ev := adjusted[0].(models.StockAdjusted)
	assert.Equal(t, 5, ev.OnHandDelta)
	assert.Zero(t, ev.ReservedDelta)
	assert.Equal(t, models.ReasonRestock, ev.Reason)
}

func TestDiscontinueFreezesItem(t *testing.T) {
	f := newFixture(t)
	item := f.createItem(t, 10)

	_, err := f.items.Discontinue(context.Background(), item.ID)
	require.NoError(t, err)

	_, err = f.items.AdjustStock(context.Background(), item.ID, &models.AdjustStockRequest{Delta: 10, Reason: models.ReasonRestock})
	assert.ErrorIs(t, err, models.ErrItemDiscontinued)

	_, err = f.items.Discontinue(context.Background(), item.ID)
	assert.ErrorIs(t, err, models.ErrItemDiscontinued)

	_, err = f.items.ChangePrice(context.Background(), item.ID, &models.ChangePriceRequest{Price: item.Price})
	assert.ErrorIs(t, err, models.ErrItemDiscontinued)

	req := &models.UpdateItemRequest{Name: "x", Category: item.Category, Gender: item.Gender, Size: item.Size, Fabric: item.Fabric}
	_, err = f.items.UpdateItem(context.Background(), item.ID, req)
	assert.ErrorIs(t, err, models.ErrItemDiscontinued)

	got, err := f.items.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock.OnHand(), "stock unchanged")
	assert.Equal(t, models.ItemStatusDiscontinued, got.Status)
	assert.Len(t, f.sink.ofType(models.EventItemDiscontinued), 1)
}

func TestUpdateItem(t *testing.T) {
	f := newFixture(t)
	item := f.createItem(t, 3)
	threshold := 2

	updated, err := f.items.UpdateItem(context.Background(), item.ID, &models.UpdateItemRequest{
		Name:              "Relaxed jeans",
		Description:       "Washed denim",
		Category:          models.CategoryBottoms,
		Gender:            models.GenderUnisex,
		Size:              models.SizeXL,
		Fabric:            models.FabricDenim,
		LowStockThreshold: &threshold,
	})
	require.NoError(t, err)
	assert.Equal(t, "Relaxed jeans", updated.Name)
	assert.Equal(t, models.SizeXL, updated.Size)
	assert.Equal(t, 2, updated.LowStockThreshold)
	assert.Equal(t, item.Stock, updated.Stock)
	assert.True(t, updated.Price.Equal(item.Price))
	assert.Len(t, f.sink.ofType(models.EventItemUpdated), 1)

	_, err = f.items.UpdateItem(context.Background(), item.ID, &models.UpdateItemRequest{
		Name: "Belt", Category: models.CategoryBottoms, Gender: models.GenderMen, Size: models.SizeM,
		Fabric: models.FabricLeather, AccessoryType: models.AccessoryBelt,
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSearchItems(t *testing.T) {
	f := newFixture(t)
	for _, sku := range []string{"JEANS-1", "JEANS-2", "TEE-1"} {
		_, err := f.items.CreateItem(context.Background(), createReq(sku, 1))
		require.NoError(t, err)
	}

	items, total, err := f.items.SearchItems(context.Background(), models.ItemFilter{Query: "jeans-"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	_, err = f.items.GetItemBySKU(context.Background(), "NOPE")
	assert.ErrorIs(t, err, services.ErrItemNotFound)
}

type countingCache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]models.InventoryItem
	hits        int
	invalidated int
	failReads   bool
	beforeSet   func()
}

func newCountingCache() *countingCache {
	return &countingCache{entries: map[uuid.UUID]models.InventoryItem{}}
}

func (c *countingCache) Get(_ context.Context, id uuid.UUID) (models.InventoryItem, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failReads {
		return models.InventoryItem{}, false, errors.New("cache down")
	}
	item, ok := c.entries[id]
	if ok {
		c.hits++
	}
	return item, ok, nil
}

func (c *countingCache) Set(_ context.Context, item models.InventoryItem) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[item.ID] = item
	return nil
}

func (c *countingCache) Invalidate(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.invalidated++
	return nil
}

func TestGetItemDropsSnapshotOvertakenByCommit(t *testing.T) {
	store := repository.NewMemoryStore()
	c := newCountingCache()
	deps := services.Dependencies{Store: store, Cache: c, Clock: steppingClock()}
	items := services.NewItemService(deps)
	reservations := services.NewReservationService(deps)

	item, err := items.CreateItem(context.Background(), createReq("TEE-10", 5))
	require.NoError(t, err)

	c.beforeSet = func() {
		_, err := reservations.ReserveStock(context.Background(), item.ID, &models.ReserveStockRequest{Reference: "O-1", Quantity: 2})
		require.NoError(t, err)
	}
	stale, err := items.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stale.Stock.Available())

	fresh, err := items.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.Stock.Available())
	assert.Zero(t, c.hits)
}

func TestGetItemUsesCacheAndInvalidatesOnWrite(t *testing.T) {
	store := repository.NewMemoryStore()
	c := newCountingCache()
	deps := services.Dependencies{Store: store, Cache: c, Clock: steppingClock()}
	items := services.NewItemService(deps)
	reservations := services.NewReservationService(deps)

	item, err := items.CreateItem(context.Background(), createReq("TEE-9", 5))
	require.NoError(t, err)

	_, err = items.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	cached, err := items.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.hits)
	assert.Equal(t, 5, cached.Stock.Available())

	_, err = reservations.ReserveStock(context.Background(), item.ID, &models.ReserveStockRequest{Reference: "O-1", Quantity: 2})
	require.NoError(t, err)

	fresh, err := items.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.Stock.Available(), "stale entry dropped after commit")

	c.failReads = true
	_, err = items.GetItem(context.Background(), item.ID)
	assert.NoError(t, err, "cache failures fall back to the store")

	_, err = items.GetItem(context.Background(), uuid.New())
	assert.ErrorIs(t, err, services.ErrItemNotFound)
}

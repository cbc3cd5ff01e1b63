package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/repository"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/services"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingSink struct {
	mu     sync.Mutex
	events []models.DomainEvent
}

func (r *recordingSink) Publish(_ context.Context, ev models.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) all() []models.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.DomainEvent(nil), r.events...)
}

func (r *recordingSink) ofType(t models.EventType) []models.DomainEvent {
	var out []models.DomainEvent
	for _, ev := range r.all() {
		if ev.EventType() == t {
			out = append(out, ev)
		}
	}
	return out
}

type recordingMetrics struct {
	mu    sync.Mutex
	names []string
}

func (m *recordingMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, name)
	return nil
}

func (m *recordingMetrics) has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.names {
		if n == name {
			return true
		}
	}
	return false
}

// steppingClock advances one second per call so timestamps are ordered.
func steppingClock() services.Clock {
	var mu sync.Mutex
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	return services.ClockFunc(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	})
}

type fixture struct {
	store        *repository.MemoryStore
	sink         *recordingSink
	metrics      *recordingMetrics
	items        services.ItemService
	reservations services.ReservationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, repository.NewMemoryStore())
}

func newFixtureWithStore(t *testing.T, store *repository.MemoryStore) *fixture {
	t.Helper()
	f := &fixture{store: store, sink: &recordingSink{}, metrics: &recordingMetrics{}}
	deps := services.Dependencies{
		Store:   store,
		Sink:    f.sink,
		Clock:   steppingClock(),
		Metrics: f.metrics,
		Logger:  zaptest.NewLogger(t),
	}
	f.items = services.NewItemService(deps)
	f.reservations = services.NewReservationService(deps)
	return f
}

func createReq(sku string, onHand int) *models.CreateItemRequest {
	return &models.CreateItemRequest{
		SKU:           sku,
		Name:          "Slim jeans",
		Category:      models.CategoryBottoms,
		Gender:        models.GenderMen,
		Size:          models.SizeL,
		Fabric:        models.FabricDenim,
		Color:         "indigo",
		Price:         models.Money{Amount: decimal.RequireFromString("49.95"), Currency: "EUR"},
		InitialOnHand: onHand,
	}
}

func (f *fixture) createItem(t *testing.T, onHand int) models.InventoryItem {
	t.Helper()
	item, err := f.items.CreateItem(context.Background(), createReq("JEANS-"+uuid.NewString()[:8], onHand))
	require.NoError(t, err)
	return item
}

func (f *fixture) reserve(itemID uuid.UUID, ref string, qty int) (models.StockReservation, error) {
	return f.reservations.ReserveStock(context.Background(), itemID, &models.ReserveStockRequest{Reference: ref, Quantity: qty})
}

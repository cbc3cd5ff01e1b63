package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	awspkg "github.com/aredondocharro/ClothingStore-sub001/pkg/aws"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/cache"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/publisher"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	serviceName    = "inventory-service"
	publishTimeout = 5 * time.Second
	metricsTimeout = 5 * time.Second
)

var validate = validator.New()

// MetricsRecorder is satisfied by *awspkg.MetricsClient.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// Dependencies are shared by the item and reservation services. Store is
// required; nil collaborators fall back to no-op implementations.
type Dependencies struct {
	Store   repository.UnitOfWork
	Sink    publisher.Sink
	Cache   cache.ItemCache
	Clock   Clock
	Metrics MetricsRecorder
	Logger  *zap.Logger
}

// engine holds the orchestration shared by both services.
type engine struct {
	store   repository.UnitOfWork
	sink    publisher.Sink
	cache   cache.ItemCache
	clock   Clock
	metrics MetricsRecorder
	logger  *zap.Logger
	tracer  trace.Tracer
}

func newEngine(d Dependencies) *engine {
	e := &engine{
		store:   d.Store,
		sink:    d.Sink,
		cache:   d.Cache,
		clock:   d.Clock,
		metrics: d.Metrics,
		logger:  d.Logger,
		tracer:  otel.Tracer(serviceName),
	}
	if e.sink == nil {
		e.sink = publisher.Noop{}
	}
	if e.cache == nil {
		e.cache = cache.NoopItemCache{}
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

func validateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("%w: request is required", models.ErrValidation)
		}
		return fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
	}
	return nil
}

func (e *engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// commit runs fn in one unit of work and maps storage conflicts to service
// errors. Events are only published when the unit of work committed.
func (e *engine) commit(ctx context.Context, op string, itemID uuid.UUID, fn func(tx repository.Tx) ([]models.DomainEvent, error)) error {
	var events []models.DomainEvent
	err := e.store.Do(ctx, func(tx repository.Tx) error {
		evs, err := fn(tx)
		if err != nil {
			return err
		}
		events = evs
		return nil
	})
	if err != nil {
		return e.translate(ctx, op, itemID, err)
	}

	e.invalidate(ctx, itemID)
	e.publish(ctx, events)
	return nil
}

func (e *engine) translate(ctx context.Context, op string, itemID uuid.UUID, err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateActiveReservation):
		return ErrReservationAlreadyExists
	case errors.Is(err, repository.ErrVersionConflict):
		e.logger.Warn("Concurrent modification detected",
			zap.String("operation", op),
			zap.String("item_id", itemID.String()))
		e.count(ctx, awspkg.MetricInventoryConflicts, map[string]string{"Operation": op})
		return err
	}
	return err
}

// publish delivers events on a context detached from the caller so an
// aborted request cannot drop events of a committed unit of work.
func (e *engine) publish(ctx context.Context, events []models.DomainEvent) {
	if len(events) == 0 {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	for _, ev := range events {
		if err := e.sink.Publish(pubCtx, ev); err != nil {
			e.logger.Warn("Failed to publish inventory event",
				zap.String("event_type", string(ev.EventType())),
				zap.String("item_id", ev.Meta().ItemID.String()),
				zap.Error(err))
		}
	}
}

func (e *engine) invalidate(ctx context.Context, id uuid.UUID) {
	if err := e.cache.Invalidate(context.WithoutCancel(ctx), id); err != nil {
		e.logger.Warn("Failed to invalidate item cache", zap.String("item_id", id.String()), zap.Error(err))
	}
}

func (e *engine) count(ctx context.Context, metric string, dims map[string]string) {
	if e.metrics == nil {
		return
	}
	go func() {
		metricCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsTimeout)
		defer cancel()
		if dims == nil {
			dims = map[string]string{}
		}
		dims["Service"] = serviceName
		_ = e.metrics.RecordCount(metricCtx, metric, dims)
	}()
}

func (e *engine) checkLowStock(ctx context.Context, item models.InventoryItem) bool {
	if !item.IsLowStock() {
		return false
	}
	e.logger.Warn("Item stock below threshold",
		zap.String("item_id", item.ID.String()),
		zap.String("sku", item.SKU),
		zap.Int("available", item.Stock.Available()),
		zap.Int("threshold", item.LowStockThreshold))
	e.count(ctx, awspkg.MetricInventoryLow, map[string]string{"SKU": item.SKU})
	return true
}

func (e *engine) loadItem(ctx context.Context, items repository.ItemRepository, id uuid.UUID) (models.InventoryItem, repository.Version, error) {
	item, version, err := items.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return models.InventoryItem{}, 0, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if err != nil {
		return models.InventoryItem{}, 0, fmt.Errorf("load item %s: %w", id, err)
	}
	return item, version, nil
}

func meta(item models.InventoryItem, now time.Time) models.EventMeta {
	return models.EventMeta{ItemID: item.ID, OccurredAt: now}
}

package services

import (
	"context"
	"errors"
	"fmt"

	awspkg "github.com/aredondocharro/ClothingStore-sub001/pkg/aws"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/repository"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReservationService holds, releases and consumes stock on behalf of an
// external reference such as an order id.
type ReservationService interface {
	// ReserveStock fails with ErrReservationAlreadyExists while an ACTIVE
	// reservation for the same reference exists on the item.
	ReserveStock(ctx context.Context, itemID uuid.UUID, req *models.ReserveStockRequest) (models.StockReservation, error)
	// ReleaseStock returns the full reserved quantity to available stock.
	ReleaseStock(ctx context.Context, itemID uuid.UUID, reference string) (models.InventoryItem, error)
	// ConsumeStock ships the reserved quantity: on-hand and reserved both drop.
	ConsumeStock(ctx context.Context, itemID uuid.UUID, reference string) (models.InventoryItem, error)
	ListReservations(ctx context.Context, itemID uuid.UUID, page, limit int) ([]models.StockReservation, int64, error)
}

type reservationService struct {
	*engine
}

func NewReservationService(d Dependencies) ReservationService {
	return &reservationService{engine: newEngine(d)}
}

func (s *reservationService) ReserveStock(ctx context.Context, itemID uuid.UUID, req *models.ReserveStockRequest) (res models.StockReservation, err error) {
	ctx, span := s.startSpan(ctx, "ReserveStock", attribute.String("item.id", itemID.String()))
	defer func() { finishSpan(span, err) }()

	if err := validateRequest(req); err != nil {
		return models.StockReservation{}, err
	}
	reference, err := models.NormalizeReference(req.Reference)
	if err != nil {
		return models.StockReservation{}, err
	}
	span.SetAttributes(attribute.String("reservation.reference", reference), attribute.Int("reservation.quantity", req.Quantity))

	var (
		reserved models.InventoryItem
		lowStock bool
	)
	err = s.commit(ctx, "ReserveStock", itemID, func(tx repository.Tx) ([]models.DomainEvent, error) {
		_, err := tx.Reservations().FindActiveByItemAndReference(ctx, itemID, reference)
		if err == nil {
			return nil, repository.ErrDuplicateActiveReservation
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("check active reservation: %w", err)
		}

		item, version, err := s.loadItem(ctx, tx.Items(), itemID)
		if err != nil {
			return nil, err
		}
		now := s.clock.Now()
		next, err := item.Reserve(req.Quantity, now)
		if err != nil {
			return nil, err
		}
		res, err = models.NewStockReservation(uuid.Nil, itemID, reference, req.Quantity, now)
		if err != nil {
			return nil, err
		}

		// The reservation goes first so a concurrent duplicate trips the
		// uniqueness guard instead of the version check.
		if err := tx.Reservations().Create(ctx, res); err != nil {
			return nil, err
		}
		if err := tx.Items().Save(ctx, next, version); err != nil {
			return nil, err
		}

		reserved = next
		lowStock = next.IsLowStock()
		return []models.DomainEvent{models.StockReserved{
			EventMeta:     meta(next, now),
			ReservationID: res.ID,
			Reference:     reference,
			Quantity:      req.Quantity,
			Stock:         next.Stock,
			LowStock:      lowStock,
		}}, nil
	})
	if err != nil {
		if errors.Is(err, ErrReservationAlreadyExists) {
			s.logger.Debug("Duplicate reservation rejected",
				zap.String("item_id", itemID.String()),
				zap.String("reference", reference))
		}
		return models.StockReservation{}, err
	}

	s.logger.Info("Stock reserved",
		zap.String("item_id", itemID.String()),
		zap.String("reservation_id", res.ID.String()),
		zap.String("reference", reference),
		zap.Int("quantity", req.Quantity),
		zap.Int("available", reserved.Stock.Available()))
	s.count(ctx, awspkg.MetricInventoryReserved, map[string]string{"SKU": reserved.SKU})
	if lowStock {
		s.checkLowStock(ctx, reserved)
	}
	return res, nil
}

func (s *reservationService) ReleaseStock(ctx context.Context, itemID uuid.UUID, reference string) (item models.InventoryItem, err error) {
	ctx, span := s.startSpan(ctx, "ReleaseStock",
		attribute.String("item.id", itemID.String()),
		attribute.String("reservation.reference", reference))
	defer func() { finishSpan(span, err) }()

	item, err = s.settle(ctx, "ReleaseStock", itemID, reference, func(item models.InventoryItem, res models.StockReservation) (models.InventoryItem, models.StockReservation, models.DomainEvent, error) {
		now := s.clock.Now()
		next, err := item.ReleaseReserved(res.Quantity, now)
		if err != nil {
			return item, res, nil, err
		}
		released, err := res.Release(now)
		if err != nil {
			return item, res, nil, err
		}
		return next, released, models.StockAdjusted{
			EventMeta:     meta(next, now),
			SKU:           next.SKU,
			Reason:        models.ReasonReservationReleased,
			Reference:     res.Reference,
			ReservedDelta: -res.Quantity,
			Stock:         next.Stock,
			LowStock:      next.IsLowStock(),
		}, nil
	})
	if err != nil {
		return models.InventoryItem{}, err
	}
	s.count(ctx, awspkg.MetricInventoryReleased, map[string]string{"SKU": item.SKU})
	return item, nil
}

func (s *reservationService) ConsumeStock(ctx context.Context, itemID uuid.UUID, reference string) (item models.InventoryItem, err error) {
	ctx, span := s.startSpan(ctx, "ConsumeStock",
		attribute.String("item.id", itemID.String()),
		attribute.String("reservation.reference", reference))
	defer func() { finishSpan(span, err) }()

	item, err = s.settle(ctx, "ConsumeStock", itemID, reference, func(item models.InventoryItem, res models.StockReservation) (models.InventoryItem, models.StockReservation, models.DomainEvent, error) {
		now := s.clock.Now()
		next, err := item.ConsumeReserved(res.Quantity, now)
		if err != nil {
			return item, res, nil, err
		}
		consumed, err := res.Consume(now)
		if err != nil {
			return item, res, nil, err
		}
		return next, consumed, models.StockAdjusted{
			EventMeta:     meta(next, now),
			SKU:           next.SKU,
			Reason:        models.ReasonReservationConsumed,
			Reference:     res.Reference,
			OnHandDelta:   -res.Quantity,
			ReservedDelta: -res.Quantity,
			Stock:         next.Stock,
			LowStock:      next.IsLowStock(),
		}, nil
	})
	if err != nil {
		return models.InventoryItem{}, err
	}
	s.count(ctx, awspkg.MetricInventoryConsumed, map[string]string{"SKU": item.SKU})
	return item, nil
}

type settleFunc func(item models.InventoryItem, res models.StockReservation) (models.InventoryItem, models.StockReservation, models.DomainEvent, error)

// settle moves the ACTIVE reservation for reference to a terminal status
// and saves the item in one unit of work.
func (s *reservationService) settle(ctx context.Context, op string, itemID uuid.UUID, reference string, fn settleFunc) (models.InventoryItem, error) {
	ref, err := models.NormalizeReference(reference)
	if err != nil {
		return models.InventoryItem{}, err
	}

	var (
		updated models.InventoryItem
		settled models.StockReservation
	)
	err = s.commit(ctx, op, itemID, func(tx repository.Tx) ([]models.DomainEvent, error) {
		res, err := s.activeReservation(ctx, tx.Reservations(), itemID, ref)
		if err != nil {
			return nil, err
		}
		item, version, err := s.loadItem(ctx, tx.Items(), itemID)
		if err != nil {
			return nil, err
		}
		next, nextRes, event, err := fn(item, res)
		if err != nil {
			return nil, err
		}
		if err := tx.Reservations().Save(ctx, nextRes); err != nil {
			return nil, err
		}
		if err := tx.Items().Save(ctx, next, version); err != nil {
			return nil, err
		}
		updated, settled = next, nextRes
		return []models.DomainEvent{event}, nil
	})
	if err != nil {
		return models.InventoryItem{}, err
	}

	s.logger.Info("Stock reservation settled",
		zap.String("operation", op),
		zap.String("item_id", itemID.String()),
		zap.String("reservation_id", settled.ID.String()),
		zap.String("reference", ref),
		zap.String("status", string(settled.Status)),
		zap.Int("quantity", settled.Quantity))
	if updated.IsLowStock() {
		s.checkLowStock(ctx, updated)
	}
	return updated, nil
}

// activeReservation finds the ACTIVE reservation for reference. When there
// is none it reports the status of the most recent terminal one, if any.
func (s *reservationService) activeReservation(ctx context.Context, repo repository.ReservationRepository, itemID uuid.UUID, reference string) (models.StockReservation, error) {
	res, err := repo.FindActiveByItemAndReference(ctx, itemID, reference)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return models.StockReservation{}, fmt.Errorf("load reservation: %w", err)
	}

	var latest *models.StockReservation
	for _, status := range []models.ReservationStatus{models.ReservationReleased, models.ReservationConsumed} {
		found, err := repo.FindByItemAndReferenceAndStatus(ctx, itemID, reference, status)
		if err != nil {
			return models.StockReservation{}, fmt.Errorf("load reservation history: %w", err)
		}
		if len(found) > 0 && (latest == nil || found[0].CreatedAt.After(latest.CreatedAt)) {
			latest = &found[0]
		}
	}
	if latest == nil {
		return models.StockReservation{}, fmt.Errorf("%w: item %s reference %q", ErrReservationNotFound, itemID, reference)
	}
	return models.StockReservation{}, &models.ReservationNotActiveError{Reference: reference, Status: latest.Status}
}

func (s *reservationService) ListReservations(ctx context.Context, itemID uuid.UUID, page, limit int) ([]models.StockReservation, int64, error) {
	if _, _, err := s.loadItem(ctx, s.store.Items(), itemID); err != nil {
		return nil, 0, err
	}
	list, total, err := s.store.Reservations().ListByItem(ctx, itemID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	return list, total, nil
}

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

// ItemService manages the catalog side of inventory items: creation,
// descriptive edits, pricing, manual stock adjustments and discontinuation.
type ItemService interface {
	CreateItem(ctx context.Context, req *models.CreateItemRequest) (models.InventoryItem, error)
	UpdateItem(ctx context.Context, id uuid.UUID, req *models.UpdateItemRequest) (models.InventoryItem, error)
	ChangePrice(ctx context.Context, id uuid.UUID, req *models.ChangePriceRequest) (models.InventoryItem, error)
	AdjustStock(ctx context.Context, id uuid.UUID, req *models.AdjustStockRequest) (models.InventoryItem, error)
	Discontinue(ctx context.Context, id uuid.UUID) (models.InventoryItem, error)
	GetItem(ctx context.Context, id uuid.UUID) (models.InventoryItem, error)
	GetItemBySKU(ctx context.Context, sku string) (models.InventoryItem, error)
	SearchItems(ctx context.Context, filter models.ItemFilter, page, limit int) ([]models.InventoryItem, int64, error)
}

type itemService struct {
	*engine
}

func NewItemService(d Dependencies) ItemService {
	return &itemService{engine: newEngine(d)}
}

func (s *itemService) CreateItem(ctx context.Context, req *models.CreateItemRequest) (item models.InventoryItem, err error) {
	ctx, span := s.startSpan(ctx, "CreateItem")
	defer func() { finishSpan(span, err) }()

	if err := validateRequest(req); err != nil {
		return models.InventoryItem{}, err
	}
	now := s.clock.Now()
	item, err = models.NewInventoryItem(models.NewItemParams{
		ID:                req.ID,
		SKU:               req.SKU,
		Attributes:        req.Attributes(),
		Price:             req.Price,
		InitialOnHand:     req.InitialOnHand,
		LowStockThreshold: req.LowStockThreshold,
	}, now)
	if err != nil {
		return models.InventoryItem{}, err
	}
	span.SetAttributes(attribute.String("item.id", item.ID.String()), attribute.String("item.sku", item.SKU))

	err = s.commit(ctx, "CreateItem", item.ID, func(tx repository.Tx) ([]models.DomainEvent, error) {
		if req.ID != uuid.Nil {
			_, _, err := tx.Items().FindByID(ctx, item.ID)
			if err == nil {
				return nil, repository.ErrDuplicateID
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
		}
		if err := tx.Items().Create(ctx, item); err != nil {
			return nil, err
		}
		return []models.DomainEvent{models.ItemCreated{
			EventMeta: meta(item, now),
			SKU:       item.SKU,
			Attrs:     item.ItemAttributes,
			Price:     item.Price,
			OnHand:    item.Stock.OnHand(),
		}}, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateSKU) {
			return models.InventoryItem{}, fmt.Errorf("%w: %s", ErrDuplicateSKU, item.SKU)
		}
		if errors.Is(err, repository.ErrDuplicateID) {
			return models.InventoryItem{}, fmt.Errorf("%w: %s", ErrDuplicateItemID, item.ID)
		}
		return models.InventoryItem{}, err
	}

	s.logger.Info("Inventory item created",
		zap.String("item_id", item.ID.String()),
		zap.String("sku", item.SKU),
		zap.Int("on_hand", item.Stock.OnHand()))
	s.count(ctx, awspkg.MetricItemsCreated, map[string]string{"Category": string(item.Category)})
	return item, nil
}

// mutateItem loads the item, applies fn and saves the result under the
// loaded version in one unit of work.
func (s *itemService) mutateItem(ctx context.Context, op string, id uuid.UUID, fn func(item models.InventoryItem) (models.InventoryItem, []models.DomainEvent, error)) (models.InventoryItem, error) {
	var updated models.InventoryItem
	err := s.commit(ctx, op, id, func(tx repository.Tx) ([]models.DomainEvent, error) {
		item, version, err := s.loadItem(ctx, tx.Items(), id)
		if err != nil {
			return nil, err
		}
		next, events, err := fn(item)
		if err != nil {
			return nil, err
		}
		if err := tx.Items().Save(ctx, next, version); err != nil {
			return nil, err
		}
		updated = next
		return events, nil
	})
	if err != nil {
		return models.InventoryItem{}, err
	}
	return updated, nil
}

func (s *itemService) UpdateItem(ctx context.Context, id uuid.UUID, req *models.UpdateItemRequest) (item models.InventoryItem, err error) {
	ctx, span := s.startSpan(ctx, "UpdateItem", attribute.String("item.id", id.String()))
	defer func() { finishSpan(span, err) }()

	if err := validateRequest(req); err != nil {
		return models.InventoryItem{}, err
	}
	item, err = s.mutateItem(ctx, "UpdateItem", id, func(item models.InventoryItem) (models.InventoryItem, []models.DomainEvent, error) {
		now := s.clock.Now()
		next, err := item.UpdateDescriptive(req.Attributes(), now)
		if err != nil {
			return item, nil, err
		}
		if req.LowStockThreshold != nil {
			if next, err = next.SetLowStockThreshold(*req.LowStockThreshold, now); err != nil {
				return item, nil, err
			}
		}
		return next, []models.DomainEvent{models.ItemUpdated{
			EventMeta: meta(next, now),
			SKU:       next.SKU,
			Attrs:     next.ItemAttributes,
		}}, nil
	})
	if err != nil {
		return models.InventoryItem{}, err
	}
	s.logger.Info("Inventory item updated", zap.String("item_id", id.String()))
	return item, nil
}

func (s *itemService) ChangePrice(ctx context.Context, id uuid.UUID, req *models.ChangePriceRequest) (item models.InventoryItem, err error) {
	ctx, span := s.startSpan(ctx, "ChangePrice", attribute.String("item.id", id.String()))
	defer func() { finishSpan(span, err) }()

	if err := validateRequest(req); err != nil {
		return models.InventoryItem{}, err
	}
	item, err = s.mutateItem(ctx, "ChangePrice", id, func(item models.InventoryItem) (models.InventoryItem, []models.DomainEvent, error) {
		now := s.clock.Now()
		next, err := item.ChangePrice(req.Price, now)
		if err != nil {
			return item, nil, err
		}
		return next, []models.DomainEvent{models.ItemPriceChanged{
			EventMeta: meta(next, now),
			SKU:       next.SKU,
			OldPrice:  item.Price,
			NewPrice:  next.Price,
		}}, nil
	})
	if err != nil {
		return models.InventoryItem{}, err
	}
	s.logger.Info("Inventory item price changed",
		zap.String("item_id", id.String()),
		zap.String("price", item.Price.String()))
	return item, nil
}

func (s *itemService) AdjustStock(ctx context.Context, id uuid.UUID, req *models.AdjustStockRequest) (item models.InventoryItem, err error) {
	ctx, span := s.startSpan(ctx, "AdjustStock", attribute.String("item.id", id.String()))
	defer func() { finishSpan(span, err) }()

	if err := validateRequest(req); err != nil {
		return models.InventoryItem{}, err
	}
	if !req.Reason.Manual() {
		return models.InventoryItem{}, fmt.Errorf("%w: reason %q cannot be used for manual adjustments", models.ErrValidation, req.Reason)
	}
	span.SetAttributes(attribute.Int("stock.delta", req.Delta), attribute.String("stock.reason", string(req.Reason)))

	var lowStock bool
	item, err = s.mutateItem(ctx, "AdjustStock", id, func(item models.InventoryItem) (models.InventoryItem, []models.DomainEvent, error) {
		now := s.clock.Now()
		next, err := item.AdjustOnHand(req.Delta, now)
		if err != nil {
			return item, nil, err
		}
		lowStock = next.IsLowStock()
		return next, []models.DomainEvent{models.StockAdjusted{
			EventMeta:   meta(next, now),
			SKU:         next.SKU,
			Reason:      req.Reason,
			OnHandDelta: req.Delta,
			Stock:       next.Stock,
			LowStock:    lowStock,
		}}, nil
	})
	if err != nil {
		return models.InventoryItem{}, err
	}

	s.logger.Info("Inventory stock adjusted",
		zap.String("item_id", id.String()),
		zap.Int("delta", req.Delta),
		zap.String("reason", string(req.Reason)),
		zap.Int("on_hand", item.Stock.OnHand()))
	s.count(ctx, awspkg.MetricStockAdjusted, map[string]string{"Reason": string(req.Reason)})
	if lowStock {
		s.checkLowStock(ctx, item)
	}
	return item, nil
}

func (s *itemService) Discontinue(ctx context.Context, id uuid.UUID) (item models.InventoryItem, err error) {
	ctx, span := s.startSpan(ctx, "Discontinue", attribute.String("item.id", id.String()))
	defer func() { finishSpan(span, err) }()

	item, err = s.mutateItem(ctx, "Discontinue", id, func(item models.InventoryItem) (models.InventoryItem, []models.DomainEvent, error) {
		now := s.clock.Now()
		next, err := item.Discontinue(now)
		if err != nil {
			return item, nil, err
		}
		return next, []models.DomainEvent{models.ItemDiscontinued{EventMeta: meta(next, now), SKU: next.SKU}}, nil
	})
	if err != nil {
		return models.InventoryItem{}, err
	}
	s.logger.Info("Inventory item discontinued", zap.String("item_id", id.String()), zap.String("sku", item.SKU))
	s.count(ctx, awspkg.MetricItemsDiscontinued, nil)
	return item, nil
}

// GetItem serves from the cache when possible and fills it on a miss.
func (s *itemService) GetItem(ctx context.Context, id uuid.UUID) (models.InventoryItem, error) {
	if item, hit, err := s.cache.Get(ctx, id); err != nil {
		s.logger.Warn("Item cache read failed", zap.String("item_id", id.String()), zap.Error(err))
	} else if hit {
		return item, nil
	}

	item, version, err := s.loadItem(ctx, s.store.Items(), id)
	if err != nil {
		return models.InventoryItem{}, err
	}
	if err := s.cache.Set(ctx, item); err != nil {
		s.logger.Warn("Item cache write failed", zap.String("item_id", id.String()), zap.Error(err))
		return item, nil
	}
	// A commit between the load and the Set may have invalidated too early.
	if _, current, err := s.store.Items().FindByID(ctx, id); err != nil || current != version {
		s.invalidate(ctx, id)
	}
	return item, nil
}

func (s *itemService) GetItemBySKU(ctx context.Context, sku string) (models.InventoryItem, error) {
	item, _, err := s.store.Items().FindBySKU(ctx, sku)
	if errors.Is(err, repository.ErrNotFound) {
		return models.InventoryItem{}, fmt.Errorf("%w: sku %s", ErrItemNotFound, models.NormalizeSKU(sku))
	}
	if err != nil {
		return models.InventoryItem{}, fmt.Errorf("load item by sku: %w", err)
	}
	return item, nil
}

func (s *itemService) SearchItems(ctx context.Context, filter models.ItemFilter, page, limit int) ([]models.InventoryItem, int64, error) {
	items, total, err := s.store.Items().Search(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("search items: %w", err)
	}
	return items, total, nil
}

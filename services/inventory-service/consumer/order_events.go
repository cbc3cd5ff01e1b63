package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	awspkg "github.com/aredondocharro/ClothingStore-sub001/pkg/aws"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	OrderCancelled = "order_cancelled"
	OrderFulfilled = "order_fulfilled"
)

// Poller is satisfied by *awspkg.SQSClient.
type Poller interface {
	StartPolling(ctx context.Context, handler awspkg.MessageHandler) error
}

// OrderEvent is published by the order service. The order ID is the
// reservation reference used when the stock was reserved.
type OrderEvent struct {
	Type    string           `json:"type"`
	OrderID string           `json:"order_id"`
	Items   []OrderEventItem `json:"items"`
}

type OrderEventItem struct {
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int       `json:"quantity"`
}

// OrderEventsConsumer releases reservations of cancelled orders and
// consumes those of fulfilled orders. Redelivered messages are harmless:
// reservations that are already settled or unknown are acknowledged.
type OrderEventsConsumer struct {
	poller       Poller
	reservations services.ReservationService
	logger       *zap.Logger
}

func NewOrderEventsConsumer(poller Poller, reservations services.ReservationService, logger *zap.Logger) *OrderEventsConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderEventsConsumer{poller: poller, reservations: reservations, logger: logger}
}

// Start blocks until ctx is done.
func (c *OrderEventsConsumer) Start(ctx context.Context) {
	c.logger.Info("Order events consumer started")
	err := c.poller.StartPolling(ctx, c.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("Order events polling stopped", zap.Error(err))
		return
	}
	c.logger.Info("Order events consumer shutting down")
}

// HandleMessage returns an error only when the message should be redelivered.
func (c *OrderEventsConsumer) HandleMessage(ctx context.Context, body string) error {
	// Try to unwrap SNS envelope if present
	var snsEnvelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &snsEnvelope); err == nil && snsEnvelope.Message != "" {
		body = snsEnvelope.Message
	}

	var evt OrderEvent
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		c.logger.Warn("Dropping malformed order event", zap.Error(err))
		return nil
	}
	if evt.OrderID == "" || evt.Type == "" {
		c.logger.Warn("Dropping order event with missing fields",
			zap.String("order_id", evt.OrderID), zap.String("type", evt.Type))
		return nil
	}

	var settle func(ctx context.Context, itemID uuid.UUID, reference string) (models.InventoryItem, error)
	switch evt.Type {
	case OrderCancelled:
		settle = c.reservations.ReleaseStock
	case OrderFulfilled:
		settle = c.reservations.ConsumeStock
	default:
		c.logger.Debug("Ignoring order event", zap.String("type", evt.Type))
		return nil
	}

	var retry []error
	for _, it := range evt.Items {
		fields := []zap.Field{
			zap.String("type", evt.Type),
			zap.String("order_id", evt.OrderID),
			zap.String("item_id", it.ItemID.String()),
		}
		_, err := settle(ctx, it.ItemID, evt.OrderID)
		switch {
		case err == nil:
			c.logger.Info("Reservation settled from order event", fields...)
		case errors.Is(err, services.ErrReservationNotActive),
			errors.Is(err, services.ErrReservationNotFound):
			c.logger.Info("Reservation already settled or unknown, skipping", append(fields, zap.Error(err))...)
		case errors.Is(err, services.ErrItemNotFound),
			errors.Is(err, models.ErrItemDiscontinued),
			errors.Is(err, models.ErrValidation),
			errors.Is(err, models.ErrInvalidReference):
			c.logger.Warn("Order event cannot be applied", append(fields, zap.Error(err))...)
		default:
			c.logger.Error("Order event failed, will retry", append(fields, zap.Error(err))...)
			retry = append(retry, fmt.Errorf("item %s: %w", it.ItemID, err))
		}
	}
	return errors.Join(retry...)
}

package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/repository"
)

type migrationStats struct {
	Items        int
	Reservations int
	Skipped      int
	Failed       int
}

// migrate copies every item and its reservation history from src to dst.
// Items whose SKU already exists in dst are skipped so the tool can be
// rerun after a partial failure. Only read errors on src abort the run.
func migrate(ctx context.Context, src, dst repository.UnitOfWork, batch int, log *zap.Logger) (migrationStats, error) {
	var stats migrationStats
	if batch <= 0 {
		batch = 200
	}

	for page := 1; ; page++ {
		items, total, err := src.Items().Search(ctx, models.ItemFilter{}, page, batch)
		if err != nil {
			return stats, fmt.Errorf("read items page %d: %w", page, err)
		}
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := dst.Items().Create(ctx, item); err != nil {
				if errors.Is(err, repository.ErrDuplicateSKU) {
					stats.Skipped++
					continue
				}
				log.Warn("failed to write item", zap.String("item_id", item.ID.String()), zap.Error(err))
				stats.Failed++
				continue
			}
			stats.Items++

			n, err := copyReservations(ctx, src, dst, item, batch, log)
			stats.Reservations += n
			if err != nil {
				return stats, err
			}
			if stats.Items%100 == 0 {
				log.Info("migration progress", zap.Int("items", stats.Items), zap.Int64("total", total))
			}
		}
		if len(items) < batch || int64(page*batch) >= total {
			return stats, nil
		}
	}
}

func copyReservations(ctx context.Context, src, dst repository.UnitOfWork, item models.InventoryItem, batch int, log *zap.Logger) (int, error) {
	var copied int
	for page := 1; ; page++ {
		rs, total, err := src.Reservations().ListByItem(ctx, item.ID, page, batch)
		if err != nil {
			return copied, fmt.Errorf("read reservations of %s: %w", item.ID, err)
		}
		for _, r := range rs {
			if err := dst.Reservations().Create(ctx, r); err != nil {
				log.Warn("failed to write reservation",
					zap.String("item_id", item.ID.String()),
					zap.String("reference", r.Reference),
					zap.Error(err))
				continue
			}
			copied++
		}
		if len(rs) < batch || int64(page*batch) >= total {
			return copied, nil
		}
	}
}

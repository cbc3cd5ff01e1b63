package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Migrate creates or updates the inventory tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&itemRecord{}, &reservationRecord{})
}

// GormStore implements UnitOfWork on PostgreSQL. The *gorm.DB must be opened
// with TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Do(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormTx{db: tx})
	})
}

func (s *GormStore) Items() ItemRepository { return &GormItemRepository{db: s.db} }

func (s *GormStore) Reservations() ReservationRepository {
	return &GormReservationRepository{db: s.db}
}

type gormTx struct {
	db *gorm.DB
}

func (t gormTx) Items() ItemRepository               { return &GormItemRepository{db: t.db} }
func (t gormTx) Reservations() ReservationRepository { return &GormReservationRepository{db: t.db} }

// GormItemRepository implements ItemRepository using GORM.
type GormItemRepository struct {
	db *gorm.DB
}

func NewGormItemRepository(db *gorm.DB) ItemRepository {
	return &GormItemRepository{db: db}
}

func (r *GormItemRepository) FindByID(ctx context.Context, id uuid.UUID) (models.InventoryItem, Version, error) {
	var rec itemRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return models.InventoryItem{}, 0, translateGormError(err)
	}
	return rec.toModel()
}

func (r *GormItemRepository) FindBySKU(ctx context.Context, sku string) (models.InventoryItem, Version, error) {
	var rec itemRecord
	if err := r.db.WithContext(ctx).Where("sku = ?", models.NormalizeSKU(sku)).First(&rec).Error; err != nil {
		return models.InventoryItem{}, 0, translateGormError(err)
	}
	return rec.toModel()
}

func (r *GormItemRepository) Create(ctx context.Context, item models.InventoryItem) error {
	rec := newItemRecord(item, 1)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateSKU
		}
		return err
	}
	return nil
}

// Save writes the snapshot only if the row still carries the expected
// version, bumping it in the same statement.
func (r *GormItemRepository) Save(ctx context.Context, item models.InventoryItem, expected Version) error {
	rec := newItemRecord(item, expected)
	result := r.db.WithContext(ctx).
		Model(&itemRecord{}).
		Where("id = ? AND version = ?", item.ID, int64(expected)).
		Updates(map[string]interface{}{
			"name":                rec.Name,
			"description":         rec.Description,
			"category":            rec.Category,
			"gender":              rec.Gender,
			"size":                rec.Size,
			"fabric":              rec.Fabric,
			"accessory_type":      rec.AccessoryType,
			"color":               rec.Color,
			"price_amount":        rec.PriceAmount,
			"price_currency":      rec.PriceCurrency,
			"on_hand":             rec.OnHand,
			"reserved":            rec.Reserved,
			"low_stock_threshold": rec.LowStockThreshold,
			"status":              rec.Status,
			"updated_at":          rec.UpdatedAt,
			"version":             gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *GormItemRepository) Search(ctx context.Context, filter models.ItemFilter, page, limit int) ([]models.InventoryItem, int64, error) {
	var recs []itemRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&itemRecord{})
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", string(filter.Category))
	}
	if filter.Gender != "" {
		query = query.Where("gender = ?", string(filter.Gender))
	}
	if filter.Size != "" {
		query = query.Where("size = ?", string(filter.Size))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Offset(Offset(page, limit)).
		Limit(limit).
		Order("created_at DESC").
		Find(&recs).Error; err != nil {
		return nil, 0, err
	}

	items := make([]models.InventoryItem, 0, len(recs))
	for _, rec := range recs {
		item, _, err := rec.toModel()
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, nil
}

// GormReservationRepository implements ReservationRepository using GORM.
type GormReservationRepository struct {
	db *gorm.DB
}

func NewGormReservationRepository(db *gorm.DB) ReservationRepository {
	return &GormReservationRepository{db: db}
}

func (r *GormReservationRepository) FindActiveByItemAndReference(ctx context.Context, itemID uuid.UUID, reference string) (models.StockReservation, error) {
	var rec reservationRecord
	err := r.db.WithContext(ctx).
		Where("item_id = ? AND reference = ? AND status = ?", itemID, reference, string(models.ReservationActive)).
		First(&rec).Error
	if err != nil {
		return models.StockReservation{}, translateGormError(err)
	}
	return rec.toModel(), nil
}

func (r *GormReservationRepository) FindByItemAndReferenceAndStatus(ctx context.Context, itemID uuid.UUID, reference string, status models.ReservationStatus) ([]models.StockReservation, error) {
	var recs []reservationRecord
	err := r.db.WithContext(ctx).
		Where("item_id = ? AND reference = ? AND status = ?", itemID, reference, string(status)).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toReservations(recs), nil
}

func (r *GormReservationRepository) Create(ctx context.Context, res models.StockReservation) error {
	rec := newReservationRecord(res)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateActiveReservation
		}
		return err
	}
	return nil
}

func (r *GormReservationRepository) Save(ctx context.Context, res models.StockReservation) error {
	result := r.db.WithContext(ctx).
		Model(&reservationRecord{}).
		Where("id = ? AND status = ?", res.ID, string(models.ReservationActive)).
		Updates(map[string]interface{}{
			"status":      string(res.Status),
			"released_at": res.ReleasedAt,
			"consumed_at": res.ConsumedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *GormReservationRepository) ListByItem(ctx context.Context, itemID uuid.UUID, page, limit int) ([]models.StockReservation, int64, error) {
	var recs []reservationRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&reservationRecord{}).Where("item_id = ?", itemID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.
		Offset(Offset(page, limit)).
		Limit(limit).
		Order("created_at DESC").
		Find(&recs).Error; err != nil {
		return nil, 0, err
	}
	return toReservations(recs), total, nil
}

func toReservations(recs []reservationRecord) []models.StockReservation {
	out := make([]models.StockReservation, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toModel())
	}
	return out
}

func translateGormError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

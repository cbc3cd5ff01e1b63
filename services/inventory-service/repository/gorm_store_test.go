package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	return gormDB, mock
}

var itemColumns = []string{
	"id", "sku", "name", "description", "category", "gender", "size", "fabric",
	"accessory_type", "color", "price_amount", "price_currency", "on_hand", "reserved",
	"low_stock_threshold", "status", "version", "created_at", "updated_at",
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
}

func TestGormItemRepository_FindByID_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormItemRepository(gormDB)

	id := uuid.New()
	now := time.Now().UTC()
	rows := sqlmock.NewRows(itemColumns).
		AddRow(id, "TEE-BLK-M", "Basic tee", "", "TOPS", "UNISEX", "M", "COTTON", "", "black",
			"19.9000", "EUR", 10, 3, 2, "ACTIVE", 7, now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "inventory_items" WHERE id = $1`)).
		WillReturnRows(rows)

	item, version, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, repository.Version(7), version)
	assert.Equal(t, "TEE-BLK-M", item.SKU)
	assert.Equal(t, 10, item.Stock.OnHand())
	assert.Equal(t, 3, item.Stock.Reserved())
	assert.Equal(t, "19.9", item.Price.Amount.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormItemRepository_FindByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormItemRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "inventory_items" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows(itemColumns))

	_, _, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGormItemRepository_FindByID_CorruptStock(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormItemRepository(gormDB)

	now := time.Now()
	rows := sqlmock.NewRows(itemColumns).
		AddRow(uuid.New(), "X", "X", "", "TOPS", "MEN", "S", "WOOL", "", "", "1", "EUR", 1, 5, 0, "ACTIVE", 1, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "inventory_items"`)).WillReturnRows(rows)

	_, _, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrInvalidStock)
}

func TestGormItemRepository_Create_DuplicateSKU(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormItemRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "inventory_items"`)).
		WillReturnError(uniqueViolation())
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleItem(t, 5))
	assert.ErrorIs(t, err, repository.ErrDuplicateSKU)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormItemRepository_Save_VersionMatch(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormItemRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "inventory_items" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Save(context.Background(), sampleItem(t, 5), 3)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormItemRepository_Save_StaleVersion(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormItemRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "inventory_items" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Save(context.Background(), sampleItem(t, 5), 3)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}

func TestGormStore_Do_CommitsReservationAndItem(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	store := repository.NewGormStore(gormDB)

	item := sampleItem(t, 5)
	res, err := models.NewStockReservation(uuid.New(), item.ID, "ORDER-1", 2, time.Now())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "stock_reservations"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "inventory_items" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = store.Do(context.Background(), func(tx repository.Tx) error {
		if err := tx.Reservations().Create(context.Background(), res); err != nil {
			return err
		}
		return tx.Items().Save(context.Background(), item, 1)
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Do_DuplicateActiveReservationRollsBack(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	store := repository.NewGormStore(gormDB)

	res, err := models.NewStockReservation(uuid.New(), uuid.New(), "ORDER-1", 2, time.Now())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "stock_reservations"`)).
		WillReturnError(uniqueViolation())
	mock.ExpectRollback()

	err = store.Do(context.Background(), func(tx repository.Tx) error {
		return tx.Reservations().Create(context.Background(), res)
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateActiveReservation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormReservationRepository_FindActive_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormReservationRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "stock_reservations" WHERE item_id = $1 AND reference = $2 AND status = $3`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindActiveByItemAndReference(context.Background(), uuid.New(), "ORDER-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGormReservationRepository_FindByStatus(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormReservationRepository(gormDB)

	itemID := uuid.New()
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "item_id", "reference", "quantity", "status", "created_at", "released_at", "consumed_at"}).
		AddRow(uuid.New(), itemID, "ORDER-1", 2, "RELEASED", now, now, nil).
		AddRow(uuid.New(), itemID, "ORDER-1", 1, "RELEASED", now.Add(-time.Hour), now.Add(-time.Minute), nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "stock_reservations" WHERE item_id = $1 AND reference = $2 AND status = $3 ORDER BY created_at DESC`)).
		WithArgs(itemID, "ORDER-1", "RELEASED").
		WillReturnRows(rows)

	got, err := repo.FindByItemAndReferenceAndStatus(context.Background(), itemID, "ORDER-1", models.ReservationReleased)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.ReservationReleased, got[0].Status)
	assert.NotNil(t, got[0].ReleasedAt)
	assert.Nil(t, got[0].ConsumedAt)
}

func TestGormReservationRepository_Save_NoLongerActive(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormReservationRepository(gormDB)

	res, err := models.NewStockReservation(uuid.New(), uuid.New(), "ORDER-1", 2, time.Now())
	require.NoError(t, err)
	released, err := res.Release(time.Now())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "stock_reservations" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err = repo.Save(context.Background(), released)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}

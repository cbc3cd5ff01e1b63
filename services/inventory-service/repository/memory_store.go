package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-process UnitOfWork with the same conflict rules as
// the database stores: writes are staged and validated together at commit,
// item saves are version-checked and the active (item, reference) pair is
// unique. Reads observe committed state only.
type MemoryStore struct {
	mu           sync.RWMutex
	items        map[uuid.UUID]memItem
	skus         map[string]uuid.UUID
	reservations map[uuid.UUID]models.StockReservation
	active       map[activeKey]uuid.UUID
}

type memItem struct {
	item    models.InventoryItem
	version Version
}

type activeKey struct {
	itemID    uuid.UUID
	reference string
}

type memOpKind int

const (
	opCreateItem memOpKind = iota
	opSaveItem
	opCreateReservation
	opSaveReservation
)

type memOp struct {
	kind        memOpKind
	item        models.InventoryItem
	expected    Version
	reservation models.StockReservation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:        make(map[uuid.UUID]memItem),
		skus:         make(map[string]uuid.UUID),
		reservations: make(map[uuid.UUID]models.StockReservation),
		active:       make(map[activeKey]uuid.UUID),
	}
}

func (s *MemoryStore) Do(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx.ops)
}

func (s *MemoryStore) Items() ItemRepository {
	return memoryItems{tx: &memoryTx{store: s, autoCommit: true}}
}

func (s *MemoryStore) Reservations() ReservationRepository {
	return memoryReservations{tx: &memoryTx{store: s, autoCommit: true}}
}

func (s *MemoryStore) commit(ops []memOp) error {
	if len(ops) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reservation checks run first so a duplicate request reports the
	// uniqueness violation rather than the version conflict it also causes.
	for _, op := range ops {
		switch op.kind {
		case opCreateReservation:
			if !op.reservation.IsActive() {
				continue
			}
			if _, taken := s.active[keyOf(op.reservation)]; taken {
				return ErrDuplicateActiveReservation
			}
		case opSaveReservation:
			stored, ok := s.reservations[op.reservation.ID]
			if !ok || !stored.IsActive() {
				return ErrVersionConflict
			}
		}
	}
	for _, op := range ops {
		switch op.kind {
		case opCreateItem:
			if _, taken := s.skus[op.item.SKU]; taken {
				return ErrDuplicateSKU
			}
			if _, exists := s.items[op.item.ID]; exists {
				return ErrDuplicateID
			}
		case opSaveItem:
			stored, ok := s.items[op.item.ID]
			if !ok || stored.version != op.expected {
				return ErrVersionConflict
			}
		}
	}

	for _, op := range ops {
		switch op.kind {
		case opCreateItem:
			s.items[op.item.ID] = memItem{item: op.item, version: 1}
			s.skus[op.item.SKU] = op.item.ID
		case opSaveItem:
			s.items[op.item.ID] = memItem{item: op.item, version: op.expected + 1}
		case opCreateReservation:
			s.reservations[op.reservation.ID] = op.reservation
			if op.reservation.IsActive() {
				s.active[keyOf(op.reservation)] = op.reservation.ID
			}
		case opSaveReservation:
			s.reservations[op.reservation.ID] = op.reservation
			if !op.reservation.IsActive() {
				delete(s.active, keyOf(op.reservation))
			}
		}
	}
	return nil
}

func keyOf(r models.StockReservation) activeKey {
	return activeKey{itemID: r.ItemID, reference: r.Reference}
}

type memoryTx struct {
	store      *MemoryStore
	ops        []memOp
	autoCommit bool
}

func (t *memoryTx) Items() ItemRepository               { return memoryItems{tx: t} }
func (t *memoryTx) Reservations() ReservationRepository { return memoryReservations{tx: t} }

func (t *memoryTx) stage(op memOp) error {
	if t.autoCommit {
		return t.store.commit([]memOp{op})
	}
	t.ops = append(t.ops, op)
	return nil
}

type memoryItems struct {
	tx *memoryTx
}

func (r memoryItems) FindByID(_ context.Context, id uuid.UUID) (models.InventoryItem, Version, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.items[id]
	if !ok {
		return models.InventoryItem{}, 0, ErrNotFound
	}
	return stored.item, stored.version, nil
}

func (r memoryItems) FindBySKU(ctx context.Context, sku string) (models.InventoryItem, Version, error) {
	s := r.tx.store
	s.mu.RLock()
	id, ok := s.skus[models.NormalizeSKU(sku)]
	s.mu.RUnlock()
	if !ok {
		return models.InventoryItem{}, 0, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r memoryItems) Create(_ context.Context, item models.InventoryItem) error {
	return r.tx.stage(memOp{kind: opCreateItem, item: item})
}

func (r memoryItems) Save(_ context.Context, item models.InventoryItem, expected Version) error {
	return r.tx.stage(memOp{kind: opSaveItem, item: item, expected: expected})
}

func (r memoryItems) Search(_ context.Context, filter models.ItemFilter, page, limit int) ([]models.InventoryItem, int64, error) {
	s := r.tx.store
	s.mu.RLock()
	matched := make([]models.InventoryItem, 0, len(s.items))
	for _, stored := range s.items {
		if matchesFilter(stored.item, filter) {
			matched = append(matched, stored.item)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, page, limit), int64(len(matched)), nil
}

func matchesFilter(item models.InventoryItem, f models.ItemFilter) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(item.Name), q) && !strings.Contains(strings.ToLower(item.SKU), q) {
			return false
		}
	}
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if f.Gender != "" && item.Gender != f.Gender {
		return false
	}
	if f.Size != "" && item.Size != f.Size {
		return false
	}
	if f.Status != "" && item.Status != f.Status {
		return false
	}
	return true
}

func paginate[T any](all []T, page, limit int) []T {
	offset := Offset(page, limit)
	if offset < 0 || offset >= len(all) {
		return []T{}
	}
	end := len(all)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}
	return all[offset:end]
}

type memoryReservations struct {
	tx *memoryTx
}

func (r memoryReservations) FindActiveByItemAndReference(_ context.Context, itemID uuid.UUID, reference string) (models.StockReservation, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[activeKey{itemID: itemID, reference: reference}]
	if !ok {
		return models.StockReservation{}, ErrNotFound
	}
	return s.reservations[id], nil
}

func (r memoryReservations) FindByItemAndReferenceAndStatus(_ context.Context, itemID uuid.UUID, reference string, status models.ReservationStatus) ([]models.StockReservation, error) {
	return r.collect(func(res models.StockReservation) bool {
		return res.ItemID == itemID && res.Reference == reference && res.Status == status
	}), nil
}

func (r memoryReservations) Create(_ context.Context, res models.StockReservation) error {
	return r.tx.stage(memOp{kind: opCreateReservation, reservation: res})
}

func (r memoryReservations) Save(_ context.Context, res models.StockReservation) error {
	return r.tx.stage(memOp{kind: opSaveReservation, reservation: res})
}

func (r memoryReservations) ListByItem(_ context.Context, itemID uuid.UUID, page, limit int) ([]models.StockReservation, int64, error) {
	all := r.collect(func(res models.StockReservation) bool { return res.ItemID == itemID })
	return paginate(all, page, limit), int64(len(all)), nil
}

// collect returns matching reservations newest first.
func (r memoryReservations) collect(match func(models.StockReservation) bool) []models.StockReservation {
	s := r.tx.store
	s.mu.RLock()
	out := make([]models.StockReservation, 0)
	for _, res := range s.reservations {
		if match(res) {
			out = append(out, res)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

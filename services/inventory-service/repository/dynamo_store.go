package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Single-table layout:
//
//	ITEM#<id>  ITEM                item snapshot
//	SKU#<sku>  SKU                 guard row owning the SKU
//	ITEM#<id>  RESERVATION#<rid>   reservation
//	ITEM#<id>  ACTIVE#<reference>  guard row, present while the reservation is ACTIVE
const (
	skItem           = "ITEM"
	skSKU            = "SKU"
	prefixItem       = "ITEM#"
	prefixSKU        = "SKU#"
	prefixReserv     = "RESERVATION#"
	prefixActive     = "ACTIVE#"
	maxTransactItems = 100
)

type ddbKey struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
}

type ddbGuard struct {
	PK    string `dynamodbav:"pk"`
	SK    string `dynamodbav:"sk"`
	RefID string `dynamodbav:"ref_id"`
}

type ddbItem struct {
	PK                string `dynamodbav:"pk"`
	SK                string `dynamodbav:"sk"`
	ID                string `dynamodbav:"id"`
	SKU               string `dynamodbav:"sku"`
	Name              string `dynamodbav:"name"`
	Description       string `dynamodbav:"description,omitempty"`
	Category          string `dynamodbav:"category"`
	Gender            string `dynamodbav:"gender"`
	Size              string `dynamodbav:"size"`
	Fabric            string `dynamodbav:"fabric"`
	AccessoryType     string `dynamodbav:"accessory_type,omitempty"`
	Color             string `dynamodbav:"color,omitempty"`
	PriceAmount       string `dynamodbav:"price_amount"`
	PriceCurrency     string `dynamodbav:"price_currency"`
	OnHand            int    `dynamodbav:"on_hand"`
	Reserved          int    `dynamodbav:"reserved"`
	LowStockThreshold int    `dynamodbav:"low_stock_threshold"`
	Status            string `dynamodbav:"status"`
	Version           int64  `dynamodbav:"version"`
	CreatedAt         string `dynamodbav:"created_at"`
	UpdatedAt         string `dynamodbav:"updated_at"`
}

type ddbReservation struct {
	PK         string `dynamodbav:"pk"`
	SK         string `dynamodbav:"sk"`
	ID         string `dynamodbav:"id"`
	ItemID     string `dynamodbav:"item_id"`
	Reference  string `dynamodbav:"reference"`
	Quantity   int    `dynamodbav:"quantity"`
	Status     string `dynamodbav:"status"`
	CreatedAt  string `dynamodbav:"created_at"`
	ReleasedAt string `dynamodbav:"released_at,omitempty"`
	ConsumedAt string `dynamodbav:"consumed_at,omitempty"`
}

func itemKey(id uuid.UUID) ddbKey { return ddbKey{PK: prefixItem + id.String(), SK: skItem} }
func skuKey(sku string) ddbKey    { return ddbKey{PK: prefixSKU + sku, SK: skSKU} }
func reservationKey(itemID, id uuid.UUID) ddbKey {
	return ddbKey{PK: prefixItem + itemID.String(), SK: prefixReserv + id.String()}
}
func activeGuardKey(itemID uuid.UUID, reference string) ddbKey {
	return ddbKey{PK: prefixItem + itemID.String(), SK: prefixActive + reference}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func newDdbItem(item models.InventoryItem, version Version) ddbItem {
	rec := newItemRecord(item, version)
	key := itemKey(item.ID)
	return ddbItem{
		PK:                key.PK,
		SK:                key.SK,
		ID:                rec.ID.String(),
		SKU:               rec.SKU,
		Name:              rec.Name,
		Description:       rec.Description,
		Category:          rec.Category,
		Gender:            rec.Gender,
		Size:              rec.Size,
		Fabric:            rec.Fabric,
		AccessoryType:     rec.AccessoryType,
		Color:             rec.Color,
		PriceAmount:       rec.PriceAmount.String(),
		PriceCurrency:     rec.PriceCurrency,
		OnHand:            rec.OnHand,
		Reserved:          rec.Reserved,
		LowStockThreshold: rec.LowStockThreshold,
		Status:            rec.Status,
		Version:           rec.Version,
		CreatedAt:         formatTime(rec.CreatedAt),
		UpdatedAt:         formatTime(rec.UpdatedAt),
	}
}

func (d ddbItem) toModel() (models.InventoryItem, Version, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.InventoryItem{}, 0, fmt.Errorf("parse item id: %w", err)
	}
	amount, err := decimal.NewFromString(d.PriceAmount)
	if err != nil {
		return models.InventoryItem{}, 0, fmt.Errorf("item %s: parse price: %w", d.ID, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, d.CreatedAt)
	if err != nil {
		return models.InventoryItem{}, 0, fmt.Errorf("item %s: parse created_at: %w", d.ID, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, d.UpdatedAt)
	if err != nil {
		return models.InventoryItem{}, 0, fmt.Errorf("item %s: parse updated_at: %w", d.ID, err)
	}
	return itemRecord{
		ID:                id,
		SKU:               d.SKU,
		Name:              d.Name,
		Description:       d.Description,
		Category:          d.Category,
		Gender:            d.Gender,
		Size:              d.Size,
		Fabric:            d.Fabric,
		AccessoryType:     d.AccessoryType,
		Color:             d.Color,
		PriceAmount:       amount,
		PriceCurrency:     d.PriceCurrency,
		OnHand:            d.OnHand,
		Reserved:          d.Reserved,
		LowStockThreshold: d.LowStockThreshold,
		Status:            d.Status,
		Version:           d.Version,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	}.toModel()
}

func newDdbReservation(r models.StockReservation) ddbReservation {
	key := reservationKey(r.ItemID, r.ID)
	return ddbReservation{
		PK:         key.PK,
		SK:         key.SK,
		ID:         r.ID.String(),
		ItemID:     r.ItemID.String(),
		Reference:  r.Reference,
		Quantity:   r.Quantity,
		Status:     string(r.Status),
		CreatedAt:  formatTime(r.CreatedAt),
		ReleasedAt: formatOptionalTime(r.ReleasedAt),
		ConsumedAt: formatOptionalTime(r.ConsumedAt),
	}
}

func (d ddbReservation) toModel() (models.StockReservation, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.StockReservation{}, fmt.Errorf("parse reservation id: %w", err)
	}
	itemID, err := uuid.Parse(d.ItemID)
	if err != nil {
		return models.StockReservation{}, fmt.Errorf("reservation %s: parse item id: %w", d.ID, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, d.CreatedAt)
	if err != nil {
		return models.StockReservation{}, fmt.Errorf("reservation %s: parse created_at: %w", d.ID, err)
	}
	releasedAt, err := parseOptionalTime(d.ReleasedAt)
	if err != nil {
		return models.StockReservation{}, fmt.Errorf("reservation %s: parse released_at: %w", d.ID, err)
	}
	consumedAt, err := parseOptionalTime(d.ConsumedAt)
	if err != nil {
		return models.StockReservation{}, fmt.Errorf("reservation %s: parse consumed_at: %w", d.ID, err)
	}
	return models.StockReservation{
		ID:         id,
		ItemID:     itemID,
		Reference:  d.Reference,
		Quantity:   d.Quantity,
		Status:     models.ReservationStatus(d.Status),
		CreatedAt:  createdAt,
		ReleasedAt: releasedAt,
		ConsumedAt: consumedAt,
	}, nil
}

// DynamoStore implements UnitOfWork on a single DynamoDB table with string
// keys "pk" and "sk". A unit of work is one TransactWriteItems call.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) Do(ctx context.Context, fn func(tx Tx) error) error {
	tx := &dynamoTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(ctx, tx.writes)
}

func (s *DynamoStore) Items() ItemRepository {
	return dynamoItems{tx: &dynamoTx{store: s, autoCommit: true}}
}

func (s *DynamoStore) Reservations() ReservationRepository {
	return dynamoReservations{tx: &dynamoTx{store: s, autoCommit: true}}
}

type stagedWrite struct {
	kind  memOpKind
	guard bool
	write types.TransactWriteItem
}

func (s *DynamoStore) commit(ctx context.Context, writes []stagedWrite) error {
	if len(writes) == 0 {
		return nil
	}
	if len(writes) > maxTransactItems {
		return fmt.Errorf("unit of work has %d writes, limit is %d", len(writes), maxTransactItems)
	}
	items := make([]types.TransactWriteItem, len(writes))
	for i, w := range writes {
		items[i] = w.write
	}
	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return nil
	}
	var conflict *types.TransactionConflictException
	if errors.As(err, &conflict) {
		return fmt.Errorf("%w: %v", ErrVersionConflict, err)
	}
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return fmt.Errorf("dynamodb TransactWriteItems failed: %w", err)
	}
	return cancellationError(writes, canceled.CancellationReasons, err)
}

// cancellationError maps failed condition checks back to repository errors.
// A taken reservation guard wins over any item conflict in the same batch.
// A TransactionConflict reason means another writer held one of the rows,
// which is reported as a version conflict so the caller can retry.
func cancellationError(writes []stagedWrite, reasons []types.CancellationReason, cause error) error {
	failed := make(map[memOpKind]bool)
	var contended, skuTaken bool
	for i, reason := range reasons {
		switch aws.ToString(reason.Code) {
		case "ConditionalCheckFailed":
			if i >= len(writes) {
				continue
			}
			failed[writes[i].kind] = true
			if writes[i].kind == opCreateItem && writes[i].guard {
				skuTaken = true
			}
		case "TransactionConflict":
			contended = true
		}
	}
	switch {
	case failed[opCreateReservation]:
		return ErrDuplicateActiveReservation
	case failed[opSaveReservation]:
		return ErrVersionConflict
	case skuTaken:
		return ErrDuplicateSKU
	case failed[opCreateItem]:
		return ErrDuplicateID
	case failed[opSaveItem], contended:
		return ErrVersionConflict
	}
	return fmt.Errorf("dynamodb transaction canceled: %w", cause)
}

type dynamoTx struct {
	store      *DynamoStore
	writes     []stagedWrite
	autoCommit bool
}

func (t *dynamoTx) Items() ItemRepository               { return dynamoItems{tx: t} }
func (t *dynamoTx) Reservations() ReservationRepository { return dynamoReservations{tx: t} }

func (t *dynamoTx) stage(ctx context.Context, writes ...stagedWrite) error {
	if t.autoCommit {
		return t.store.commit(ctx, writes)
	}
	t.writes = append(t.writes, writes...)
	return nil
}

func (t *dynamoTx) put(kind memOpKind, v interface{}, condition string, values map[string]types.AttributeValue) (stagedWrite, error) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return stagedWrite{}, fmt.Errorf("marshal item: %w", err)
	}
	put := &types.Put{
		TableName:           aws.String(t.store.table),
		Item:                item,
		ConditionExpression: aws.String(condition),
	}
	if len(values) > 0 {
		put.ExpressionAttributeValues = values
	}
	return stagedWrite{kind: kind, write: types.TransactWriteItem{Put: put}}, nil
}

func (s *DynamoStore) getItem(ctx context.Context, key ddbKey, out interface{}) (bool, error) {
	k, err := attributevalue.MarshalMap(key)
	if err != nil {
		return false, fmt.Errorf("marshal key: %w", err)
	}
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            k,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(resp.Item) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(resp.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal item: %w", err)
	}
	return true, nil
}

type dynamoItems struct {
	tx *dynamoTx
}

func (r dynamoItems) FindByID(ctx context.Context, id uuid.UUID) (models.InventoryItem, Version, error) {
	var rec ddbItem
	found, err := r.tx.store.getItem(ctx, itemKey(id), &rec)
	if err != nil {
		return models.InventoryItem{}, 0, err
	}
	if !found {
		return models.InventoryItem{}, 0, ErrNotFound
	}
	return rec.toModel()
}

func (r dynamoItems) FindBySKU(ctx context.Context, sku string) (models.InventoryItem, Version, error) {
	var guard ddbGuard
	found, err := r.tx.store.getItem(ctx, skuKey(models.NormalizeSKU(sku)), &guard)
	if err != nil {
		return models.InventoryItem{}, 0, err
	}
	if !found {
		return models.InventoryItem{}, 0, ErrNotFound
	}
	id, err := uuid.Parse(guard.RefID)
	if err != nil {
		return models.InventoryItem{}, 0, fmt.Errorf("sku %s: parse item id: %w", sku, err)
	}
	return r.FindByID(ctx, id)
}

func (r dynamoItems) Create(ctx context.Context, item models.InventoryItem) error {
	itemPut, err := r.tx.put(opCreateItem, newDdbItem(item, 1), "attribute_not_exists(pk)", nil)
	if err != nil {
		return err
	}
	key := skuKey(item.SKU)
	guardPut, err := r.tx.put(opCreateItem, ddbGuard{PK: key.PK, SK: key.SK, RefID: item.ID.String()}, "attribute_not_exists(pk)", nil)
	if err != nil {
		return err
	}
	guardPut.guard = true
	return r.tx.stage(ctx, itemPut, guardPut)
}

func (r dynamoItems) Save(ctx context.Context, item models.InventoryItem, expected Version) error {
	w, err := r.tx.put(opSaveItem, newDdbItem(item, expected+1), "#version = :expected", map[string]types.AttributeValue{
		":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", int64(expected))},
	})
	if err != nil {
		return err
	}
	w.write.Put.ExpressionAttributeNames = map[string]string{"#version": "version"}
	return r.tx.stage(ctx, w)
}

// Search scans item rows and filters in process. The catalog is small
// enough per table that a secondary index is not maintained for it.
func (r dynamoItems) Search(ctx context.Context, filter models.ItemFilter, page, limit int) ([]models.InventoryItem, int64, error) {
	s := r.tx.store
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          aws.String("sk = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":sk": &types.AttributeValueMemberS{Value: skItem}},
	})

	var matched []models.InventoryItem
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("dynamodb Scan failed: %w", err)
		}
		var recs []ddbItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
			return nil, 0, fmt.Errorf("unmarshal items: %w", err)
		}
		for _, rec := range recs {
			item, _, err := rec.toModel()
			if err != nil {
				return nil, 0, err
			}
			if matchesFilter(item, filter) {
				matched = append(matched, item)
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, page, limit), int64(len(matched)), nil
}

type dynamoReservations struct {
	tx *dynamoTx
}

func (r dynamoReservations) FindActiveByItemAndReference(ctx context.Context, itemID uuid.UUID, reference string) (models.StockReservation, error) {
	s := r.tx.store
	var guard ddbGuard
	found, err := s.getItem(ctx, activeGuardKey(itemID, reference), &guard)
	if err != nil {
		return models.StockReservation{}, err
	}
	if !found {
		return models.StockReservation{}, ErrNotFound
	}
	id, err := uuid.Parse(guard.RefID)
	if err != nil {
		return models.StockReservation{}, fmt.Errorf("active guard %s: parse reservation id: %w", reference, err)
	}
	var rec ddbReservation
	found, err = s.getItem(ctx, reservationKey(itemID, id), &rec)
	if err != nil {
		return models.StockReservation{}, err
	}
	if !found || rec.Status != string(models.ReservationActive) {
		return models.StockReservation{}, ErrNotFound
	}
	return rec.toModel()
}

func (r dynamoReservations) FindByItemAndReferenceAndStatus(ctx context.Context, itemID uuid.UUID, reference string, status models.ReservationStatus) ([]models.StockReservation, error) {
	return r.query(ctx, itemID, "reference = :ref AND #status = :status", map[string]types.AttributeValue{
		":ref":    &types.AttributeValueMemberS{Value: reference},
		":status": &types.AttributeValueMemberS{Value: string(status)},
	})
}

func (r dynamoReservations) Create(ctx context.Context, res models.StockReservation) error {
	resPut, err := r.tx.put(opCreateReservation, newDdbReservation(res), "attribute_not_exists(pk)", nil)
	if err != nil {
		return err
	}
	if !res.IsActive() {
		return r.tx.stage(ctx, resPut)
	}
	key := activeGuardKey(res.ItemID, res.Reference)
	guardPut, err := r.tx.put(opCreateReservation, ddbGuard{PK: key.PK, SK: key.SK, RefID: res.ID.String()}, "attribute_not_exists(pk)", nil)
	if err != nil {
		return err
	}
	return r.tx.stage(ctx, resPut, guardPut)
}

func (r dynamoReservations) Save(ctx context.Context, res models.StockReservation) error {
	resPut, err := r.tx.put(opSaveReservation, newDdbReservation(res), "#status = :active", map[string]types.AttributeValue{
		":active": &types.AttributeValueMemberS{Value: string(models.ReservationActive)},
	})
	if err != nil {
		return err
	}
	resPut.write.Put.ExpressionAttributeNames = map[string]string{"#status": "status"}
	if res.IsActive() {
		return r.tx.stage(ctx, resPut)
	}
	guard, err := attributevalue.MarshalMap(activeGuardKey(res.ItemID, res.Reference))
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	del := stagedWrite{kind: opSaveReservation, write: types.TransactWriteItem{Delete: &types.Delete{
		TableName:                 aws.String(r.tx.store.table),
		Key:                       guard,
		ConditionExpression:       aws.String("ref_id = :rid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":rid": &types.AttributeValueMemberS{Value: res.ID.String()}},
	}}}
	return r.tx.stage(ctx, resPut, del)
}

func (r dynamoReservations) ListByItem(ctx context.Context, itemID uuid.UUID, page, limit int) ([]models.StockReservation, int64, error) {
	all, err := r.query(ctx, itemID, "", nil)
	if err != nil {
		return nil, 0, err
	}
	return paginate(all, page, limit), int64(len(all)), nil
}

// query returns the item's reservations newest first, optionally filtered.
func (r dynamoReservations) query(ctx context.Context, itemID uuid.UUID, filter string, filterValues map[string]types.AttributeValue) ([]models.StockReservation, error) {
	s := r.tx.store
	values := map[string]types.AttributeValue{
		":pk":     &types.AttributeValueMemberS{Value: prefixItem + itemID.String()},
		":prefix": &types.AttributeValueMemberS{Value: prefixReserv},
	}
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ConsistentRead:         aws.Bool(true),
	}
	if filter != "" {
		input.FilterExpression = aws.String(filter)
		input.ExpressionAttributeNames = map[string]string{"#status": "status"}
		for k, v := range filterValues {
			values[k] = v
		}
	}
	input.ExpressionAttributeValues = values

	var out []models.StockReservation
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		resp, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb Query failed: %w", err)
		}
		var recs []ddbReservation
		if err := attributevalue.UnmarshalListOfMaps(resp.Items, &recs); err != nil {
			return nil, fmt.Errorf("unmarshal reservations: %w", err)
		}
		for _, rec := range recs {
			res, err := rec.toModel()
			if err != nil {
				return nil, err
			}
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

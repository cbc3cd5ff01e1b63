package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/publisher"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func reservedEvent(t *testing.T) models.StockReserved {
	t.Helper()
	stock, err := models.NewStock(10, 3)
	require.NoError(t, err)
	return models.StockReserved{
		EventMeta:     models.EventMeta{ItemID: uuid.New(), OccurredAt: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)},
		ReservationID: uuid.New(),
		Reference:     "ORDER-7",
		Quantity:      3,
		Stock:         stock,
	}
}

func TestNewEnvelope(t *testing.T) {
	ev := reservedEvent(t)

	env, err := publisher.NewEnvelope(ev)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, env.EventID)
	assert.Equal(t, string(models.EventStockReserved), env.EventType)
	assert.Equal(t, ev.ItemID, env.ItemID)
	assert.Equal(t, publisher.Source, env.Source)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "ORDER-7", payload["reference"])
	stock := payload["stock"].(map[string]interface{})
	assert.EqualValues(t, 7, stock["available"])
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	bodies [][]byte
	attrs  []map[string]string
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	return r.PublishWithAttributes(ctx, topic, msg, nil)
}

func (r *recordingPublisher) PublishWithAttributes(_ context.Context, topic string, msg []byte, attrs map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.bodies = append(r.bodies, msg)
	r.attrs = append(r.attrs, attrs)
	return r.err
}

func TestSNSSink(t *testing.T) {
	rec := &recordingPublisher{}
	sink := publisher.NewSNSSink(rec, "arn:inventory")

	require.NoError(t, sink.Publish(context.Background(), reservedEvent(t)))
	require.Len(t, rec.bodies, 1)
	assert.Equal(t, "arn:inventory", rec.topics[0])
	assert.Equal(t, string(models.EventStockReserved), rec.attrs[0]["event_type"])
	assert.Equal(t, publisher.Source, rec.attrs[0]["source"])

	var env publisher.Envelope
	require.NoError(t, json.Unmarshal(rec.bodies[0], &env))
	assert.Equal(t, string(models.EventStockReserved), env.EventType)

	rec.err = errors.New("throttled")
	assert.ErrorContains(t, sink.Publish(context.Background(), reservedEvent(t)), "sns sink")
}

type senderFunc func(ctx context.Context, body string) error

func (f senderFunc) SendMessage(ctx context.Context, body string) error { return f(ctx, body) }

func TestSQSSink(t *testing.T) {
	var got string
	sink := publisher.NewSQSSink(senderFunc(func(_ context.Context, body string) error {
		got = body
		return nil
	}))

	require.NoError(t, sink.Publish(context.Background(), reservedEvent(t)))
	assert.Contains(t, got, `"event_type":"StockReserved"`)
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessage(_ context.Context, msg kafka.Message) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink_KeysByItem(t *testing.T) {
	w := &fakeWriter{}
	sink := publisher.NewKafkaSink(w)
	ev := reservedEvent(t)

	require.NoError(t, sink.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, ev.ItemID.String(), string(w.msgs[0].Key))
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, "StockReserved", string(w.msgs[0].Headers[0].Value))

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

type fakeInserter struct {
	docs []interface{}
}

func (f *fakeInserter) InsertOne(_ context.Context, doc interface{}, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	f.docs = append(f.docs, doc)
	return &mongo.InsertOneResult{}, nil
}

func TestMongoSink_StoresAuditDocument(t *testing.T) {
	ins := &fakeInserter{}
	sink := publisher.NewMongoSink(ins)
	ev := reservedEvent(t)

	require.NoError(t, sink.Publish(context.Background(), ev))
	require.Len(t, ins.docs, 1)

	raw, err := bson.Marshal(ins.docs[0])
	require.NoError(t, err)
	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, ev.ItemID.String(), doc["item_id"])
	assert.Equal(t, "StockReserved", doc["event_type"])
	payload := doc["payload"].(bson.M)
	assert.Equal(t, "ORDER-7", payload["reference"])
}

type failingSink struct{ err error }

func (f failingSink) Publish(context.Context, models.DomainEvent) error { return f.err }

func TestFanOut_JoinsErrorsAndKeepsGoing(t *testing.T) {
	w := &fakeWriter{}
	errA := errors.New("a down")
	errB := errors.New("b down")
	fan := publisher.FanOut{failingSink{errA}, publisher.NewKafkaSink(w), failingSink{errB}}

	err := fan.Publish(context.Background(), reservedEvent(t))
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Len(t, w.msgs, 1)

	assert.NoError(t, publisher.FanOut{}.Publish(context.Background(), reservedEvent(t)))
	assert.NoError(t, publisher.Noop{}.Publish(context.Background(), reservedEvent(t)))
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := publisher.NewLogSink(zap.New(core))

	require.NoError(t, sink.Publish(context.Background(), reservedEvent(t)))
	entries := logs.FilterMessage("Inventory event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "StockReserved", entries[0].ContextMap()["event_type"])
}

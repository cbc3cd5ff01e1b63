package publisher

import (
	"context"
	"fmt"

	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditCollection holds one document per published envelope.
const AuditCollection = "inventory_events"

// Inserter is the part of *mongo.Collection used by MongoSink.
type Inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// MongoSink appends every event to an audit collection. The event id is
// the document _id, so a replayed envelope is rejected by the server.
type MongoSink struct {
	collection Inserter
}

func NewMongoSink(collection Inserter) *MongoSink {
	return &MongoSink{collection: collection}
}

type auditDocument struct {
	ID         string `bson:"_id"`
	EventType  string `bson:"event_type"`
	ItemID     string `bson:"item_id"`
	OccurredAt int64  `bson:"occurred_at_ms"`
	Source     string `bson:"source"`
	Payload    bson.M `bson:"payload"`
}

func (s *MongoSink) Publish(ctx context.Context, event models.DomainEvent) error {
	env, err := NewEnvelope(event)
	if err != nil {
		return err
	}
	var payload bson.M
	if err := bson.UnmarshalExtJSON(env.Payload, false, &payload); err != nil {
		return fmt.Errorf("mongo sink: convert payload: %w", err)
	}
	doc := auditDocument{
		ID:         env.EventID.String(),
		EventType:  env.EventType,
		ItemID:     env.ItemID.String(),
		OccurredAt: env.OccurredAt.UnixMilli(),
		Source:     env.Source,
		Payload:    payload,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo sink: %w", err)
	}
	return nil
}

// EnsureAuditIndexes creates the lookup index on item id and time.
func EnsureAuditIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "item_id", Value: 1}, {Key: "occurred_at_ms", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create audit index: %w", err)
	}
	return nil
}

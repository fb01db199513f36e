// Package sagaaudit supplements the orchestrator's relational saga table
// with an append-only forensic trail: every transition HandleEvent/
// HandleTimeout actually commits is additionally written to a Mongo
// collection, mirroring the teacher's metadata-in-Mongo pattern of keeping
// the Postgres row authoritative and Mongo as a queryable side log.
package sagaaudit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

// Record is one saga transition, denormalized for replay: a reader can
// reconstruct a saga's full history by querying sagaId alone, with no join
// back to Postgres required. States are recorded by name rather than
// ordinal so the collection stays self-describing.
type Record struct {
	SagaID       string    `bson:"sagaId"`
	TenantID     string    `bson:"tenantId"`
	FromState    string    `bson:"fromState"`
	ToState      string    `bson:"toState"`
	EventType    string    `bson:"eventType"`
	Compensating bool      `bson:"compensating"`
	RecordedAt   time.Time `bson:"recordedAt"`
}

// NewRecord builds a Record from the saga states HandleEvent/HandleTimeout
// already have in hand.
func NewRecord(tenantID, sagaID string, from, to mmodel.SagaState, eventType string, compensating bool) Record {
	return Record{
		SagaID:       sagaID,
		TenantID:     tenantID,
		FromState:    from.String(),
		ToState:      to.String(),
		EventType:    eventType,
		Compensating: compensating,
		RecordedAt:   time.Now().UTC(),
	}
}

// Writer appends Records to a single collection.
type Writer struct {
	collection *mongo.Collection
}

// NewWriter builds a Writer over db's named collection (default
// "saga_audit").
func NewWriter(db *mongo.Database, collection string) *Writer {
	if collection == "" {
		collection = "saga_audit"
	}
	return &Writer{collection: db.Collection(collection)}
}

// Append inserts one transition record. Failures are the caller's to treat
// as best-effort: the audit trail is a forensic convenience, not part of
// the transactional guarantee HandleEvent/HandleTimeout already give via
// Postgres.
func (w *Writer) Append(ctx context.Context, rec Record) error {
	doc, err := bson.Marshal(rec)
	if err != nil {
		return err
	}

	_, err = w.collection.InsertOne(ctx, doc)
	return err
}

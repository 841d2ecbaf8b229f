// Package store provides the collection backends for the dedupe pipeline:
// a MongoDB implementation and an in-memory reference implementation with
// matching grouping semantics.
package store

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ziangzhang/mdedup/internal/dedupe"
)

// Connect establishes a client for the given URI and verifies the server is
// reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %q: %w", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping server: %w", err)
	}
	return client, nil
}

// Collection adapts a *mongo.Collection to the pipeline's Source and
// Destination interfaces.
type Collection struct {
	coll *mongo.Collection
}

// NewCollection wraps an existing collection handle.
func NewCollection(coll *mongo.Collection) *Collection {
	return &Collection{coll: coll}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.coll.Name() }

// groupPipeline builds the server-side grouping query: sort ascending on
// the field so "first" is deterministic, group by the field value keeping
// the first whole document, then unwrap it.
func groupPipeline(field string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: field, Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "doc", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
		}}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$doc"}}}},
	}
}

// GroupAndPickFirst runs the grouping aggregation and yields one document
// per distinct value of field. AllowDiskUse is always set: the source
// collection is unbounded and the distinct-value working set may not fit in
// memory, so server-side spilling is required, not an optimization.
func (c *Collection) GroupAndPickFirst(ctx context.Context, field string) iter.Seq2[dedupe.Document, error] {
	return func(yield func(dedupe.Document, error) bool) {
		cursor, err := c.coll.Aggregate(ctx, groupPipeline(field),
			options.Aggregate().SetAllowDiskUse(true))
		if err != nil {
			yield(nil, err)
			return
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var doc bson.M
			if err := cursor.Decode(&doc); err != nil {
				yield(nil, err)
				return
			}
			if !yield(dedupe.Document(doc), nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Clear deletes every document in the collection and returns how many were
// removed.
func (c *Collection) Clear(ctx context.Context) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// BulkInsert submits the batch as a single unordered bulk write. A
// BulkWriteException means some individual inserts failed while the rest
// landed; that is the tolerated partial-success case and is reported only
// through the returned count. Any other error is a hard failure of the call
// itself.
func (c *Collection) BulkInsert(ctx context.Context, docs []dedupe.Document) (int, error) {
	models := make([]mongo.WriteModel, len(docs))
	for i, doc := range docs {
		models[i] = mongo.NewInsertOneModel().SetDocument(bson.M(doc))
	}

	res, err := c.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	inserted := 0
	if res != nil {
		inserted = int(res.InsertedCount)
	}
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) {
			return inserted, nil
		}
		return inserted, err
	}
	return inserted, nil
}

// Count returns the number of documents currently in the collection.
func (c *Collection) Count(ctx context.Context) (int64, error) {
	return c.coll.CountDocuments(ctx, bson.D{})
}

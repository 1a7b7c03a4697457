package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bds-scraper/models"
	"bds-scraper/utils"
)

const (
	DefaultMongoDatabase   = "property"
	DefaultMongoCollection = "posts"

	duplicateKeyCode = 11000
)

// MongoWriter inserts records into a collection with a unique
// (post_id, transaction_type) index.
type MongoWriter struct {
	client *mongo.Client
	posts  *mongo.Collection
	logger *utils.Logger
}

// NewMongoWriter connects, pings and makes sure the unique index exists.
func NewMongoWriter(ctx context.Context, uri, database, collection string, logger *utils.Logger) (*MongoWriter, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, eris.Wrap(err, "mongo: connect")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, eris.Wrap(err, "mongo: ping")
	}

	mw := &MongoWriter{
		client: client,
		posts:  client.Database(database).Collection(collection),
		logger: logger,
	}

	_, err = mw.posts.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "post_id", Value: 1},
			{Key: "transaction_type", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("post_id_transaction_type"),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, eris.Wrap(err, "mongo: create unique index")
	}

	logger.Info("[mongo] Writing to %s.%s", database, collection)
	return mw, nil
}

// Persist inserts the records unordered, so one duplicate does not stop
// the rest of the batch.
func (mw *MongoWriter) Persist(ctx context.Context, records []*models.PropertyRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	docs := make([]any, len(records))
	for i, r := range records {
		docs[i] = r
	}

	_, err := mw.posts.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	inserted, err := countInserted(len(docs), err)
	if skipped := len(docs) - inserted; err == nil && skipped > 0 {
		mw.logger.Debug("[mongo] %d duplicate records skipped", skipped)
	}
	return inserted, err
}

// countInserted derives the number of inserted documents from the error of
// an unordered InsertMany. Duplicate-key write errors are expected; any
// other write error is reported alongside the count.
func countInserted(total int, err error) (int, error) {
	if err == nil {
		return total, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return 0, eris.Wrap(err, "mongo: insert many")
	}

	inserted := total - len(bwe.WriteErrors)
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return inserted, eris.Wrapf(err, "mongo: insert many (index %d, code %d)", we.Index, we.Code)
		}
	}
	if bwe.WriteConcernError != nil {
		return inserted, eris.Wrap(err, "mongo: write concern")
	}
	return inserted, nil
}

func (mw *MongoWriter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return mw.client.Disconnect(ctx)
}

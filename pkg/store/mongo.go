package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kholzweiler/planfreeze/pkg/cache"
	"github.com/kholzweiler/planfreeze/pkg/errors"
	"github.com/kholzweiler/planfreeze/pkg/observability"
)

// runsCollection is the collection name used for archived runs.
const runsCollection = "runs"

// MongoStore is a MongoDB-backed archive for server deployments.
type MongoStore struct {
	client *mongo.Client
	runs   *mongo.Collection
}

// NewMongoStore connects to MongoDB and returns a store over the given
// database. The connection is verified with a short ping before returning.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "failed to connect to %s", uri)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeStore, err, "failed to ping %s", uri)
	}

	return &MongoStore{
		client: client,
		runs:   client.Database(database).Collection(runsCollection),
	}, nil
}

// Put archives a run, replacing any run with the same id. Transient
// failures are retried with backoff.
func (s *MongoStore) Put(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "run id cannot be empty")
	}

	err := cache.RetryWithBackoff(ctx, func() error {
		_, err := s.runs.ReplaceOne(ctx,
			bson.M{"_id": run.ID},
			run,
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			return cache.Retryable(err)
		}
		return nil
	})
	if err != nil {
		observability.Store().OnStoreError(ctx, "put", err)
		return errors.Wrap(errors.ErrCodeStore, err, "failed to archive run %s", run.ID)
	}
	observability.Store().OnRunSaved(ctx, run.ID, 0)
	return nil
}

// Get fetches a run by id.
func (s *MongoStore) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.runs.FindOne(ctx, bson.M{"_id": id}).Decode(&run)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeRunNotFound, "run %s not found", id)
	}
	if err != nil {
		observability.Store().OnStoreError(ctx, "get", err)
		return nil, errors.Wrap(errors.ErrCodeStore, err, "failed to load run %s", id)
	}
	observability.Store().OnRunLoaded(ctx, id)
	return &run, nil
}

// List returns the most recent runs, newest first.
func (s *MongoStore) List(ctx context.Context, limit int) ([]Summary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{
			"_id":               1,
			"created_at":        1,
			"report.reason":     1,
			"report.iterations": 1,
			"document.elements": 1,
		})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.runs.Find(ctx, bson.M{}, opts)
	if err != nil {
		observability.Store().OnStoreError(ctx, "list", err)
		return nil, errors.Wrap(errors.ErrCodeStore, err, "failed to list runs")
	}
	defer cur.Close(ctx)

	var out []Summary
	for cur.Next(ctx) {
		var run Run
		if err := cur.Decode(&run); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStore, err, "failed to decode run")
		}
		out = append(out, Summarize(&run))
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "failed to iterate runs")
	}
	return out, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ensure MongoStore implements Store.
var _ Store = (*MongoStore)(nil)

package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const defaultConnectTimeout = 10 * time.Second

// MongoConfig describes a MongoDB deployment target. Credentials travel inside
// the URI; there is no process-wide default deployment.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	Logger         *zap.Logger
}

// OpenMongo connects to MongoDB and returns the database handle together with
// a close function for shutdown.
func OpenMongo(ctx context.Context, cfg MongoConfig) (Database, func(context.Context) error, error) {
	if cfg.URI == "" {
		return nil, nil, fmt.Errorf("storage: mongo uri is required")
	}
	if cfg.Database == "" {
		return nil, nil, fmt.Errorf("storage: mongo database name is required")
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("storage: connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("storage: ping mongo: %w", err)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("document store connected", zap.String("database", cfg.Database))
	}

	database := &mongoDatabase{db: client.Database(cfg.Database)}
	return database, client.Disconnect, nil
}

type mongoDatabase struct {
	db *mongo.Database
}

func (d *mongoDatabase) Collection(name string) Collection {
	return &mongoCollection{coll: d.db.Collection(name)}
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) Find(ctx context.Context, filter bson.M, sort ...SortField) ([]bson.Raw, error) {
	if filter == nil {
		filter = bson.M{}
	}
	opts := options.Find()
	if len(sort) > 0 {
		ordering := make(bson.D, 0, len(sort))
		for _, field := range sort {
			direction := 1
			if !field.Ascending {
				direction = -1
			}
			ordering = append(ordering, bson.E{Key: field.Key, Value: direction})
		}
		opts.SetSort(ordering)
	}

	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []bson.Raw
	for cursor.Next(ctx) {
		results = append(results, cloneRaw(cursor.Current))
	}
	return results, cursor.Err()
}

func (c *mongoCollection) FindOne(ctx context.Context, filter bson.M, projection ...string) (bson.Raw, error) {
	if filter == nil {
		filter = bson.M{}
	}
	opts := options.FindOne()
	if len(projection) > 0 {
		fields := make(bson.D, 0, len(projection))
		for _, field := range projection {
			fields = append(fields, bson.E{Key: field, Value: 1})
		}
		opts.SetProjection(fields)
	}

	raw, err := c.coll.FindOne(ctx, filter, opts).Raw()
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *mongoCollection) InsertOne(ctx context.Context, document any) (primitive.ObjectID, error) {
	result, err := c.coll.InsertOne(ctx, document)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("storage: unexpected inserted id type %T", result.InsertedID)
	}
	return id, nil
}

func (c *mongoCollection) UpdateOne(ctx context.Context, filter bson.M, update bson.M) (int64, error) {
	result, err := c.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}

func (c *mongoCollection) SampleOne(ctx context.Context) (bson.Raw, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: 1}}}},
	}
	cursor, err := c.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if cursor.Next(ctx) {
		return cloneRaw(cursor.Current), nil
	}
	return nil, cursor.Err()
}

// cloneRaw copies cursor-owned bytes, which are invalidated on the next
// cursor advance.
func cloneRaw(raw bson.Raw) bson.Raw {
	clone := make(bson.Raw, len(raw))
	copy(clone, raw)
	return clone
}

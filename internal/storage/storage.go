// Package storage defines the document-store contract the catalog is built on
// and provides a MongoDB-backed implementation plus an in-memory one for tests
// and local development.
package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Global collection names.
const (
	GymsCollection        = "walls"
	UsersCollection       = "users"
	PreferencesCollection = "user_preferences"
)

// WallsFor returns the wall-section collection name for a gym.
func WallsFor(gym string) string {
	return gym + "_walls"
}

// BouldersFor returns the boulder collection name for a gym.
func BouldersFor(gym string) string {
	return gym + "_boulders"
}

// CircuitsFor returns the circuit collection name for a gym.
func CircuitsFor(gym string) string {
	return gym + "_circuits"
}

// RoutesFor returns the route collection name for a gym.
func RoutesFor(gym string) string {
	return gym + "_routes"
}

// SortField names a field and a direction for an ordered query.
type SortField struct {
	Key       string
	Ascending bool
}

// Collection is the per-collection surface the core consumes. Filters and
// updates use the Mongo dialect ($in, $gte, $lte, $regex, $set); implementations
// must evaluate at least that subset.
type Collection interface {
	// Find returns every matching document, ordered by the given sort fields
	// applied left to right. A nil or empty filter matches all documents.
	Find(ctx context.Context, filter bson.M, sort ...SortField) ([]bson.Raw, error)
	// FindOne returns the first matching document or nil when none matches.
	// When projection fields are given, only those fields (plus _id) are
	// guaranteed to be present in the result.
	FindOne(ctx context.Context, filter bson.M, projection ...string) (bson.Raw, error)
	// InsertOne stores the document and returns its generated identity.
	InsertOne(ctx context.Context, document any) (primitive.ObjectID, error)
	// UpdateOne applies the update document to the first match and returns the
	// number of matched documents.
	UpdateOne(ctx context.Context, filter bson.M, update bson.M) (int64, error)
	// SampleOne returns one uniformly sampled document or nil when the
	// collection is empty.
	SampleOne(ctx context.Context) (bson.Raw, error)
}

// Database hands out collections by name.
type Database interface {
	Collection(name string) Collection
}

// Decode unmarshals a single raw document into T. A nil document yields the
// zero value and ok=false, so absence never surfaces as an error.
func Decode[T any](raw bson.Raw) (T, bool, error) {
	var value T
	if raw == nil {
		return value, false, nil
	}
	if err := bson.Unmarshal(raw, &value); err != nil {
		return value, false, fmt.Errorf("storage: decode document: %w", err)
	}
	return value, true, nil
}

// DecodeAll unmarshals a result set into a slice of T.
func DecodeAll[T any](raws []bson.Raw) ([]T, error) {
	values := make([]T, 0, len(raws))
	for _, raw := range raws {
		value, ok, err := Decode[T](raw)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		values = append(values, value)
	}
	return values, nil
}

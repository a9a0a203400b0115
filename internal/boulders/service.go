package boulders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/boulderhub/boulderhub/internal/query"
	"github.com/boulderhub/boulderhub/internal/storage"
	"github.com/boulderhub/boulderhub/internal/walls"
)

var (
	errMissingDatabase = errors.New("boulders: database handle is required")
	errMissingWalls    = errors.New("boulders: wall service is required")

	// ErrDuplicateName indicates a create collided with an existing problem
	// name in the same gym.
	ErrDuplicateName = errors.New("boulders: name already taken in gym")
	// ErrInvalidID indicates an identity that is not a valid storage id.
	ErrInvalidID = errors.New("boulders: invalid boulder id")
)

// Condition field classification for filtered listings. Fields outside these
// sets filter by equality.
var (
	rangedFields   = map[string]bool{"difficulty": true}
	containsFields = map[string]bool{"name": true, "creator": true}
)

// ServiceConfig describes the catalog service dependencies.
type ServiceConfig struct {
	Database storage.Database
	Walls    *walls.Service
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service is the per-gym problem catalog.
type Service struct {
	db     storage.Database
	walls  *walls.Service
	clock  func() time.Time
	logger *zap.Logger
}

// NewService validates the configuration and constructs the catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Walls == nil {
		return nil, errMissingWalls
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, walls: cfg.Walls, clock: clock, logger: logger}, nil
}

// List returns every boulder in the gym under the items envelope.
func (s *Service) List(ctx context.Context, gym string) (Items, error) {
	return s.list(ctx, storage.BouldersFor(gym), nil)
}

// Circuits returns every circuit in the gym under the items envelope.
func (s *Service) Circuits(ctx context.Context, gym string) (Items, error) {
	return s.list(ctx, storage.CircuitsFor(gym), nil)
}

// Routes returns every route in the gym under the items envelope.
func (s *Service) Routes(ctx context.Context, gym string) (Items, error) {
	return s.list(ctx, storage.RoutesFor(gym), nil)
}

// ByID fetches a boulder by its storage identity. Absence is reported through
// the boolean, never as an error.
func (s *Service) ByID(ctx context.Context, gym, boulderID string) (Boulder, bool, error) {
	return s.oneByID(ctx, storage.BouldersFor(gym), boulderID)
}

// ByName fetches a boulder by its gym-unique name.
func (s *Service) ByName(ctx context.Context, gym, name string) (Boulder, bool, error) {
	return s.oneByFilter(ctx, storage.BouldersFor(gym), query.NewBuilder().Equal("name", name).Predicate())
}

// CircuitByID fetches a circuit by its storage identity.
func (s *Service) CircuitByID(ctx context.Context, gym, circuitID string) (Boulder, bool, error) {
	return s.oneByID(ctx, storage.CircuitsFor(gym), circuitID)
}

// CircuitByName fetches a circuit by its gym-unique name.
func (s *Service) CircuitByName(ctx context.Context, gym, name string) (Boulder, bool, error) {
	return s.oneByFilter(ctx, storage.CircuitsFor(gym), query.NewBuilder().Equal("name", name).Predicate())
}

// Random returns one uniformly sampled boulder from the gym.
func (s *Service) Random(ctx context.Context, gym string) (Boulder, bool, error) {
	raw, err := s.db.Collection(storage.BouldersFor(gym)).SampleOne(ctx)
	if err != nil {
		return Boulder{}, false, fmt.Errorf("boulders: sample: %w", err)
	}
	return storage.Decode[Boulder](raw)
}

// Filtered lists the gym's boulders that satisfy the given condition set,
// optionally scoped to the active wall configuration. Condition values arrive
// as strings from the request boundary; ranged fields parse as integers and
// apply the half-unit tolerance interval. An unmatched condition set yields an
// empty listing.
func (s *Service) Filtered(ctx context.Context, gym string, latestOnly bool, conditions map[string]string) (Items, error) {
	builder := query.NewBuilder()
	if latestOnly {
		scope, err := s.walls.ActiveScope(ctx, gym, true)
		if err != nil {
			return Items{}, err
		}
		builder.MemberOf("section", scope.Sections)
	}

	for field, value := range conditions {
		switch {
		case rangedFields[field]:
			target, err := strconv.Atoi(value)
			if err != nil {
				return Items{}, fmt.Errorf("boulders: ranged condition %q: %w", field, err)
			}
			builder.Around(field, target)
		case containsFields[field]:
			builder.ContainsText(field, value)
		default:
			builder.Equal(field, value)
		}
	}

	return s.list(ctx, storage.BouldersFor(gym), builder.Predicate())
}

// FilteredCircuits lists the gym's circuits, optionally scoped to the active
// wall configuration.
func (s *Service) FilteredCircuits(ctx context.Context, gym string, latestOnly bool) (Items, error) {
	builder := query.NewBuilder()
	if latestOnly {
		scope, err := s.walls.ActiveScope(ctx, gym, true)
		if err != nil {
			return Items{}, err
		}
		builder.MemberOf("section", scope.Sections)
	}
	return s.list(ctx, storage.CircuitsFor(gym), builder.Predicate())
}

// Create stores a new boulder after enforcing per-gym name uniqueness and
// stamping the creation timestamp.
func (s *Service) Create(ctx context.Context, gym string, boulder Boulder) (primitive.ObjectID, error) {
	return s.create(ctx, storage.BouldersFor(gym), boulder, true)
}

// CreateCircuit stores a new circuit under the same uniqueness rule.
func (s *Service) CreateCircuit(ctx context.Context, gym string, circuit Boulder) (primitive.ObjectID, error) {
	return s.create(ctx, storage.CircuitsFor(gym), circuit, true)
}

// CreateRoute stores a new route. Route names are not required to be unique.
func (s *Service) CreateRoute(ctx context.Context, gym string, route Boulder) (primitive.ObjectID, error) {
	return s.create(ctx, storage.RoutesFor(gym), route, false)
}

// Update replaces the stored fields of a boulder. The identity itself is
// immutable and never written.
func (s *Service) Update(ctx context.Context, gym, boulderID string, boulder Boulder) error {
	objectID, err := primitive.ObjectIDFromHex(boulderID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, boulderID)
	}
	boulder.ID = primitive.NilObjectID
	matched, err := s.db.Collection(storage.BouldersFor(gym)).UpdateOne(ctx,
		query.NewBuilder().Equal("_id", objectID).Predicate(),
		bson.M{"$set": boulder})
	if err != nil {
		return fmt.Errorf("boulders: update: %w", err)
	}
	if matched == 0 {
		s.logger.Warn("update matched no boulder",
			zap.String("gym", gym), zap.String("boulder_id", boulderID))
	}
	return nil
}

func (s *Service) list(ctx context.Context, collection string, filter bson.M) (Items, error) {
	raws, err := s.db.Collection(collection).Find(ctx, filter)
	if err != nil {
		return Items{}, fmt.Errorf("boulders: list %s: %w", collection, err)
	}
	items, err := storage.DecodeAll[Boulder](raws)
	if err != nil {
		return Items{}, err
	}
	return Items{Items: items}, nil
}

func (s *Service) oneByID(ctx context.Context, collection, id string) (Boulder, bool, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Boulder{}, false, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return s.oneByFilter(ctx, collection, query.NewBuilder().Equal("_id", objectID).Predicate())
}

func (s *Service) oneByFilter(ctx context.Context, collection string, filter bson.M) (Boulder, bool, error) {
	raw, err := s.db.Collection(collection).FindOne(ctx, filter)
	if err != nil {
		return Boulder{}, false, fmt.Errorf("boulders: find in %s: %w", collection, err)
	}
	return storage.Decode[Boulder](raw)
}

func (s *Service) create(ctx context.Context, collection string, problem Boulder, uniqueName bool) (primitive.ObjectID, error) {
	if uniqueName {
		_, exists, err := s.oneByFilter(ctx, collection, query.NewBuilder().Equal("name", problem.Name).Predicate())
		if err != nil {
			return primitive.NilObjectID, err
		}
		if exists {
			return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrDuplicateName, problem.Name)
		}
	}
	if problem.Time == "" {
		problem.Time = s.clock().Format(TimeLayout)
	}
	id, err := s.db.Collection(collection).InsertOne(ctx, problem)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("boulders: insert into %s: %w", collection, err)
	}
	return id, nil
}

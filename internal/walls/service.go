package walls

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/boulderhub/boulderhub/internal/query"
	"github.com/boulderhub/boulderhub/internal/storage"
)

var errMissingDatabase = errors.New("walls: database handle is required")

// ServiceConfig describes the dependencies of the wall service.
type ServiceConfig struct {
	Database storage.Database
	Logger   *zap.Logger
}

// Service answers gym and wall-section lookups.
type Service struct {
	db     storage.Database
	logger *zap.Logger
}

// NewService validates the configuration and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// Gyms lists every registered gym.
func (s *Service) Gyms(ctx context.Context) ([]Gym, error) {
	raws, err := s.db.Collection(storage.GymsCollection).Find(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("walls: list gyms: %w", err)
	}
	return storage.DecodeAll[Gym](raws)
}

// GymName resolves a gym's display name from its code. An unknown gym yields
// an empty string, not an error.
func (s *Service) GymName(ctx context.Context, gym string) (string, error) {
	raw, err := s.db.Collection(storage.GymsCollection).
		FindOne(ctx, query.NewBuilder().Equal("id", gym).Predicate(), "name")
	if err != nil {
		return "", fmt.Errorf("walls: gym name: %w", err)
	}
	record, ok, err := storage.Decode[Gym](raw)
	if err != nil || !ok {
		return "", err
	}
	return record.Name, nil
}

// WallName resolves a section's display name within a gym. An unknown section
// yields an empty string, not an error.
func (s *Service) WallName(ctx context.Context, gym, section string) (string, error) {
	raw, err := s.db.Collection(storage.WallsFor(gym)).
		FindOne(ctx, query.NewBuilder().Equal("image", section).Predicate(), "name")
	if err != nil {
		return "", fmt.Errorf("walls: wall name: %w", err)
	}
	record, ok, err := storage.Decode[Section](raw)
	if err != nil || !ok {
		return "", err
	}
	return record.Name, nil
}

// Sections lists a gym's wall sections, optionally only those in the active
// wall configuration.
func (s *Service) Sections(ctx context.Context, gym string, latestOnly bool) ([]Section, error) {
	builder := query.NewBuilder()
	if latestOnly {
		builder.Equal("latest", true)
	}
	raws, err := s.db.Collection(storage.WallsFor(gym)).Find(ctx, builder.Predicate())
	if err != nil {
		return nil, fmt.Errorf("walls: list sections: %w", err)
	}
	return storage.DecodeAll[Section](raws)
}

// ActiveScope resolves the wall set to scope a traversal by. With latestOnly
// false the scope is unconstrained. With latestOnly true it holds the section
// identifiers of the active configuration; a gym without one yields an empty
// section set, which downstream must treat as "nothing matches".
func (s *Service) ActiveScope(ctx context.Context, gym string, latestOnly bool) (Scope, error) {
	if !latestOnly {
		return Scope{Unconstrained: true}, nil
	}
	sections, err := s.Sections(ctx, gym, true)
	if err != nil {
		return Scope{}, err
	}
	identifiers := make([]string, 0, len(sections))
	for _, section := range sections {
		identifiers = append(identifiers, section.Image)
	}
	return Scope{Sections: identifiers}, nil
}

// RadiusByWall maps "gym/section" keys to the circle-draw radius used when
// rendering hold markers, across every gym.
func (s *Service) RadiusByWall(ctx context.Context) (map[string]float64, error) {
	gyms, err := s.Gyms(ctx)
	if err != nil {
		return nil, err
	}
	radii := make(map[string]float64)
	for _, gym := range gyms {
		sections, err := s.Sections(ctx, gym.Code, false)
		if err != nil {
			return nil, err
		}
		for _, section := range sections {
			radii[gym.Code+"/"+section.Image] = section.Radius
		}
	}
	return radii, nil
}

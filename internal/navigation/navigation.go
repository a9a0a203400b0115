// Package navigation computes next/previous steps through ordered, filtered
// views of a gym's boulder collection and through a user's hydrated problem
// list. Traversals are stateless: every call recomputes the full view, so
// there is no cursor to invalidate between requests.
package navigation

import (
	"errors"

	"go.uber.org/zap"

	"github.com/boulderhub/boulderhub/internal/boulders"
	"github.com/boulderhub/boulderhub/internal/storage"
	"github.com/boulderhub/boulderhub/internal/ticklist"
	"github.com/boulderhub/boulderhub/internal/walls"
)

// Direction selects which neighbor a traversal resolves.
type Direction int

const (
	Next Direction = iota
	Previous
)

func (d Direction) step() int {
	if d == Previous {
		return -1
	}
	return 1
}

// StatusFilter narrows a view by completion status.
type StatusFilter string

const (
	ShowAll  StatusFilter = ""
	ShowDone StatusFilter = "done"
	ShowToDo StatusFilter = "to_do"
)

// ParseStatusFilter maps the request-boundary value onto the enumeration.
// Unrecognized values mean "no status filtering".
func ParseStatusFilter(value string) StatusFilter {
	switch StatusFilter(value) {
	case ShowDone:
		return ShowDone
	case ShowToDo:
		return ShowToDo
	default:
		return ShowAll
	}
}

var (
	// ErrNotInScope reports that the cursor identity is not part of the
	// currently scoped and filtered collection view, e.g. stale client state
	// after the wall set changed.
	ErrNotInScope = errors.New("navigation: boulder not in active scope")

	errMissingDatabase = errors.New("navigation: database handle is required")
	errMissingWalls    = errors.New("navigation: wall service is required")
	errMissingBoulders = errors.New("navigation: boulder service is required")
	errMissingTicklist = errors.New("navigation: ticklist service is required")
)

// ServiceConfig describes the traversal engine's collaborators.
type ServiceConfig struct {
	Database storage.Database
	Walls    *walls.Service
	Boulders *boulders.Service
	Ticklist *ticklist.Service
	Logger   *zap.Logger
}

// Service hosts both traversal engines.
type Service struct {
	db       storage.Database
	walls    *walls.Service
	boulders *boulders.Service
	ticklist *ticklist.Service
	logger   *zap.Logger
}

// NewService validates the configuration and constructs the engine.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Walls == nil {
		return nil, errMissingWalls
	}
	if cfg.Boulders == nil {
		return nil, errMissingBoulders
	}
	if cfg.Ticklist == nil {
		return nil, errMissingTicklist
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       cfg.Database,
		walls:    cfg.Walls,
		boulders: cfg.Boulders,
		ticklist: cfg.Ticklist,
		logger:   logger,
	}, nil
}

// clampStep moves index one step in the given direction, staying put at
// either edge of a sequence of the given length. No wraparound and no empty
// result at the boundary.
func clampStep(index, length int, direction Direction) int {
	next := index + direction.step()
	if next < 0 || next >= length {
		return index
	}
	return next
}

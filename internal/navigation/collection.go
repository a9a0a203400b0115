package navigation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/boulderhub/boulderhub/internal/boulders"
	"github.com/boulderhub/boulderhub/internal/query"
	"github.com/boulderhub/boulderhub/internal/storage"
	"github.com/boulderhub/boulderhub/internal/ticklist"
)

// NeighborRequest is the cursor for one collection traversal step.
type NeighborRequest struct {
	Direction Direction
	BoulderID string
	Gym       string
	// UserID enables the to-do-only exclusion; empty means no user context.
	UserID string
	// LatestWallSet scopes the view to the gym's active wall configuration.
	LatestWallSet bool
	SortBy        boulders.SortKey
	Ascending     bool
	Show          StatusFilter
}

// Neighbor resolves the boulder adjacent to the cursor within the scoped,
// sorted collection view. At either edge the current boulder is returned
// unchanged. A cursor identity outside the computed view is ErrNotInScope.
func (s *Service) Neighbor(ctx context.Context, req NeighborRequest) (boulders.Boulder, error) {
	builder := query.NewBuilder()
	if req.LatestWallSet {
		scope, err := s.walls.ActiveScope(ctx, req.Gym, true)
		if err != nil {
			return boulders.Boulder{}, err
		}
		// an empty active set scopes to nothing, it must not relax the filter
		builder.MemberOf("section", scope.Sections)
	}

	raws, err := s.db.Collection(storage.BouldersFor(req.Gym)).Find(ctx, builder.Predicate(),
		storage.SortField{Key: req.SortBy.Field(), Ascending: req.Ascending},
		storage.SortField{Key: "time", Ascending: false})
	if err != nil {
		return boulders.Boulder{}, fmt.Errorf("navigation: fetch collection view: %w", err)
	}
	view, err := storage.DecodeAll[boulders.Boulder](raws)
	if err != nil {
		return boulders.Boulder{}, err
	}

	if req.Show == ShowToDo && req.UserID != "" {
		view, err = s.withoutDone(ctx, view, req.UserID)
		if err != nil {
			return boulders.Boulder{}, err
		}
	}

	index := -1
	for i, boulder := range view {
		if boulder.ID.Hex() == req.BoulderID {
			index = i
			break
		}
	}
	if index < 0 {
		s.logger.Debug("cursor identity outside scoped view",
			zap.String("gym", req.Gym), zap.String("boulder_id", req.BoulderID))
		return boulders.Boulder{}, fmt.Errorf("%w: %s", ErrNotInScope, req.BoulderID)
	}

	return view[clampStep(index, len(view), req.Direction)], nil
}

// withoutDone drops every boulder the user has already completed, per the
// ticklist's completion flags.
func (s *Service) withoutDone(ctx context.Context, view []boulders.Boulder, userID string) ([]boulders.Boulder, error) {
	entries, err := s.ticklist.List(ctx, userID, ticklist.Field)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDone {
			done[entry.Iden] = true
		}
	}
	if len(done) == 0 {
		return view, nil
	}

	remaining := view[:0]
	for _, boulder := range view {
		if !done[boulder.ID.Hex()] {
			remaining = append(remaining, boulder)
		}
	}
	return remaining, nil
}

package navigation

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/boulderhub/boulderhub/internal/boulders"
	"github.com/boulderhub/boulderhub/internal/walls"
)

// ListNeighborRequest is the cursor for one traversal step through a user's
// hydrated problem list.
type ListNeighborRequest struct {
	Direction Direction
	BoulderID string
	ListID    string
	UserID    string
	// LatestWallSet gates the per-candidate wall-activity check during the walk.
	LatestWallSet bool
	SortBy        boulders.SortKey
	Ascending     bool
	Show          StatusFilter
}

// listItem is one hydrated list element. The per-user fields ride alongside
// the full record for the duration of the traversal and are never stored.
type listItem struct {
	boulder boulders.Boulder
	gym     string
	isDone  bool
	ordinal int
	created time.Time
}

// ListNeighbor resolves the neighbor of the cursor within the user's problem
// list. Entries are hydrated into full records, status-filtered, sorted, and
// then walked outward from the cursor; candidates whose wall section has left
// their own gym's active configuration are skipped during the walk rather
// than filtered up front, because activity is per-gym and the list spans gyms.
//
// A cursor identity absent from the filtered list is not an error: the walk
// degenerates to "nothing found". When the walk exhausts the list, the zero
// boulder is returned together with the last examined gym.
func (s *Service) ListNeighbor(ctx context.Context, req ListNeighborRequest) (boulders.Boulder, string, error) {
	entries, err := s.ticklist.List(ctx, req.UserID, req.ListID)
	if err != nil {
		return boulders.Boulder{}, "", err
	}

	items := make([]listItem, 0, len(entries))
	for _, entry := range entries {
		boulder, found, err := s.boulders.ByID(ctx, entry.Gym, entry.Iden)
		if err != nil {
			if errors.Is(err, boulders.ErrInvalidID) {
				s.logger.Warn("skipping list entry with malformed identity",
					zap.String("user_id", req.UserID), zap.String("iden", entry.Iden))
				continue
			}
			return boulders.Boulder{}, "", err
		}
		if !found {
			// the boulder was deleted from its gym after being listed
			continue
		}
		if req.Show == ShowDone && !entry.IsDone {
			continue
		}
		if req.Show == ShowToDo && entry.IsDone {
			continue
		}
		items = append(items, listItem{
			boulder: boulder,
			gym:     entry.Gym,
			isDone:  entry.IsDone,
			ordinal: boulder.Difficulty.Ordinal(),
			created: boulder.CreatedAt(),
		})
	}

	sortItems(items, req.SortBy, req.Ascending)

	index := -1
	for i, item := range items {
		if item.boulder.ID.Hex() == req.BoulderID {
			index = i
			break
		}
	}
	if index < 0 {
		return boulders.Boulder{}, "", nil
	}

	scopes := map[string]walls.Scope{}
	lastExaminedGym := ""
	for i := index + req.Direction.step(); i >= 0 && i < len(items); i += req.Direction.step() {
		candidate := items[i]
		lastExaminedGym = candidate.gym

		scope, cached := scopes[candidate.gym]
		if !cached {
			scope, err = s.walls.ActiveScope(ctx, candidate.gym, req.LatestWallSet)
			if err != nil {
				return boulders.Boulder{}, "", err
			}
			scopes[candidate.gym] = scope
		}
		if scope.Contains(candidate.boulder.Section) {
			return candidate.boulder, candidate.gym, nil
		}
	}
	return boulders.Boulder{}, lastExaminedGym, nil
}

// sortItems orders the hydrated list by the sort key with the parsed creation
// time as tie-break. The tie-break follows the primary direction here, unlike
// the collection traversal's fixed-descending one.
func sortItems(items []listItem, key boulders.SortKey, ascending bool) {
	sort.SliceStable(items, func(i, j int) bool {
		ordered := compareItems(items[i], items[j], key)
		if ascending {
			return ordered < 0
		}
		return ordered > 0
	})
}

func compareItems(a, b listItem, key boulders.SortKey) int {
	if primary := comparePrimary(a, b, key); primary != 0 {
		return primary
	}
	switch {
	case a.created.Before(b.created):
		return -1
	case a.created.After(b.created):
		return 1
	default:
		return 0
	}
}

func comparePrimary(a, b listItem, key boulders.SortKey) int {
	switch key {
	case boulders.SortByDifficulty:
		return compareInts(a.ordinal, b.ordinal)
	case boulders.SortBySection:
		return strings.Compare(a.boulder.Section, b.boulder.Section)
	case boulders.SortByRating:
		switch {
		case a.boulder.Rating < b.boulder.Rating:
			return -1
		case a.boulder.Rating > b.boulder.Rating:
			return 1
		default:
			return 0
		}
	case boulders.SortByRepetitions:
		return compareInts(a.boulder.Repetitions, b.boulder.Repetitions)
	default:
		// creation order: identity generation embeds the insertion timestamp
		return strings.Compare(a.boulder.ID.Hex(), b.boulder.ID.Hex())
	}
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

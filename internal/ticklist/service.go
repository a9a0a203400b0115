package ticklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/boulderhub/boulderhub/internal/query"
	"github.com/boulderhub/boulderhub/internal/storage"
)

// Field is the user-document field the ticklist lives under.
const Field = "ticklist"

var errMissingDatabase = errors.New("ticklist: database handle is required")

// ServiceConfig describes the mutator's dependencies.
type ServiceConfig struct {
	Database storage.Database
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service mutates a user's ticklist. Every mutation is a read-modify-write of
// the whole list with no compare-and-swap: when two calls for the same user
// race, the last writer wins and the earlier write is lost. Accepted
// weak-consistency behavior, the list is per-user and edits are rare.
type Service struct {
	db     storage.Database
	clock  func() time.Time
	logger *zap.Logger
}

// NewService validates the configuration and constructs the mutator.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// List reads the named problem list from the user document. A missing user or
// missing list yields an empty slice.
func (s *Service) List(ctx context.Context, userID, listID string) ([]Entry, error) {
	raw, err := s.db.Collection(storage.UsersCollection).
		FindOne(ctx, query.NewBuilder().Equal("id", userID).Predicate(), listID)
	if err != nil {
		return nil, fmt.Errorf("ticklist: read user list: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	value := raw.Lookup(listID)
	if value.Type == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := value.Unmarshal(&entries); err != nil {
		return nil, fmt.Errorf("ticklist: decode %s: %w", listID, err)
	}
	return entries, nil
}

// Add puts a boulder on the user's ticklist, or marks an already-listed one as
// done. Semantics:
//   - entry absent: append it; when markAsDone and the entry arrives with the
//     completion flag set, today's date becomes its first climb date.
//   - entry present, markAsDone and flag set: flip completion on and append
//     today to the climb history.
//   - entry present otherwise: no-op, re-adding is idempotent.
//
// The updated list is returned. A missing user yields an empty list and no
// write.
func (s *Service) Add(ctx context.Context, entry Entry, userID string, markAsDone bool) ([]Entry, error) {
	entries, found, err := s.loadTicklist(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		s.logger.Warn("ticklist add for unknown user", zap.String("user_id", userID))
		return []Entry{}, nil
	}

	index := indexOf(entries, entry.Iden)
	switch {
	case index < 0:
		if markAsDone && entry.IsDone {
			entry.DateClimbed = ClimbDates{}.Append(s.clock())
		}
		entries = append(entries, entry)
	case markAsDone && entry.IsDone:
		entries[index].IsDone = true
		entries[index].DateClimbed = entries[index].DateClimbed.Append(s.clock())
	default:
		return entries, nil
	}

	if err := s.persist(ctx, userID, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Remove deletes the entry with the given boulder identity from the user's
// ticklist and returns the filtered list. A missing user yields an empty list
// without error.
func (s *Service) Remove(ctx context.Context, boulderIden, userID string) ([]Entry, error) {
	entries, found, err := s.loadTicklist(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return []Entry{}, nil
	}

	filtered := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Iden != boulderIden {
			filtered = append(filtered, entry)
		}
	}
	if err := s.persist(ctx, userID, filtered); err != nil {
		return nil, err
	}
	return filtered, nil
}

func (s *Service) loadTicklist(ctx context.Context, userID string) ([]Entry, bool, error) {
	raw, err := s.db.Collection(storage.UsersCollection).
		FindOne(ctx, query.NewBuilder().Equal("id", userID).Predicate(), Field)
	if err != nil {
		return nil, false, fmt.Errorf("ticklist: load user: %w", err)
	}
	if raw == nil {
		return nil, false, nil
	}
	var entries []Entry
	if value := raw.Lookup(Field); value.Type != 0 {
		if err := value.Unmarshal(&entries); err != nil {
			return nil, false, fmt.Errorf("ticklist: decode ticklist: %w", err)
		}
	}
	return entries, true, nil
}

// persist writes the whole ticklist field back in one replace. Not an
// element-level update: the list is small and the whole-field write keeps the
// string-to-list history migration visible in storage immediately.
func (s *Service) persist(ctx context.Context, userID string, entries []Entry) error {
	_, err := s.db.Collection(storage.UsersCollection).UpdateOne(ctx,
		query.NewBuilder().Equal("id", userID).Predicate(),
		bson.M{"$set": bson.M{Field: entries}})
	if err != nil {
		return fmt.Errorf("ticklist: persist: %w", err)
	}
	return nil
}

func indexOf(entries []Entry, iden string) int {
	for index, entry := range entries {
		if entry.Iden == iden {
			return index
		}
	}
	return -1
}

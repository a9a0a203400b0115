package users

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/boulderhub/boulderhub/internal/query"
	"github.com/boulderhub/boulderhub/internal/storage"
)

var (
	errMissingDatabase = errors.New("users: database handle is required")

	// ErrInvalidAccount indicates an account record missing its required fields.
	ErrInvalidAccount = errors.New("users: name and email are required")
	// ErrDuplicateName indicates a signup collided with a taken username.
	ErrDuplicateName = errors.New("users: username already taken")
	// ErrDuplicateEmail indicates a signup collided with a registered email.
	ErrDuplicateEmail = errors.New("users: email already registered")
)

// ServiceConfig describes the account service dependencies.
type ServiceConfig struct {
	Database storage.Database
	IDs      IDProvider
	Logger   *zap.Logger
}

// Service manages account records and preferences.
type Service struct {
	db     storage.Database
	ids    IDProvider
	logger *zap.Logger
}

// NewService validates the configuration and constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	ids := cfg.IDs
	if ids == nil {
		ids = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, ids: ids, logger: logger}, nil
}

// ByID fetches an account by its canonical identifier. Absence is reported
// through the boolean.
func (s *Service) ByID(ctx context.Context, userID string) (User, bool, error) {
	return s.one(ctx, query.NewBuilder().Equal("id", userID).Predicate())
}

// ByEmail fetches an account by registered email.
func (s *Service) ByEmail(ctx context.Context, email string) (User, bool, error) {
	return s.one(ctx, query.NewBuilder().Equal("email", normalize(email)).Predicate())
}

// ByName fetches an account by username.
func (s *Service) ByName(ctx context.Context, name string) (User, bool, error) {
	return s.one(ctx, query.NewBuilder().Equal("name", normalize(name)).Predicate())
}

// Save stores an account record. A record without an identifier is a signup:
// username and email uniqueness are enforced and a fresh identifier is
// assigned. A record with an identifier has its account fields replaced; the
// ticklist living on the same document is untouched because only the modeled
// fields are written.
func (s *Service) Save(ctx context.Context, user User) (User, error) {
	user.Name = normalize(user.Name)
	user.Email = normalize(user.Email)
	if user.Name == "" || user.Email == "" {
		return User{}, ErrInvalidAccount
	}

	if user.ID == "" {
		if _, taken, err := s.ByName(ctx, user.Name); err != nil {
			return User{}, err
		} else if taken {
			return User{}, fmt.Errorf("%w: %q", ErrDuplicateName, user.Name)
		}
		if _, taken, err := s.ByEmail(ctx, user.Email); err != nil {
			return User{}, err
		} else if taken {
			return User{}, fmt.Errorf("%w: %q", ErrDuplicateEmail, user.Email)
		}
		id, err := s.ids.NewID()
		if err != nil {
			return User{}, fmt.Errorf("users: issue id: %w", err)
		}
		user.ID = id
		if _, err := s.db.Collection(storage.UsersCollection).InsertOne(ctx, user); err != nil {
			return User{}, fmt.Errorf("users: insert: %w", err)
		}
		return user, nil
	}

	matched, err := s.db.Collection(storage.UsersCollection).UpdateOne(ctx,
		query.NewBuilder().Equal("id", user.ID).Predicate(),
		bson.M{"$set": bson.M{"name": user.Name, "email": user.Email, "password": user.Password}})
	if err != nil {
		return User{}, fmt.Errorf("users: update: %w", err)
	}
	if matched == 0 {
		s.logger.Warn("account update matched no user", zap.String("user_id", user.ID))
	}
	return user, nil
}

// GetPreferences reads the stored preferences for a user.
func (s *Service) GetPreferences(ctx context.Context, userID string) (Preferences, bool, error) {
	raw, err := s.db.Collection(storage.PreferencesCollection).
		FindOne(ctx, query.NewBuilder().Equal("user_id", userID).Predicate())
	if err != nil {
		return Preferences{}, false, fmt.Errorf("users: read preferences: %w", err)
	}
	return storage.Decode[Preferences](raw)
}

// SavePreferences replaces the stored preferences for a user, creating the
// record on first save.
func (s *Service) SavePreferences(ctx context.Context, preferences Preferences) error {
	matched, err := s.db.Collection(storage.PreferencesCollection).UpdateOne(ctx,
		query.NewBuilder().Equal("user_id", preferences.UserID).Predicate(),
		bson.M{"$set": preferences})
	if err != nil {
		return fmt.Errorf("users: save preferences: %w", err)
	}
	if matched == 0 {
		if _, err := s.db.Collection(storage.PreferencesCollection).InsertOne(ctx, preferences); err != nil {
			return fmt.Errorf("users: create preferences: %w", err)
		}
	}
	return nil
}

func (s *Service) one(ctx context.Context, filter bson.M) (User, bool, error) {
	raw, err := s.db.Collection(storage.UsersCollection).FindOne(ctx, filter)
	if err != nil {
		return User{}, false, fmt.Errorf("users: find: %w", err)
	}
	return storage.Decode[User](raw)
}

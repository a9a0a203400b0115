package ticklist

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/boulderhub/boulderhub/internal/storage"
)

func newTestService(t *testing.T, db *storage.MemoryDatabase) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Date(2023, 6, 15, 18, 30, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func seedUser(t *testing.T, db *storage.MemoryDatabase, userID string, ticklist bson.A) {
	t.Helper()
	doc := bson.M{"id": userID, "name": "tester", "email": userID + "@example.com"}
	if ticklist != nil {
		doc[Field] = ticklist
	}
	if _, err := db.Collection(storage.UsersCollection).InsertOne(context.Background(), doc); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func TestAddAppendsNewEntry(t *testing.T) {
	db := storage.NewMemoryDatabase()
	service := newTestService(t, db)
	seedUser(t, db, "user-1", bson.A{})

	entries, err := service.Add(context.Background(), Entry{Iden: "b-1", Gym: "sancu"}, "user-1", false)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Iden != "b-1" {
		t.Fatalf("unexpected ticklist: %#v", entries)
	}
	if entries[0].IsDone {
		t.Fatalf("entry should not be marked done")
	}
	if len(entries[0].DateClimbed) != 0 {
		t.Fatalf("unmarked entry must not get a climb date")
	}
}

func TestAddMarkedDoneStampsToday(t *testing.T) {
	db := storage.NewMemoryDatabase()
	service := newTestService(t, db)
	seedUser(t, db, "user-1", bson.A{})

	entries, err := service.Add(context.Background(), Entry{Iden: "b-1", Gym: "sancu", IsDone: true}, "user-1", true)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("unexpected ticklist length %d", len(entries))
	}
	if got := entries[0].DateClimbed; len(got) != 1 || got[0] != "2023-06-15" {
		t.Fatalf("expected today's date as sole history entry, got %v", got)
	}
}

func TestAddIsIdempotentOnReAdd(t *testing.T) {
	db := storage.NewMemoryDatabase()
	service := newTestService(t, db)
	seedUser(t, db, "user-1", bson.A{
		bson.M{"iden": "b-1", "gym": "sancu", "is_done": false},
		bson.M{"iden": "b-2", "gym": "sancu", "is_done": true},
	})

	entries, err := service.Add(context.Background(), Entry{Iden: "b-1", Gym: "sancu"}, "user-1", false)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("re-add must not grow the list, got %d entries", len(entries))
	}
	if entries[0].Iden != "b-1" || entries[1].Iden != "b-2" {
		t.Fatalf("re-add must not reorder the list: %#v", entries)
	}

	// the stored list is unchanged too
	stored, err := service.List(context.Background(), "user-1", Field)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(stored) != 2 || stored[0].IsDone || !stored[1].IsDone {
		t.Fatalf("stored ticklist changed: %#v", stored)
	}
}

func TestMarkDoneMigratesLegacyStringHistory(t *testing.T) {
	db := storage.NewMemoryDatabase()
	service := newTestService(t, db)
	// oldest stored shape: date_climbed is a bare string
	seedUser(t, db, "user-1", bson.A{
		bson.M{"iden": "b-1", "gym": "sancu", "is_done": true, "date_climbed": "2023-01-01"},
	})

	entries, err := service.Add(context.Background(), Entry{Iden: "b-1", Gym: "sancu", IsDone: true}, "user-1", true)
	if err != nil {
		t.Fatalf("mark done failed: %v", err)
	}
	got := entries[0].DateClimbed
	if len(got) != 2 || got[0] != "2023-01-01" || got[1] != "2023-06-15" {
		t.Fatalf("expected migrated two-element history, got %v", got)
	}
}

func TestMarkDoneKeepsSameDayDuplicates(t *testing.T) {
	db := storage.NewMemoryDatabase()
	service := newTestService(t, db)
	seedUser(t, db, "user-1", bson.A{
		bson.M{"iden": "b-1", "gym": "sancu", "is_done": true, "date_climbed": bson.A{"2023-06-15"}},
	})

	entries, err := service.Add(context.Background(), Entry{Iden: "b-1", Gym: "sancu", IsDone: true}, "user-1", true)
	if err != nil {
		t.Fatalf("mark done failed: %v", err)
	}
	got := entries[0].DateClimbed
	if len(got) != 2 || got[0] != got[1] {
		t.Fatalf("repeat climbs on one day must both be recorded, got %v", got)
	}
}

func TestRemoveFiltersByIdentity(t *testing.T) {
	db := storage.NewMemoryDatabase()
	service := newTestService(t, db)
	seedUser(t, db, "user-1", bson.A{
		bson.M{"iden": "b-1", "gym": "sancu", "is_done": false},
		bson.M{"iden": "b-2", "gym": "beta", "is_done": true},
	})

	entries, err := service.Remove(context.Background(), "b-1", "user-1")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Iden != "b-2" {
		t.Fatalf("unexpected ticklist after remove: %#v", entries)
	}
}

func TestRemoveForMissingUserYieldsEmptyList(t *testing.T) {
	db := storage.NewMemoryDatabase()
	service := newTestService(t, db)

	entries, err := service.Remove(context.Background(), "b-1", "ghost")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty list for missing user, got %#v", entries)
	}
}

func TestListForMissingUserOrList(t *testing.T) {
	db := storage.NewMemoryDatabase()
	service := newTestService(t, db)
	seedUser(t, db, "user-1", nil)

	entries, err := service.List(context.Background(), "ghost", Field)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("missing user must yield empty list")
	}

	entries, err = service.List(context.Background(), "user-1", Field)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("missing list field must yield empty list")
	}
}

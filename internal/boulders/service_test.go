package boulders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boulderhub/boulderhub/internal/storage"
	"github.com/boulderhub/boulderhub/internal/walls"
)

func newTestService(t *testing.T) (*Service, *storage.MemoryDatabase) {
	t.Helper()
	db := storage.NewMemoryDatabase()
	wallService, err := walls.NewService(walls.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create wall service: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Walls:    wallService,
		Clock: func() time.Time {
			return time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func TestCreateAssignsIdentityAndTimestamp(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	id, err := service.Create(ctx, "sancu", Boulder{Name: "Crimp Ladder", Section: "s1", Difficulty: GradeBlue})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if id.IsZero() {
		t.Fatalf("expected generated identity")
	}

	boulder, found, err := service.ByID(ctx, "sancu", id.Hex())
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !found {
		t.Fatalf("created boulder not found")
	}
	if boulder.Time == "" {
		t.Fatalf("expected stamped creation time")
	}
	if boulder.CreatedAt().IsZero() {
		t.Fatalf("stamped creation time must parse, got %q", boulder.Time)
	}
}

func TestCreateRejectsDuplicateNameWithinGym(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	if _, err := service.Create(ctx, "sancu", Boulder{Name: "Crimp Ladder", Section: "s1"}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := service.Create(ctx, "sancu", Boulder{Name: "Crimp Ladder", Section: "s2"}); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
	// the same name in another gym is fine
	if _, err := service.Create(ctx, "beta", Boulder{Name: "Crimp Ladder", Section: "main"}); err != nil {
		t.Fatalf("cross-gym create failed: %v", err)
	}
}

func TestByNameAbsenceIsNotAnError(t *testing.T) {
	service, _ := newTestService(t)

	_, found, err := service.ByName(context.Background(), "sancu", "nothing here")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found {
		t.Fatalf("expected absence")
	}
}

func TestFilteredToleranceRange(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()

	coll := db.Collection(storage.BouldersFor("sancu"))
	for _, doc := range []Boulder{
		{Name: "near low", Section: "s1", Difficulty: Grade(0)},
		{Name: "match", Section: "s1", Difficulty: Grade(3)},
		{Name: "near high", Section: "s1", Difficulty: Grade(2)},
	} {
		if _, err := coll.InsertOne(ctx, doc); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	items, err := service.Filtered(ctx, "sancu", false, map[string]string{"difficulty": "3"})
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if len(items.Items) != 1 || items.Items[0].Name != "match" {
		t.Fatalf("expected single tolerance-range match, got %#v", items.Items)
	}
}

func TestFilteredEmptyActiveWallSetMatchesNothing(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()

	if _, err := db.Collection(storage.BouldersFor("sancu")).InsertOne(ctx, Boulder{Name: "orphan", Section: "s1"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	// gym has no wall configuration at all

	items, err := service.Filtered(ctx, "sancu", true, nil)
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if len(items.Items) != 0 {
		t.Fatalf("empty wall set must scope to nothing, got %#v", items.Items)
	}
}

func TestFilteredContainsCondition(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()

	coll := db.Collection(storage.BouldersFor("sancu"))
	for _, doc := range []Boulder{
		{Name: "Roof Traverse", Section: "s1"},
		{Name: "Slab Dance", Section: "s1"},
	} {
		if _, err := coll.InsertOne(ctx, doc); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	items, err := service.Filtered(ctx, "sancu", false, map[string]string{"name": "traverse"})
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if len(items.Items) != 1 || items.Items[0].Name != "Roof Traverse" {
		t.Fatalf("expected case-insensitive substring match, got %#v", items.Items)
	}
}

func TestRandomFromEmptyGym(t *testing.T) {
	service, _ := newTestService(t)

	_, found, err := service.Random(context.Background(), "sancu")
	if err != nil {
		t.Fatalf("sample failed: %v", err)
	}
	if found {
		t.Fatalf("expected no boulder from empty gym")
	}
}

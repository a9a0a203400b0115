package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/boulderhub/boulderhub/internal/auth"
	"github.com/boulderhub/boulderhub/internal/boulders"
	"github.com/boulderhub/boulderhub/internal/navigation"
	"github.com/boulderhub/boulderhub/internal/storage"
	"github.com/boulderhub/boulderhub/internal/ticklist"
	"github.com/boulderhub/boulderhub/internal/users"
	"github.com/boulderhub/boulderhub/internal/walls"
)

func newTestHandler(t *testing.T, db *storage.MemoryDatabase) http.Handler {
	t.Helper()
	clock := func() time.Time {
		return time.Date(2023, 6, 15, 18, 30, 0, 0, time.UTC)
	}
	wallService, err := walls.NewService(walls.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create wall service: %v", err)
	}
	boulderService, err := boulders.NewService(boulders.ServiceConfig{Database: db, Walls: wallService, Clock: clock})
	if err != nil {
		t.Fatalf("failed to create boulder service: %v", err)
	}
	ticklistService, err := ticklist.NewService(ticklist.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to create ticklist service: %v", err)
	}
	navigationService, err := navigation.NewService(navigation.ServiceConfig{
		Database: db,
		Walls:    wallService,
		Boulders: boulderService,
		Ticklist: ticklistService,
	})
	if err != nil {
		t.Fatalf("failed to create navigation service: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create user service: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "boulderhub-auth",
		Audience:      "boulderhub-api",
		TokenTTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create token issuer: %v", err)
	}
	handler, err := NewHTTPHandler(Dependencies{
		TokenManager: issuer,
		Walls:        wallService,
		Boulders:     boulderService,
		Ticklist:     ticklistService,
		Navigation:   navigationService,
		Users:        userService,
	})
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}
	return handler
}

func doJSON(t *testing.T, handler http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, target, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	decoded := map[string]any{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return decoded
}

func TestTicklistRequiresBearerToken(t *testing.T) {
	handler := newTestHandler(t, storage.NewMemoryDatabase())

	recorder := doJSON(t, handler, http.MethodGet, "/api/v1/user/ticklist", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestSignupValidatesRequiredFields(t *testing.T) {
	handler := newTestHandler(t, storage.NewMemoryDatabase())

	recorder := doJSON(t, handler, http.MethodPost, "/api/v1/user/signup", "", map[string]string{})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	fieldErrors, ok := decodeBody(t, recorder)["errors"].(map[string]any)
	if !ok {
		t.Fatalf("expected per-field errors, got %q", recorder.Body.String())
	}
	for _, field := range []string{"email", "password", "username"} {
		if _, present := fieldErrors[field]; !present {
			t.Fatalf("expected error for %q, got %#v", field, fieldErrors)
		}
	}
}

func TestSignupAuthAndTicklistFlow(t *testing.T) {
	handler := newTestHandler(t, storage.NewMemoryDatabase())

	recorder := doJSON(t, handler, http.MethodPost, "/api/v1/user/signup", "", map[string]string{
		"username": "alice", "password": "hunter2", "email": "alice@example.com",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("signup failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodPost, "/api/v1/user/auth", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", recorder.Code)
	}

	recorder = doJSON(t, handler, http.MethodPost, "/api/v1/user/auth", "", map[string]string{
		"username": "alice", "password": "hunter2",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("auth failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	token, _ := decodeBody(t, recorder)["token"].(string)
	if token == "" {
		t.Fatalf("expected a token in %q", recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodPost, "/api/v1/user/ticklist?mark_done=true", token, map[string]any{
		"iden": "64b000000000000000000001", "gym": "sancu", "is_done": true,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("ticklist add failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodGet, "/api/v1/user/ticklist", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("ticklist read failed with %d", recorder.Code)
	}
	entries, _ := decodeBody(t, recorder)["ticklist"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one ticklist entry, got %q", recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodDelete, "/api/v1/user/ticklist/64b000000000000000000001", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("ticklist remove failed with %d", recorder.Code)
	}
	entries, _ = decodeBody(t, recorder)["ticklist"].([]any)
	if len(entries) != 0 {
		t.Fatalf("expected empty ticklist, got %q", recorder.Body.String())
	}
}

func TestBoulderCreateAndLookup(t *testing.T) {
	handler := newTestHandler(t, storage.NewMemoryDatabase())

	recorder := doJSON(t, handler, http.MethodPost, "/api/v1/gyms/sancu/boulders/create", "", map[string]any{
		"name": "problem-1", "section": "A1", "creator": "alice", "difficulty": "blue",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodPost, "/api/v1/gyms/sancu/boulders/create", "", map[string]any{
		"name": "problem-1", "section": "A1", "creator": "bob", "difficulty": "red",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected duplicate name rejection, got %d", recorder.Code)
	}

	recorder = doJSON(t, handler, http.MethodGet, "/api/v1/gyms/sancu/boulders/name/problem-1", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("lookup failed with %d", recorder.Code)
	}
	if decodeBody(t, recorder)["difficulty"] != "blue" {
		t.Fatalf("expected color vocabulary on the wire, got %q", recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodGet, "/api/v1/gyms/sancu/boulders/name/ghost", "", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown name, got %d", recorder.Code)
	}
}

func TestCircuitCreateAndListing(t *testing.T) {
	handler := newTestHandler(t, storage.NewMemoryDatabase())

	recorder := doJSON(t, handler, http.MethodPost, "/api/v1/gyms/sancu/circuits/create", "", map[string]any{
		"name": "endurance-loop", "section": "A1", "creator": "alice", "difficulty": "yellow",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("circuit create failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodGet, "/api/v1/gyms/sancu/circuits", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("circuit list failed with %d", recorder.Code)
	}
	items, _ := decodeBody(t, recorder)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one circuit, got %q", recorder.Body.String())
	}

	// circuits do not leak into the boulder catalog
	recorder = doJSON(t, handler, http.MethodGet, "/api/v1/gyms/sancu/boulders", "", nil)
	items, _ = decodeBody(t, recorder)["items"].([]any)
	if len(items) != 0 {
		t.Fatalf("expected empty boulder list, got %q", recorder.Body.String())
	}
}

func TestBoulderUpdateReplacesFields(t *testing.T) {
	handler := newTestHandler(t, storage.NewMemoryDatabase())

	recorder := doJSON(t, handler, http.MethodPost, "/api/v1/gyms/sancu/boulders/create", "", map[string]any{
		"name": "problem-1", "section": "A1", "creator": "alice", "difficulty": "blue",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create failed with %d", recorder.Code)
	}
	id, _ := decodeBody(t, recorder)["_id"].(string)

	recorder = doJSON(t, handler, http.MethodPut, "/api/v1/gyms/sancu/boulders/id/"+id, "", map[string]any{
		"name": "problem-1", "section": "A1", "creator": "alice", "difficulty": "red", "notes": "sit start",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("update failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodGet, "/api/v1/gyms/sancu/boulders/id/"+id, "", nil)
	body := decodeBody(t, recorder)
	if body["difficulty"] != "red" || body["notes"] != "sit start" {
		t.Fatalf("unexpected updated boulder: %q", recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodPut, "/api/v1/gyms/sancu/boulders/id/not-an-id", "", map[string]any{
		"name": "problem-1",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", recorder.Code)
	}
}

func TestNeighborEndpointWalksTheCollection(t *testing.T) {
	db := storage.NewMemoryDatabase()
	handler := newTestHandler(t, db)

	seed := func(name string, difficulty int, when string) string {
		doc := bson.M{"name": name, "section": "A1", "difficulty": difficulty, "time": when}
		id, err := db.Collection(storage.BouldersFor("sancu")).InsertOne(context.Background(), doc)
		if err != nil {
			t.Fatalf("failed to seed boulder: %v", err)
		}
		return id.Hex()
	}
	first := seed("easy", 0, "2023-01-01T10:00:00.000000")
	seed("medium", 1, "2023-01-02T10:00:00.000000")

	recorder := doJSON(t, handler, http.MethodGet,
		"/api/v1/gyms/sancu/boulders/id/"+first+"/next?sort_by=difficulty&ascending=true", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("neighbor failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	if decodeBody(t, recorder)["name"] != "medium" {
		t.Fatalf("expected medium as next, got %q", recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodGet,
		"/api/v1/gyms/sancu/boulders/id/000000000000000000000099/next", "", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for out-of-scope cursor, got %d", recorder.Code)
	}

	recorder = doJSON(t, handler, http.MethodGet,
		"/api/v1/gyms/sancu/boulders/id/"+first+"/next?sort_by=bogus", "", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort key, got %d", recorder.Code)
	}
}

func TestPreferencesRoundTripOverHTTP(t *testing.T) {
	handler := newTestHandler(t, storage.NewMemoryDatabase())

	recorder := doJSON(t, handler, http.MethodPost, "/api/v1/user/signup", "", map[string]string{
		"username": "alice", "password": "hunter2", "email": "alice@example.com",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("signup failed with %d", recorder.Code)
	}
	recorder = doJSON(t, handler, http.MethodPost, "/api/v1/user/auth", "", map[string]string{
		"username": "alice", "password": "hunter2",
	})
	token, _ := decodeBody(t, recorder)["token"].(string)

	recorder = doJSON(t, handler, http.MethodPut, "/api/v1/user/preferences", token, map[string]any{
		"default_gym": "sancu", "latest_walls": true,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("preferences save failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodGet, "/api/v1/user/preferences", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("preferences read failed with %d", recorder.Code)
	}
	if decodeBody(t, recorder)["default_gym"] != "sancu" {
		t.Fatalf("unexpected preferences: %q", recorder.Body.String())
	}
}

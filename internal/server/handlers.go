package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/boulderhub/boulderhub/internal/boulders"
	"github.com/boulderhub/boulderhub/internal/navigation"
	"github.com/boulderhub/boulderhub/internal/ticklist"
	"github.com/boulderhub/boulderhub/internal/users"
)

func (h *httpHandler) handleGymList(c *gin.Context) {
	gyms, err := h.walls.Gyms(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to list gyms", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gyms": gyms})
}

func (h *httpHandler) handleGymName(c *gin.Context) {
	name, err := h.walls.GymName(c.Request.Context(), c.Param("gym"))
	if err != nil {
		h.fail(c, "failed to resolve gym name", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

func (h *httpHandler) handleWallList(c *gin.Context) {
	sections, err := h.walls.Sections(c.Request.Context(), c.Param("gym"), c.Query("latest") == "true")
	if err != nil {
		h.fail(c, "failed to list walls", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"walls": sections})
}

func (h *httpHandler) handleWallName(c *gin.Context) {
	name, err := h.walls.WallName(c.Request.Context(), c.Param("gym"), c.Param("section"))
	if err != nil {
		h.fail(c, "failed to resolve wall name", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

func (h *httpHandler) handleWallRadii(c *gin.Context) {
	radii, err := h.walls.RadiusByWall(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to collect wall radii", err)
		return
	}
	c.JSON(http.StatusOK, radii)
}

func (h *httpHandler) handleBoulderList(c *gin.Context) {
	items, err := h.boulders.List(c.Request.Context(), c.Param("gym"))
	if err != nil {
		h.fail(c, "failed to list boulders", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// reserved query keys that are traversal parameters, not filter conditions
var reservedQueryKeys = map[string]bool{
	"latest": true, "sort_by": true, "ascending": true, "show": true,
}

func (h *httpHandler) handleBoulderFiltered(c *gin.Context) {
	conditions := map[string]string{}
	for key, values := range c.Request.URL.Query() {
		if reservedQueryKeys[key] || len(values) == 0 {
			continue
		}
		conditions[key] = values[0]
	}
	items, err := h.boulders.Filtered(c.Request.Context(), c.Param("gym"), c.Query("latest") == "true", conditions)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_filter"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *httpHandler) handleBoulderRandom(c *gin.Context) {
	boulder, found, err := h.boulders.Random(c.Request.Context(), c.Param("gym"))
	if err != nil {
		h.fail(c, "failed to sample boulder", err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, boulder)
}

func (h *httpHandler) handleBoulderByName(c *gin.Context) {
	boulder, found, err := h.boulders.ByName(c.Request.Context(), c.Param("gym"), c.Param("name"))
	if err != nil {
		h.fail(c, "failed to fetch boulder", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, boulder)
}

func (h *httpHandler) handleBoulderByID(c *gin.Context) {
	boulder, found, err := h.boulders.ByID(c.Request.Context(), c.Param("gym"), c.Param("id"))
	if err != nil {
		if errors.Is(err, boulders.ErrInvalidID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
			return
		}
		h.fail(c, "failed to fetch boulder", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, boulder)
}

func (h *httpHandler) handleBoulderCreate(c *gin.Context) {
	var boulder boulders.Boulder
	if err := c.ShouldBindJSON(&boulder); err != nil || strings.TrimSpace(boulder.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	id, err := h.boulders.Create(c.Request.Context(), c.Param("gym"), boulder)
	if err != nil {
		if errors.Is(err, boulders.ErrDuplicateName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name_taken"})
			return
		}
		h.fail(c, "failed to create boulder", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"_id": id.Hex()})
}

func (h *httpHandler) handleBoulderUpdate(c *gin.Context) {
	var boulder boulders.Boulder
	if err := c.ShouldBindJSON(&boulder); err != nil || strings.TrimSpace(boulder.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.boulders.Update(c.Request.Context(), c.Param("gym"), c.Param("id"), boulder); err != nil {
		if errors.Is(err, boulders.ErrInvalidID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
			return
		}
		h.fail(c, "failed to update boulder", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"_id": c.Param("id")})
}

func (h *httpHandler) handleCircuitList(c *gin.Context) {
	items, err := h.boulders.Circuits(c.Request.Context(), c.Param("gym"))
	if err != nil {
		h.fail(c, "failed to list circuits", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *httpHandler) handleCircuitFiltered(c *gin.Context) {
	items, err := h.boulders.FilteredCircuits(c.Request.Context(), c.Param("gym"), c.Query("latest") == "true")
	if err != nil {
		h.fail(c, "failed to list circuits", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *httpHandler) handleCircuitByName(c *gin.Context) {
	circuit, found, err := h.boulders.CircuitByName(c.Request.Context(), c.Param("gym"), c.Param("name"))
	if err != nil {
		h.fail(c, "failed to fetch circuit", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, circuit)
}

func (h *httpHandler) handleCircuitByID(c *gin.Context) {
	circuit, found, err := h.boulders.CircuitByID(c.Request.Context(), c.Param("gym"), c.Param("id"))
	if err != nil {
		if errors.Is(err, boulders.ErrInvalidID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
			return
		}
		h.fail(c, "failed to fetch circuit", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, circuit)
}

func (h *httpHandler) handleCircuitCreate(c *gin.Context) {
	var circuit boulders.Boulder
	if err := c.ShouldBindJSON(&circuit); err != nil || strings.TrimSpace(circuit.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	id, err := h.boulders.CreateCircuit(c.Request.Context(), c.Param("gym"), circuit)
	if err != nil {
		if errors.Is(err, boulders.ErrDuplicateName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name_taken"})
			return
		}
		h.fail(c, "failed to create circuit", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"_id": id.Hex()})
}

func (h *httpHandler) handleRouteList(c *gin.Context) {
	items, err := h.boulders.Routes(c.Request.Context(), c.Param("gym"))
	if err != nil {
		h.fail(c, "failed to list routes", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *httpHandler) handleRouteCreate(c *gin.Context) {
	var route boulders.Boulder
	if err := c.ShouldBindJSON(&route); err != nil || strings.TrimSpace(route.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	id, err := h.boulders.CreateRoute(c.Request.Context(), c.Param("gym"), route)
	if err != nil {
		h.fail(c, "failed to create route", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"_id": id.Hex()})
}

// neighborHandler serves one traversal direction over a gym's collection.
func (h *httpHandler) neighborHandler(direction navigation.Direction) gin.HandlerFunc {
	return func(c *gin.Context) {
		sortKey, ascending, ok := h.traversalOrder(c)
		if !ok {
			return
		}
		boulder, err := h.navigation.Neighbor(c.Request.Context(), navigation.NeighborRequest{
			Direction:     direction,
			BoulderID:     c.Param("id"),
			Gym:           c.Param("gym"),
			UserID:        c.GetString(userIDContextKey),
			LatestWallSet: c.Query("latest") == "true",
			SortBy:        sortKey,
			Ascending:     ascending,
			Show:          navigation.ParseStatusFilter(c.Query("show")),
		})
		if err != nil {
			if errors.Is(err, navigation.ErrNotInScope) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not_in_scope"})
				return
			}
			h.fail(c, "failed to resolve neighbor", err)
			return
		}
		c.JSON(http.StatusOK, boulder)
	}
}

// listNeighborHandler serves one traversal direction over the user's ticklist.
func (h *httpHandler) listNeighborHandler(direction navigation.Direction) gin.HandlerFunc {
	return func(c *gin.Context) {
		sortKey, ascending, ok := h.traversalOrder(c)
		if !ok {
			return
		}
		boulder, gym, err := h.navigation.ListNeighbor(c.Request.Context(), navigation.ListNeighborRequest{
			Direction:     direction,
			BoulderID:     c.Query("id"),
			ListID:        ticklist.Field,
			UserID:        c.GetString(userIDContextKey),
			LatestWallSet: c.Query("latest") == "true",
			SortBy:        sortKey,
			Ascending:     ascending,
			Show:          navigation.ParseStatusFilter(c.Query("show")),
		})
		if err != nil {
			h.fail(c, "failed to resolve list neighbor", err)
			return
		}
		if boulder.ID.IsZero() {
			c.JSON(http.StatusOK, gin.H{"gym": gym})
			return
		}
		c.JSON(http.StatusOK, gin.H{"boulder": boulder, "gym": gym})
	}
}

func (h *httpHandler) traversalOrder(c *gin.Context) (boulders.SortKey, bool, bool) {
	sortKey, err := boulders.ParseSortKey(c.DefaultQuery("sort_by", string(boulders.SortByCreation)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_sort_key"})
		return "", false, false
	}
	return sortKey, c.DefaultQuery("ascending", "true") == "true", true
}

type signupPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

func (h *httpHandler) handleSignup(c *gin.Context) {
	var request signupPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	fieldErrors := gin.H{}
	if strings.TrimSpace(request.Email) == "" {
		fieldErrors["email"] = "required"
	}
	if strings.TrimSpace(request.Password) == "" {
		fieldErrors["password"] = "required"
	}
	if strings.TrimSpace(request.Username) == "" {
		fieldErrors["username"] = "required"
	}
	if len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
		return
	}

	saved, err := h.users.Save(c.Request.Context(), users.User{
		Name:     request.Username,
		Email:    request.Email,
		Password: request.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, users.ErrDuplicateName):
			c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"username": "taken"}})
		case errors.Is(err, users.ErrDuplicateEmail):
			c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"email": "taken"}})
		default:
			h.fail(c, "failed to create user", err)
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": saved.ID, "username": saved.Name})
}

type authPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *httpHandler) handleAuth(c *gin.Context) {
	var request authPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Username == "" || request.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	account, found, err := h.users.ByName(c.Request.Context(), request.Username)
	if err != nil {
		h.fail(c, "failed to load user", err)
		return
	}
	if !found || account.Password != request.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	token, expiresIn, err := h.tokens.IssueToken(account.ID)
	if err != nil {
		h.fail(c, "failed to issue token", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": expiresIn, "token_type": "Bearer"})
}

func (h *httpHandler) handleTicklist(c *gin.Context) {
	entries, err := h.ticklist.List(c.Request.Context(), c.GetString(userIDContextKey), ticklist.Field)
	if err != nil {
		h.fail(c, "failed to read ticklist", err)
		return
	}
	if entries == nil {
		entries = []ticklist.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"ticklist": entries})
}

func (h *httpHandler) handleTicklistAdd(c *gin.Context) {
	var entry ticklist.Entry
	if err := c.ShouldBindJSON(&entry); err != nil || entry.Iden == "" || entry.Gym == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	entries, err := h.ticklist.Add(c.Request.Context(), entry,
		c.GetString(userIDContextKey), c.Query("mark_done") == "true")
	if err != nil {
		h.fail(c, "failed to update ticklist", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticklist": entries})
}

func (h *httpHandler) handleTicklistRemove(c *gin.Context) {
	entries, err := h.ticklist.Remove(c.Request.Context(), c.Param("iden"), c.GetString(userIDContextKey))
	if err != nil {
		h.fail(c, "failed to update ticklist", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticklist": entries})
}

func (h *httpHandler) handlePreferencesGet(c *gin.Context) {
	preferences, found, err := h.users.GetPreferences(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.fail(c, "failed to read preferences", err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, preferences)
}

func (h *httpHandler) handlePreferencesSave(c *gin.Context) {
	var preferences users.Preferences
	if err := c.ShouldBindJSON(&preferences); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	preferences.UserID = c.GetString(userIDContextKey)
	if err := h.users.SavePreferences(c.Request.Context(), preferences); err != nil {
		h.fail(c, "failed to save preferences", err)
		return
	}
	c.JSON(http.StatusOK, preferences)
}

func (h *httpHandler) fail(c *gin.Context, message string, err error) {
	h.logger.Error(message, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

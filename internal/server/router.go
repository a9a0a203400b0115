// Package server exposes the catalog, navigation and ticklist operations over
// HTTP.
package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/boulderhub/boulderhub/internal/boulders"
	"github.com/boulderhub/boulderhub/internal/navigation"
	"github.com/boulderhub/boulderhub/internal/ticklist"
	"github.com/boulderhub/boulderhub/internal/users"
	"github.com/boulderhub/boulderhub/internal/walls"
)

const userIDContextKey = "boulderhub_user_id"

var (
	errMissingTokenManager = errors.New("token manager dependency required")
	errMissingWalls        = errors.New("wall service dependency required")
	errMissingBoulders     = errors.New("boulder service dependency required")
	errMissingTicklist     = errors.New("ticklist service dependency required")
	errMissingNavigation   = errors.New("navigation service dependency required")
	errMissingUsers        = errors.New("user service dependency required")
	errInvalidAuth         = errors.New("authorization header missing or invalid")
)

// BackendTokenManager mints and validates the bearer tokens used by
// user-scoped endpoints.
type BackendTokenManager interface {
	IssueToken(userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies lists the collaborators the HTTP layer delegates to.
type Dependencies struct {
	TokenManager BackendTokenManager
	Walls        *walls.Service
	Boulders     *boulders.Service
	Ticklist     *ticklist.Service
	Navigation   *navigation.Service
	Users        *users.Service
	Logger       *zap.Logger
}

// NewHTTPHandler wires the API routes under /api/v1.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Walls == nil {
		return nil, errMissingWalls
	}
	if deps.Boulders == nil {
		return nil, errMissingBoulders
	}
	if deps.Ticklist == nil {
		return nil, errMissingTicklist
	}
	if deps.Navigation == nil {
		return nil, errMissingNavigation
	}
	if deps.Users == nil {
		return nil, errMissingUsers
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:     deps.TokenManager,
		walls:      deps.Walls,
		boulders:   deps.Boulders,
		ticklist:   deps.Ticklist,
		navigation: deps.Navigation,
		users:      deps.Users,
		logger:     logger,
	}

	api := router.Group("/api/v1")

	api.GET("/gyms", handler.handleGymList)
	api.GET("/gyms/:gym/name", handler.handleGymName)
	api.GET("/gyms/:gym/walls", handler.handleWallList)
	api.GET("/gyms/:gym/walls/:section/name", handler.handleWallName)
	api.GET("/walls/radius", handler.handleWallRadii)

	api.GET("/gyms/:gym/boulders", handler.handleBoulderList)
	api.GET("/gyms/:gym/boulders/filtered", handler.handleBoulderFiltered)
	api.GET("/gyms/:gym/boulders/random", handler.handleBoulderRandom)
	api.GET("/gyms/:gym/boulders/name/:name", handler.handleBoulderByName)
	api.GET("/gyms/:gym/boulders/id/:id", handler.handleBoulderByID)
	api.POST("/gyms/:gym/boulders/create", handler.handleBoulderCreate)
	api.PUT("/gyms/:gym/boulders/id/:id", handler.handleBoulderUpdate)

	api.GET("/gyms/:gym/circuits", handler.handleCircuitList)
	api.GET("/gyms/:gym/circuits/filtered", handler.handleCircuitFiltered)
	api.GET("/gyms/:gym/circuits/name/:name", handler.handleCircuitByName)
	api.GET("/gyms/:gym/circuits/id/:id", handler.handleCircuitByID)
	api.POST("/gyms/:gym/circuits/create", handler.handleCircuitCreate)

	api.GET("/gyms/:gym/routes", handler.handleRouteList)
	api.POST("/gyms/:gym/routes/create", handler.handleRouteCreate)

	// neighbor lookups work anonymously; a bearer token enables the to-do
	// status filter
	navigable := api.Group("/")
	navigable.Use(handler.identifyUser)
	navigable.GET("/gyms/:gym/boulders/id/:id/next", handler.neighborHandler(navigation.Next))
	navigable.GET("/gyms/:gym/boulders/id/:id/previous", handler.neighborHandler(navigation.Previous))

	api.POST("/user/signup", handler.handleSignup)
	api.POST("/user/auth", handler.handleAuth)

	protected := api.Group("/user")
	protected.Use(handler.authorizeRequest)
	protected.GET("/ticklist", handler.handleTicklist)
	protected.POST("/ticklist", handler.handleTicklistAdd)
	protected.DELETE("/ticklist/:iden", handler.handleTicklistRemove)
	protected.GET("/ticklist/next", handler.listNeighborHandler(navigation.Next))
	protected.GET("/ticklist/previous", handler.listNeighborHandler(navigation.Previous))
	protected.GET("/preferences", handler.handlePreferencesGet)
	protected.PUT("/preferences", handler.handlePreferencesSave)

	return router, nil
}

type httpHandler struct {
	tokens     BackendTokenManager
	walls      *walls.Service
	boulders   *boulders.Service
	ticklist   *ticklist.Service
	navigation *navigation.Service
	users      *users.Service
	logger     *zap.Logger
}

// authorizeRequest rejects requests without a valid bearer token.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuth.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuth.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

// identifyUser resolves the user from a bearer token when one is supplied but
// lets anonymous requests through.
func (h *httpHandler) identifyUser(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if subject, err := h.tokens.ValidateToken(token); err == nil {
			c.Set(userIDContextKey, subject)
		}
	}
	c.Next()
}

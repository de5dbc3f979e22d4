// Package handlers implements the HTTP surface. Handlers are a thin
// translation layer: parse input, call the core operation, map its structured
// result to a transport status. No business rules live here.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"koinonia.app/platform/internal/api/middleware"
	"koinonia.app/platform/internal/domain"
	"koinonia.app/platform/internal/events"
	"koinonia.app/platform/internal/membership"
	"koinonia.app/platform/internal/notification"
	apperrors "koinonia.app/platform/internal/pkg/errors"
	"koinonia.app/platform/internal/repository"
)

// Server implements all API handlers.
type Server struct {
	pool        *pgxpool.Pool
	jwtCfg      middleware.JWTConfig
	memberships *membership.Service
	events      *events.Manager
	store       *notification.Store
	prefs       *notification.PreferenceService
	users       *repository.UserRepo
}

// ServerDeps holds all dependencies for creating a Server. Manual DI, no
// Wire/Dig.
type ServerDeps struct {
	Pool        *pgxpool.Pool
	JWTCfg      middleware.JWTConfig
	Memberships *membership.Service
	Events      *events.Manager
	Store       *notification.Store
	Prefs       *notification.PreferenceService
	Users       *repository.UserRepo
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		pool:        deps.Pool,
		jwtCfg:      deps.JWTCfg,
		memberships: deps.Memberships,
		events:      deps.Events,
		store:       deps.Store,
		prefs:       deps.Prefs,
		users:       deps.Users,
	}
}

// actorID extracts the authenticated user id from the request context. Zero
// means anonymous.
func actorID(c *gin.Context) uint64 {
	return middleware.GetUserID(c.Request.Context())
}

// requestID extracts the trace id injected by the RequestID middleware.
func requestID(c *gin.Context) string {
	return middleware.GetRequestID(c.Request.Context())
}

// pathID parses a numeric path parameter.
func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		_ = c.Error(apperrors.ErrInvalidInputf(name))
		c.Abort()
		return 0, false
	}
	return id, true
}

// httpStatus maps a non-success result status to a transport status.
func httpStatus(s domain.Status) int {
	switch s {
	case domain.StatusInvalidInput:
		return http.StatusBadRequest
	case domain.StatusNotAuthorized:
		return http.StatusForbidden
	case domain.StatusNotFound, domain.StatusCommunityNotFound,
		domain.StatusEventNotFound, domain.StatusUserNotFound,
		domain.StatusNotAMember:
		return http.StatusNotFound
	case domain.StatusInvalidState, domain.StatusAlreadyMember,
		domain.StatusAlreadyPending, domain.StatusCannotRemoveOwner,
		domain.StatusEventCanceled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respond writes the result envelope with its mapped transport status. The
// envelope is serialized unchanged; clients branch on its Status, not on the
// HTTP code. Successful results — including DUPLICATE and a resolve query's
// NOT_A_MEMBER — are plain 200s.
func respond[T any](c *gin.Context, res domain.Result[T]) {
	if res.Success {
		c.JSON(http.StatusOK, res)
		return
	}
	c.JSON(httpStatus(res.Status), res)
}

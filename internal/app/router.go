package app

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"koinonia.app/platform/internal/api/handlers"
	"koinonia.app/platform/internal/api/middleware"
)

// Public routes that do NOT require JWT authentication.
var publicPrefixes = []string{
	"/api/v1/auth/",
	"/api/v1/health/",
}

// optionalAuthGETPrefixes are read routes open to anonymous callers; a valid
// token still binds the viewer so private-event access checks can apply.
var optionalAuthGETPrefixes = []string{
	"/api/v1/events",
}

func newRouter(server *handlers.Server, signingKey []byte) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	router.Use(cors.Default())
	router.Use(jwtSkipPublic(signingKey))

	v1 := router.Group("/api/v1")

	v1.POST("/auth/register", server.Register)
	v1.POST("/auth/login", server.Login)

	v1.GET("/health/live", server.GetLiveness)
	v1.GET("/health/ready", server.GetReadiness)

	v1.GET("/communities/:id/membership", server.GetMembership)
	v1.POST("/communities/:id/join", server.JoinCommunity)
	v1.POST("/communities/:id/leave", server.LeaveCommunity)
	v1.GET("/communities/:id/requests", server.ListPendingMembers)
	v1.POST("/communities/:id/members/:userId/approve", server.ApproveMember)
	v1.POST("/communities/:id/members/:userId/deny", server.DenyMember)
	v1.DELETE("/communities/:id/members/:userId", server.RemoveMember)

	v1.POST("/events", server.CreateEvent)
	v1.GET("/events", server.ListEvents)
	v1.GET("/events/:id", server.GetEvent)
	v1.PATCH("/events/:id", server.UpdateEvent)
	v1.POST("/events/:id/cancel", server.CancelEvent)

	v1.GET("/notifications", server.ListNotifications)
	v1.GET("/notifications/unread-count", server.UnreadCount)
	v1.POST("/notifications/read-all", server.MarkAllNotificationsRead)
	v1.POST("/notifications/:id/read", server.MarkNotificationRead)
	v1.DELETE("/notifications/:id", server.DeleteNotification)
	v1.POST("/notifications/push-tokens", server.RegisterPushToken)

	v1.GET("/preferences/notifications", server.GetPreferences)
	v1.PUT("/preferences/notifications", server.UpdatePreferences)

	return router
}

// jwtSkipPublic returns middleware that applies JWT auth on non-public
// routes. Event reads take the optional variant: anonymous passes through,
// but a presented token must still be valid.
func jwtSkipPublic(signingKey []byte) gin.HandlerFunc {
	jwtMw := middleware.JWTAuth(signingKey)
	optionalMw := middleware.OptionalJWTAuth(signingKey)
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}
		if c.Request.Method == http.MethodGet {
			for _, prefix := range optionalAuthGETPrefixes {
				if strings.HasPrefix(path, prefix) {
					optionalMw(c)
					return
				}
			}
		}
		jwtMw(c)
	}
}

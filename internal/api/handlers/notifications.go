package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"koinonia.app/platform/internal/domain"
	apperrors "koinonia.app/platform/internal/pkg/errors"
)

// ListNotifications handles GET /notifications with optional unread_only,
// cursor, and limit query parameters.
func (s *Server) ListNotifications(c *gin.Context) {
	var cursor uint64
	if v := c.Query("cursor"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badInput(c, "invalid cursor")
			return
		}
		cursor = parsed
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			badInput(c, "invalid limit")
			return
		}
		limit = parsed
	}
	unreadOnly := c.Query("unread_only") == "true"

	respond(c, s.store.List(c.Request.Context(), requestID(c), actorID(c), limit, cursor, unreadOnly))
}

// UnreadCount handles GET /notifications/unread-count.
func (s *Server) UnreadCount(c *gin.Context) {
	respond(c, s.store.UnreadCount(c.Request.Context(), requestID(c), actorID(c)))
}

// MarkNotificationRead handles POST /notifications/:id/read.
func (s *Server) MarkNotificationRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	respond(c, s.store.MarkAsRead(c.Request.Context(), requestID(c), id, actorID(c)))
}

// MarkAllNotificationsRead handles POST /notifications/read-all.
func (s *Server) MarkAllNotificationsRead(c *gin.Context) {
	respond(c, s.store.MarkAllAsRead(c.Request.Context(), requestID(c), actorID(c)))
}

// DeleteNotification handles DELETE /notifications/:id.
func (s *Server) DeleteNotification(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	respond(c, s.store.Delete(c.Request.Context(), requestID(c), id, actorID(c)))
}

type registerPushTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// RegisterPushToken handles POST /notifications/push-tokens.
func (s *Server) RegisterPushToken(c *gin.Context) {
	var req registerPushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		badInput(c, "token is required")
		return
	}
	if req.Platform == "" {
		req.Platform = "unknown"
	}

	if err := s.users.RegisterPushToken(c.Request.Context(), actorID(c), req.Token, req.Platform); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInternalError, "failed to register push token", http.StatusInternalServerError))
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": string(domain.StatusOK)})
}

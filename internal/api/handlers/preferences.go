package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "koinonia.app/platform/internal/pkg/errors"
)

type preferencesPayload struct {
	DM        bool `json:"dm"`
	Community bool `json:"community"`
	Forum     bool `json:"forum"`
	Feed      bool `json:"feed"`
}

// GetPreferences handles GET /preferences/notifications.
func (s *Server) GetPreferences(c *gin.Context) {
	u, err := s.users.GetByID(c.Request.Context(), actorID(c))
	if err != nil {
		_ = c.Error(apperrors.NotFound(apperrors.CodeUserNotFound, "user not found"))
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, preferencesPayload{
		DM:        u.NotifyDM,
		Community: u.NotifyCommunity,
		Forum:     u.NotifyForum,
		Feed:      u.NotifyFeed,
	})
}

// UpdatePreferences handles PUT /preferences/notifications. The cached entry
// is invalidated so the dispatcher sees the change on its next read.
func (s *Server) UpdatePreferences(c *gin.Context) {
	var req preferencesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, "malformed request body")
		return
	}

	userID := actorID(c)
	if err := s.users.UpdatePreferences(c.Request.Context(), userID, req.DM, req.Community, req.Forum, req.Feed); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInternalError, "failed to update preferences", http.StatusInternalServerError))
		c.Abort()
		return
	}
	s.prefs.Invalidate(c.Request.Context(), userID)

	c.JSON(http.StatusOK, req)
}

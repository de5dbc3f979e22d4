package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"koinonia.app/platform/internal/events"
	apperrors "koinonia.app/platform/internal/pkg/errors"
)

type createEventRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	EventDate   string  `json:"event_date"` // RFC 3339
	StartTime   string  `json:"start_time"` // HH:MM
	EndTime     string  `json:"end_time"`
	Location    string  `json:"location"`
	IsVirtual   bool    `json:"is_virtual"`
	MeetingURL  string  `json:"meeting_url"`
	IsPublic    bool    `json:"is_public"`
	CommunityID *uint64 `json:"community_id"`
}

type updateEventRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	EventDate   *string `json:"event_date"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Location    *string `json:"location"`
	IsVirtual   *bool   `json:"is_virtual"`
	MeetingURL  *string `json:"meeting_url"`
	IsPublic    *bool   `json:"is_public"`
}

// badInput records a 400 AppError for the ErrorHandler middleware to render.
func badInput(c *gin.Context, msg string) {
	_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidInput, msg))
	c.Abort()
}

// CreateEvent handles POST /events.
func (s *Server) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, "malformed request body")
		return
	}
	eventDate, err := time.Parse(time.RFC3339, req.EventDate)
	if err != nil {
		badInput(c, "event_date must be RFC 3339")
		return
	}

	respond(c, s.events.CreateEvent(c.Request.Context(), requestID(c), events.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		EventDate:   eventDate,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Location:    req.Location,
		IsVirtual:   req.IsVirtual,
		MeetingURL:  req.MeetingURL,
		IsPublic:    req.IsPublic,
		CommunityID: req.CommunityID,
	}, actorID(c)))
}

// GetEvent handles GET /events/:id — access-checked read.
func (s *Server) GetEvent(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}
	respond(c, s.events.ResolveEventAccess(c.Request.Context(), requestID(c), eventID, actorID(c)))
}

// UpdateEvent handles PATCH /events/:id.
func (s *Server) UpdateEvent(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, "malformed request body")
		return
	}

	params := events.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Location:    req.Location,
		IsVirtual:   req.IsVirtual,
		MeetingURL:  req.MeetingURL,
		IsPublic:    req.IsPublic,
	}
	if req.EventDate != nil {
		d, err := time.Parse(time.RFC3339, *req.EventDate)
		if err != nil {
			badInput(c, "event_date must be RFC 3339")
			return
		}
		params.EventDate = &d
	}

	respond(c, s.events.UpdateEvent(c.Request.Context(), requestID(c), eventID, params, actorID(c)))
}

// CancelEvent handles POST /events/:id/cancel.
func (s *Server) CancelEvent(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}
	respond(c, s.events.CancelEvent(c.Request.Context(), requestID(c), eventID, actorID(c)))
}

// ListEvents handles GET /events with optional filters: community_id, public,
// from, to, status, cursor, limit.
func (s *Server) ListEvents(c *gin.Context) {
	var f events.ListFilters

	if v := c.Query("community_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badInput(c, "invalid community_id")
			return
		}
		f.CommunityID = &id
	}
	f.PublicOnly = c.Query("public") == "true"
	if v := c.Query("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badInput(c, "from must be RFC 3339")
			return
		}
		f.From = &ts
	}
	if v := c.Query("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badInput(c, "to must be RFC 3339")
			return
		}
		f.To = &ts
	}
	f.Status = c.Query("status")
	if v := c.Query("cursor"); v != "" {
		cursor, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badInput(c, "invalid cursor")
			return
		}
		f.Cursor = cursor
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			badInput(c, "invalid limit")
			return
		}
		f.Limit = limit
	}

	respond(c, s.events.ListEvents(c.Request.Context(), requestID(c), f, actorID(c)))
}

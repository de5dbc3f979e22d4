package handlers

import (
	"github.com/gin-gonic/gin"
)

// GetMembership handles GET /communities/:id/membership — the caller's own
// standing.
func (s *Server) GetMembership(c *gin.Context) {
	communityID, ok := pathID(c, "id")
	if !ok {
		return
	}
	respond(c, s.memberships.ResolveMembership(c.Request.Context(), requestID(c), communityID, actorID(c)))
}

// JoinCommunity handles POST /communities/:id/join.
func (s *Server) JoinCommunity(c *gin.Context) {
	communityID, ok := pathID(c, "id")
	if !ok {
		return
	}
	respond(c, s.memberships.RequestJoin(c.Request.Context(), requestID(c), communityID, actorID(c)))
}

// LeaveCommunity handles POST /communities/:id/leave.
func (s *Server) LeaveCommunity(c *gin.Context) {
	communityID, ok := pathID(c, "id")
	if !ok {
		return
	}
	respond(c, s.memberships.LeaveCommunity(c.Request.Context(), requestID(c), communityID, actorID(c)))
}

// ApproveMember handles POST /communities/:id/members/:userId/approve.
func (s *Server) ApproveMember(c *gin.Context) {
	communityID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	respond(c, s.memberships.ApproveRequest(c.Request.Context(), requestID(c), communityID, userID, actorID(c)))
}

// DenyMember handles POST /communities/:id/members/:userId/deny.
func (s *Server) DenyMember(c *gin.Context) {
	communityID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	respond(c, s.memberships.DenyRequest(c.Request.Context(), requestID(c), communityID, userID, actorID(c)))
}

// RemoveMember handles DELETE /communities/:id/members/:userId.
func (s *Server) RemoveMember(c *gin.Context) {
	communityID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	respond(c, s.memberships.RemoveMember(c.Request.Context(), requestID(c), communityID, userID, actorID(c)))
}

// ListPendingMembers handles GET /communities/:id/requests.
func (s *Server) ListPendingMembers(c *gin.Context) {
	communityID, ok := pathID(c, "id")
	if !ok {
		return
	}
	respond(c, s.memberships.GetPendingRequests(c.Request.Context(), requestID(c), communityID, actorID(c)))
}

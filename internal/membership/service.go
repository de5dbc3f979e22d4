// Package membership implements the community membership state machine: the
// single authority on a user's relationship to a community.
//
// Transitions: a join request creates the row PENDING (private community) or
// APPROVED (public community); PENDING→APPROVED on approve, PENDING→REJECTED
// on deny, APPROVED→REMOVED on remove or member leave. A leaving sole owner
// triggers ownership transfer, or community soft-deletion when nobody is
// left. Every state-changing operation commits its mutation before any
// notification is enqueued, and a notification failure never downgrades the
// operation's result.
package membership

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"koinonia.app/platform/internal/domain"
	"koinonia.app/platform/internal/model"
	"koinonia.app/platform/internal/notification"
	"koinonia.app/platform/internal/pkg/logger"
	"koinonia.app/platform/internal/repository"
)

// Notifier is the slice of the dispatcher the state machine needs. Side
// effects are best-effort: the service logs failures and moves on.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uint64, n notification.Note) error
	NotifyMany(ctx context.Context, userIDs []uint64, n notification.Note) error
}

// Service executes membership transitions.
type Service struct {
	communities *repository.CommunityRepo
	members     *repository.MembershipRepo
	users       *repository.UserRepo
	notifier    Notifier // optional: nil disables side-effect notifications
}

// NewService creates a membership service.
func NewService(
	communities *repository.CommunityRepo,
	members *repository.MembershipRepo,
	users *repository.UserRepo,
	notifier Notifier,
) *Service {
	return &Service{
		communities: communities,
		members:     members,
		users:       users,
		notifier:    notifier,
	}
}

// ResolveMembership returns the caller's standing in a community.
// A community that exists but holds no row for the user resolves to
// NOT_A_MEMBER — a successful query, not an error.
func (s *Service) ResolveMembership(ctx context.Context, requestID string, communityID, userID uint64) domain.Result[*model.CommunityMember] {
	if communityID == 0 || userID == 0 {
		return domain.Fail[*model.CommunityMember](domain.StatusInvalidInput, requestID, "community id and user id are required")
	}

	if res := s.requireCommunity(ctx, requestID, communityID); !res.Success {
		return domain.Result[*model.CommunityMember]{
			Status: res.Status, Success: false, Code: res.Code,
			RequestID: requestID, Diagnostics: res.Diagnostics,
		}
	}

	m, err := s.members.Find(ctx, communityID, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.StatusResult[*model.CommunityMember](domain.StatusNotAMember, true, requestID, nil, "no membership row for user")
		}
		return domain.Errorf[*model.CommunityMember](requestID, "membership lookup failed", err)
	}
	return domain.OK(requestID, m, "membership resolved").
		With("role", m.Role).
		With("membership_status", m.Status)
}

// RequestJoin asks to join a community. Public communities admit immediately;
// private ones create a PENDING request and notify the current owners. The
// first approved member of a community becomes its owner. Calling again with
// an APPROVED or PENDING row standing returns ALREADY_MEMBER /
// ALREADY_PENDING without mutation; a REJECTED or REMOVED row is reused.
func (s *Service) RequestJoin(ctx context.Context, requestID string, communityID, userID uint64) domain.Result[*model.CommunityMember] {
	if communityID == 0 || userID == 0 {
		return domain.Fail[*model.CommunityMember](domain.StatusInvalidInput, requestID, "community id and user id are required")
	}

	community, err := s.communities.GetByID(ctx, communityID)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.Fail[*model.CommunityMember](domain.StatusCommunityNotFound, requestID, "community does not exist")
		}
		return domain.Errorf[*model.CommunityMember](requestID, "community lookup failed", err)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return domain.Fail[*model.CommunityMember](domain.StatusUserNotFound, requestID, "user does not exist")
		}
		return domain.Errorf[*model.CommunityMember](requestID, "user lookup failed", err)
	}

	existing, err := s.members.Find(ctx, communityID, userID)
	if err != nil && !repository.IsNotFound(err) {
		return domain.Errorf[*model.CommunityMember](requestID, "membership lookup failed", err)
	}
	if existing != nil {
		switch existing.Status {
		case model.MembershipApproved:
			return domain.Fail[*model.CommunityMember](domain.StatusAlreadyMember, requestID, "user is already an approved member")
		case model.MembershipPending:
			return domain.Fail[*model.CommunityMember](domain.StatusAlreadyPending, requestID, "join request is already pending")
		}
	}

	status := model.MembershipPending
	if !community.IsPrivate {
		status = model.MembershipApproved
	}

	role := model.RoleMember
	if status == model.MembershipApproved {
		approved, err := s.members.CountByStatus(ctx, communityID, model.MembershipApproved)
		if err != nil {
			return domain.Errorf[*model.CommunityMember](requestID, "approved member count failed", err)
		}
		if approved == 0 {
			role = model.RoleOwner
		}
	}

	now := time.Now().UTC()
	var row *model.CommunityMember
	if existing != nil {
		// Re-request after REJECTED/REMOVED reuses the row.
		existing.Role = role
		existing.Status = status
		existing.JoinedAt = now
		existing.ActedBy = nil
		existing.ActedAt = nil
		if err := s.members.Save(ctx, existing); err != nil {
			return domain.Errorf[*model.CommunityMember](requestID, "membership update failed", err)
		}
		row = existing
	} else {
		row = &model.CommunityMember{
			CommunityID: communityID,
			UserID:      userID,
			Role:        role,
			Status:      status,
			JoinedAt:    now,
		}
		if err := s.members.Create(ctx, row); err != nil {
			return domain.Errorf[*model.CommunityMember](requestID, "membership insert failed", err)
		}
	}

	if status == model.MembershipPending {
		s.notifyOwnersOfRequest(ctx, community, userID)
	}

	logger.Info("join request processed",
		zap.String("request_id", requestID),
		zap.Uint64("community_id", communityID),
		zap.Uint64("user_id", userID),
		zap.String("status", status),
		zap.String("role", role),
	)
	return domain.OK(requestID, row, "join request processed").
		With("initial_status", status)
}

// ApproveRequest transitions a PENDING request to APPROVED. The actor must be
// an APPROVED owner or moderator. Approving a non-PENDING row yields
// INVALID_STATE, making re-invocation side-effect free.
func (s *Service) ApproveRequest(ctx context.Context, requestID string, communityID, userID, actorID uint64) domain.Result[*model.CommunityMember] {
	return s.decideRequest(ctx, requestID, communityID, userID, actorID, model.MembershipApproved)
}

// DenyRequest transitions a PENDING request to REJECTED, keeping the row for
// audit history.
func (s *Service) DenyRequest(ctx context.Context, requestID string, communityID, userID, actorID uint64) domain.Result[*model.CommunityMember] {
	return s.decideRequest(ctx, requestID, communityID, userID, actorID, model.MembershipRejected)
}

func (s *Service) decideRequest(ctx context.Context, requestID string, communityID, userID, actorID uint64, newStatus string) domain.Result[*model.CommunityMember] {
	if communityID == 0 || userID == 0 || actorID == 0 {
		return domain.Fail[*model.CommunityMember](domain.StatusInvalidInput, requestID, "community id, user id, and actor id are required")
	}
	if res := s.requireCommunity(ctx, requestID, communityID); !res.Success {
		return res
	}
	if res := s.requireRole(ctx, requestID, communityID, actorID, model.RoleOwner, model.RoleModerator); !res.Success {
		return res
	}

	target, err := s.members.Find(ctx, communityID, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.Fail[*model.CommunityMember](domain.StatusNotAMember, requestID, "no join request for user")
		}
		return domain.Errorf[*model.CommunityMember](requestID, "membership lookup failed", err)
	}
	if target.Status != model.MembershipPending {
		return domain.Fail[*model.CommunityMember](domain.StatusInvalidState, requestID, "membership is not pending").
			With("current_status", target.Status)
	}

	now := time.Now().UTC()
	target.Status = newStatus
	target.ActedBy = &actorID
	target.ActedAt = &now
	if newStatus == model.MembershipApproved {
		target.JoinedAt = now
	}
	if err := s.members.Save(ctx, target); err != nil {
		return domain.Errorf[*model.CommunityMember](requestID, "membership update failed", err)
	}

	s.notifyDecision(ctx, communityID, userID, newStatus)

	logger.Info("join request decided",
		zap.String("request_id", requestID),
		zap.Uint64("community_id", communityID),
		zap.Uint64("user_id", userID),
		zap.Uint64("actor_id", actorID),
		zap.String("status", newStatus),
	)
	return domain.OK(requestID, target, "join request decided").
		With("new_status", newStatus)
}

// LeaveCommunity removes the caller from a community. A leaving sole owner
// transfers ownership to the first approved moderator, else the first
// approved member; when no approved members remain, the community itself is
// soft-deleted and all membership rows dropped (code
// MEMBERSHIP_LEFT_COMMUNITY_DELETED).
func (s *Service) LeaveCommunity(ctx context.Context, requestID string, communityID, userID uint64) domain.Result[*model.CommunityMember] {
	if communityID == 0 || userID == 0 {
		return domain.Fail[*model.CommunityMember](domain.StatusInvalidInput, requestID, "community id and user id are required")
	}

	community, err := s.communities.GetByID(ctx, communityID)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.Fail[*model.CommunityMember](domain.StatusCommunityNotFound, requestID, "community does not exist")
		}
		return domain.Errorf[*model.CommunityMember](requestID, "community lookup failed", err)
	}

	m, err := s.members.Find(ctx, communityID, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.Fail[*model.CommunityMember](domain.StatusNotAMember, requestID, "user has no membership in community")
		}
		return domain.Errorf[*model.CommunityMember](requestID, "membership lookup failed", err)
	}
	if m.Status != model.MembershipApproved {
		return domain.Fail[*model.CommunityMember](domain.StatusInvalidState, requestID, "only approved members can leave").
			With("current_status", m.Status)
	}

	if m.Role != model.RoleOwner {
		// Regular leave keeps the row as REMOVED for audit history.
		now := time.Now().UTC()
		m.Status = model.MembershipRemoved
		m.ActedBy = &userID
		m.ActedAt = &now
		if err := s.members.Save(ctx, m); err != nil {
			return domain.Errorf[*model.CommunityMember](requestID, "membership update failed", err)
		}
		return domain.OK(requestID, m, "member left community")
	}

	// Owner leave: pick a successor before touching anything.
	successor, err := s.members.FirstApprovedExcept(ctx, communityID, model.RoleModerator, userID)
	if err != nil {
		return domain.Errorf[*model.CommunityMember](requestID, "successor lookup failed", err)
	}
	if successor == nil {
		successor, err = s.members.FirstApprovedExcept(ctx, communityID, "", userID)
		if err != nil {
			return domain.Errorf[*model.CommunityMember](requestID, "successor lookup failed", err)
		}
	}

	if successor == nil {
		// Last approved member: the community dies with the owner.
		err := s.members.Transaction(ctx, func(tx *gorm.DB) error {
			if err := repository.NewMembershipRepo(tx).DeleteByCommunity(ctx, communityID); err != nil {
				return err
			}
			return repository.NewCommunityRepo(tx).SoftDelete(ctx, communityID)
		})
		if err != nil {
			return domain.Errorf[*model.CommunityMember](requestID, "community deletion failed", err)
		}
		logger.Info("sole owner left, community deleted",
			zap.String("request_id", requestID),
			zap.Uint64("community_id", communityID),
			zap.Uint64("user_id", userID),
		)
		return domain.OKCode[*model.CommunityMember](requestID, domain.CodeMembershipLeftCommunityDeleted, nil, "last member left; community soft-deleted")
	}

	err = s.members.Transaction(ctx, func(tx *gorm.DB) error {
		txMembers := repository.NewMembershipRepo(tx)
		successor.Role = model.RoleOwner
		if err := txMembers.Save(ctx, successor); err != nil {
			return err
		}
		return txMembers.Delete(ctx, m.ID)
	})
	if err != nil {
		return domain.Errorf[*model.CommunityMember](requestID, "ownership transfer failed", err)
	}

	s.notify(ctx, successor.UserID, notification.Note{
		Title:      "You are now a community owner",
		Body:       fmt.Sprintf("Ownership of %s has been transferred to you", community.Name),
		Category:   notification.CategoryCommunity,
		SourceType: "community",
		SourceID:   communityID,
		DedupeKey:  fmt.Sprintf("ownership-transfer:%d:%d", communityID, successor.UserID),
	})

	logger.Info("owner left, ownership transferred",
		zap.String("request_id", requestID),
		zap.Uint64("community_id", communityID),
		zap.Uint64("previous_owner", userID),
		zap.Uint64("new_owner", successor.UserID),
	)
	return domain.OK(requestID, successor, "owner left; ownership transferred").
		With("new_owner_id", successor.UserID)
}

// RemoveMember expels a member. Only an APPROVED owner may remove, and owners
// can never be removed — they must leave voluntarily, which runs the transfer
// logic above.
func (s *Service) RemoveMember(ctx context.Context, requestID string, communityID, userID, actorID uint64) domain.Result[*model.CommunityMember] {
	if communityID == 0 || userID == 0 || actorID == 0 {
		return domain.Fail[*model.CommunityMember](domain.StatusInvalidInput, requestID, "community id, user id, and actor id are required")
	}
	if res := s.requireCommunity(ctx, requestID, communityID); !res.Success {
		return res
	}
	if res := s.requireRole(ctx, requestID, communityID, actorID, model.RoleOwner); !res.Success {
		return res
	}

	target, err := s.members.Find(ctx, communityID, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.Fail[*model.CommunityMember](domain.StatusNotAMember, requestID, "user has no membership in community")
		}
		return domain.Errorf[*model.CommunityMember](requestID, "membership lookup failed", err)
	}
	if target.Role == model.RoleOwner {
		return domain.Fail[*model.CommunityMember](domain.StatusCannotRemoveOwner, requestID, "owners cannot be removed; they must leave voluntarily")
	}
	if target.Status != model.MembershipApproved {
		return domain.Fail[*model.CommunityMember](domain.StatusInvalidState, requestID, "only approved members can be removed").
			With("current_status", target.Status)
	}

	now := time.Now().UTC()
	target.Status = model.MembershipRemoved
	target.ActedBy = &actorID
	target.ActedAt = &now
	if err := s.members.Save(ctx, target); err != nil {
		return domain.Errorf[*model.CommunityMember](requestID, "membership update failed", err)
	}

	s.notify(ctx, userID, notification.Note{
		Title:      "Removed from community",
		Body:       "You have been removed from a community by its owner",
		Category:   notification.CategoryCommunity,
		SourceType: "community",
		SourceID:   communityID,
		DedupeKey:  fmt.Sprintf("member-removed:%d:%d", communityID, userID),
	})

	logger.Info("member removed",
		zap.String("request_id", requestID),
		zap.Uint64("community_id", communityID),
		zap.Uint64("user_id", userID),
		zap.Uint64("actor_id", actorID),
	)
	return domain.OK(requestID, target, "member removed")
}

// GetPendingRequests lists PENDING join requests with minimal profile fields.
// Owner/moderator only.
func (s *Service) GetPendingRequests(ctx context.Context, requestID string, communityID, actorID uint64) domain.Result[[]repository.PendingRequest] {
	if communityID == 0 || actorID == 0 {
		return domain.Fail[[]repository.PendingRequest](domain.StatusInvalidInput, requestID, "community id and actor id are required")
	}
	if res := s.requireCommunity(ctx, requestID, communityID); !res.Success {
		return domain.Result[[]repository.PendingRequest]{
			Status: res.Status, Success: false, Code: res.Code,
			RequestID: requestID, Diagnostics: res.Diagnostics,
		}
	}
	if res := s.requireRole(ctx, requestID, communityID, actorID, model.RoleOwner, model.RoleModerator); !res.Success {
		return domain.Result[[]repository.PendingRequest]{
			Status: res.Status, Success: false, Code: res.Code,
			RequestID: requestID, Diagnostics: res.Diagnostics,
		}
	}

	pending, err := s.members.PendingWithUsers(ctx, communityID)
	if err != nil {
		return domain.Errorf[[]repository.PendingRequest](requestID, "pending request query failed", err)
	}
	return domain.OK(requestID, pending, fmt.Sprintf("%d pending requests", len(pending)))
}

// --- helpers ---

// requireCommunity verifies the community exists and is live.
func (s *Service) requireCommunity(ctx context.Context, requestID string, communityID uint64) domain.Result[*model.CommunityMember] {
	if _, err := s.communities.GetByID(ctx, communityID); err != nil {
		if repository.IsNotFound(err) {
			return domain.Fail[*model.CommunityMember](domain.StatusCommunityNotFound, requestID, "community does not exist")
		}
		return domain.Errorf[*model.CommunityMember](requestID, "community lookup failed", err)
	}
	return domain.OK[*model.CommunityMember](requestID, nil, "community exists")
}

// requireRole verifies the actor holds an APPROVED membership with one of the
// given roles.
func (s *Service) requireRole(ctx context.Context, requestID string, communityID, actorID uint64, roles ...string) domain.Result[*model.CommunityMember] {
	actor, err := s.members.Find(ctx, communityID, actorID)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.Fail[*model.CommunityMember](domain.StatusNotAuthorized, requestID, "actor is not a member of the community")
		}
		return domain.Errorf[*model.CommunityMember](requestID, "actor membership lookup failed", err)
	}
	if actor.Status != model.MembershipApproved {
		return domain.Fail[*model.CommunityMember](domain.StatusNotAuthorized, requestID, "actor membership is not approved")
	}
	for _, role := range roles {
		if actor.Role == role {
			return domain.OK(requestID, actor, "actor authorized")
		}
	}
	return domain.Fail[*model.CommunityMember](domain.StatusNotAuthorized, requestID, "actor lacks the required role").
		With("actor_role", actor.Role)
}

func (s *Service) notifyOwnersOfRequest(ctx context.Context, community *model.Community, userID uint64) {
	if s.notifier == nil {
		return
	}
	owners, err := s.members.ApprovedByRole(ctx, community.ID, model.RoleOwner)
	if err != nil {
		logger.Warn("owner lookup for join notification failed",
			zap.Uint64("community_id", community.ID),
			zap.Error(err),
		)
		return
	}
	if len(owners) == 0 {
		return
	}
	note := notification.Note{
		Title:      "New join request",
		Body:       fmt.Sprintf("A user has requested to join %s", community.Name),
		Category:   notification.CategoryCommunity,
		SourceType: "community_join_request",
		SourceID:   community.ID,
		DedupeKey:  fmt.Sprintf("join-request:%d:%d", community.ID, userID),
	}
	if err := s.notifier.NotifyMany(ctx, owners, note); err != nil {
		logger.Warn("join request notification failed",
			zap.Uint64("community_id", community.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) notifyDecision(ctx context.Context, communityID, userID uint64, newStatus string) {
	title := "Join request approved"
	body := "Your request to join the community was approved"
	if newStatus == model.MembershipRejected {
		title = "Join request declined"
		body = "Your request to join the community was declined"
	}
	s.notify(ctx, userID, notification.Note{
		Title:      title,
		Body:       body,
		Category:   notification.CategoryCommunity,
		SourceType: "community_join_decision",
		SourceID:   communityID,
		DedupeKey:  fmt.Sprintf("join-decision:%d:%d:%s", communityID, userID, newStatus),
	})
}

// notify is the nil-safe single-recipient best-effort send.
func (s *Service) notify(ctx context.Context, userID uint64, note notification.Note) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyUser(ctx, userID, note); err != nil {
		logger.Warn("membership notification failed",
			zap.Uint64("user_id", userID),
			zap.String("title", note.Title),
			zap.Error(err),
		)
	}
}

package services

import (
	"context"
	"fmt"

	"collective-rides/application/ports"
	"collective-rides/domain/authorization"
	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"
	"collective-rides/domain/events"
	pkgerrors "collective-rides/pkg/errors"
	"collective-rides/pkg/utils"
	"go.uber.org/zap"
)

const voluntaryDepartureReason = "Voluntary departure"

// JoinClubInput is the body of a join request
type JoinClubInput struct {
	Message string `json:"message,omitempty" validate:"max=500"`
}

// UpdateMemberRoleInput is the body of a role change
type UpdateMemberRoleInput struct {
	Role   entities.MembershipRole `json:"role" validate:"required,oneof=member admin owner"`
	Reason string                  `json:"reason,omitempty" validate:"max=500"`
}

// MemberActionInput carries the optional reason for an admin transition
type MemberActionInput struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// MembershipService implements the join/leave lifecycle and member administration
type MembershipService struct {
	clubs       ports.ClubRepository
	memberships ports.MembershipRepository
	authz       *AuthorizationService
	events      eventEmitter
	clock       utils.Clock
	logger      *zap.Logger
}

// NewMembershipService creates a new membership service
func NewMembershipService(
	clubs ports.ClubRepository,
	memberships ports.MembershipRepository,
	authz *AuthorizationService,
	publisher ports.EventPublisher,
	clock utils.Clock,
	logger *zap.Logger,
) *MembershipService {
	return &MembershipService{
		clubs:       clubs,
		memberships: memberships,
		authz:       authz,
		events:      eventEmitter{publisher: publisher, logger: logger},
		clock:       clock,
		logger:      logger,
	}
}

// JoinClub creates a pending membership for the caller. Re-joining after removal is allowed.
func (s *MembershipService) JoinClub(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, input JoinClubInput) (*entities.Membership, error) {
	if err := s.authz.RequireAuthenticated(auth); err != nil {
		return nil, err
	}

	club, err := s.clubs.GetByID(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to get club: %w", err)
	}
	if club == nil {
		return nil, pkgerrors.NewClubNotFoundError(clubID.String())
	}
	if !club.IsActive() {
		return nil, pkgerrors.NewOperationNotAllowedError(fmt.Sprintf("club is %s and not accepting members", club.Status()))
	}

	existing, err := s.memberships.Get(ctx, clubID, auth.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if existing != nil && !existing.IsRemoved() {
		return nil, pkgerrors.NewAlreadyMemberError(clubID.String(), auth.UserID)
	}

	membership, err := entities.NewMembership(entities.NewMembershipInput{
		ClubID:      clubID,
		UserID:      auth.UserID,
		Role:        entities.RoleMember,
		Status:      entities.MembershipStatusPending,
		JoinMessage: input.Message,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}

	stored, err := s.memberships.Create(ctx, membership)
	if err != nil {
		if ports.IsConflict(err) {
			return nil, pkgerrors.NewAlreadyMemberError(clubID.String(), auth.UserID)
		}
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	s.logger.Info("Membership requested",
		zap.String("clubID", clubID.String()),
		zap.String("userID", auth.UserID),
	)
	s.events.emit(ctx, events.NewMembershipRequested(stored, s.clock.Now()))
	return stored, nil
}

// LeaveClub removes the caller's active membership. Owners must transfer ownership first.
func (s *MembershipService) LeaveClub(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID) (*entities.Membership, error) {
	if err := s.authz.RequireAuthenticated(auth); err != nil {
		return nil, err
	}

	membership, err := s.activeMembership(ctx, clubID, auth.UserID)
	if err != nil {
		return nil, err
	}
	if membership.IsOwner() {
		return nil, pkgerrors.NewOperationNotAllowedError("club owner cannot leave; transfer ownership first")
	}

	removed, err := membership.Remove(auth.UserID, voluntaryDepartureReason, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, membership, removed); err != nil {
		return nil, err
	}

	s.authz.Invalidate(auth.UserID)
	s.events.emit(ctx, events.NewMembershipRemoved(removed, auth.UserID, s.clock.Now()))
	return removed, nil
}

// GetMembership returns one membership. Callers may read their own, members with
// view_members may read anyone's in the club.
func (s *MembershipService) GetMembership(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, userID string) (*entities.Membership, error) {
	if err := s.authz.RequireAuthenticated(auth); err != nil {
		return nil, err
	}
	if userID != auth.UserID {
		if err := s.authz.RequireClubCapability(ctx, auth, clubID, authorization.CapViewMembers); err != nil {
			return nil, err
		}
	}

	membership, err := s.memberships.Get(ctx, clubID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if membership == nil {
		return nil, pkgerrors.NewMembershipNotFoundError(clubID.String(), userID)
	}
	return membership, nil
}

// ListClubMembers pages through a club's members
func (s *MembershipService) ListClubMembers(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, opts ports.MemberListOptions) (ports.Page[*entities.Membership], error) {
	club, err := s.clubs.GetByID(ctx, clubID)
	if err != nil {
		return ports.Page[*entities.Membership]{}, fmt.Errorf("failed to get club: %w", err)
	}
	if club == nil {
		return ports.Page[*entities.Membership]{}, pkgerrors.NewClubNotFoundError(clubID.String())
	}
	if err := s.authz.RequireClubCapability(ctx, auth, clubID, authorization.CapViewMembers); err != nil {
		return ports.Page[*entities.Membership]{}, err
	}

	opts.Limit = ports.ClampLimit(opts.Limit)
	page, err := s.memberships.ListByClub(ctx, clubID, opts)
	if err != nil {
		return ports.Page[*entities.Membership]{}, mapListError(err, "failed to list club members")
	}
	return page, nil
}

// GetUserMemberships pages through the caller's memberships
func (s *MembershipService) GetUserMemberships(ctx context.Context, auth authorization.AuthContext, opts ports.UserMembershipListOptions) (ports.Page[*entities.Membership], error) {
	if err := s.authz.RequireAuthenticated(auth); err != nil {
		return ports.Page[*entities.Membership]{}, err
	}

	opts.Limit = ports.ClampLimit(opts.Limit)
	page, err := s.memberships.ListByUser(ctx, auth.UserID, opts)
	if err != nil {
		return ports.Page[*entities.Membership]{}, mapListError(err, "failed to list user memberships")
	}
	return page, nil
}

// UpdateMemberRole moves an active member between member and admin
func (s *MembershipService) UpdateMemberRole(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, targetUserID string, input UpdateMemberRoleInput) (*entities.Membership, error) {
	if err := s.authz.RequireAuthenticated(auth); err != nil {
		return nil, err
	}

	target, err := s.activeMembership(ctx, clubID, targetUserID)
	if err != nil {
		return nil, err
	}
	if target.IsOwner() {
		return nil, pkgerrors.NewValidationError("owner role cannot be changed; ownership transfer required")
	}

	if err := s.authz.ValidateRoleAssignment(ctx, auth, clubID, input.Role); err != nil {
		return nil, err
	}
	if err := s.requireCanManage(ctx, auth, clubID, target); err != nil {
		return nil, err
	}

	updated, err := target.UpdateRole(input.Role, auth.UserID, input.Reason, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, target, updated); err != nil {
		return nil, err
	}

	s.logger.Info("Member role updated",
		zap.String("clubID", clubID.String()),
		zap.String("userID", targetUserID),
		zap.String("oldRole", string(target.Role())),
		zap.String("newRole", string(updated.Role())),
		zap.String("actorID", auth.UserID),
	)
	s.authz.Invalidate(auth.UserID, targetUserID)
	s.events.emit(ctx, events.NewMembershipRoleChanged(updated, target.Role(), auth.UserID, s.clock.Now()))
	return updated, nil
}

// RemoveMember tombstones an active member. Owners are rejected before any privilege check.
func (s *MembershipService) RemoveMember(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, targetUserID string, input MemberActionInput) (*entities.Membership, error) {
	if err := s.authz.RequireAuthenticated(auth); err != nil {
		return nil, err
	}

	target, err := s.activeMembership(ctx, clubID, targetUserID)
	if err != nil {
		return nil, err
	}
	if target.IsOwner() {
		return nil, pkgerrors.NewCannotRemoveOwnerError(clubID.String())
	}

	if err := s.authz.RequireClubCapability(ctx, auth, clubID, authorization.CapRemoveMembers); err != nil {
		return nil, err
	}
	if err := s.requireCanManage(ctx, auth, clubID, target); err != nil {
		return nil, err
	}

	removed, err := target.Remove(auth.UserID, input.Reason, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, target, removed); err != nil {
		return nil, err
	}

	s.authz.Invalidate(targetUserID)
	s.events.emit(ctx, events.NewMembershipRemoved(removed, auth.UserID, s.clock.Now()))
	return removed, nil
}

// ApproveMembership activates a pending join request
func (s *MembershipService) ApproveMembership(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, targetUserID string, input MemberActionInput) (*entities.Membership, error) {
	return s.transition(ctx, auth, clubID, targetUserID, entities.MembershipStatusPending, entities.MembershipStatusActive, input.Reason)
}

// RejectMembership removes a pending join request
func (s *MembershipService) RejectMembership(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, targetUserID string, input MemberActionInput) (*entities.Membership, error) {
	return s.transition(ctx, auth, clubID, targetUserID, entities.MembershipStatusPending, entities.MembershipStatusRemoved, input.Reason)
}

// SuspendMember suspends an active member
func (s *MembershipService) SuspendMember(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, targetUserID string, input MemberActionInput) (*entities.Membership, error) {
	return s.transition(ctx, auth, clubID, targetUserID, entities.MembershipStatusActive, entities.MembershipStatusSuspended, input.Reason)
}

// ReinstateMember reactivates a suspended member
func (s *MembershipService) ReinstateMember(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, targetUserID string, input MemberActionInput) (*entities.Membership, error) {
	return s.transition(ctx, auth, clubID, targetUserID, entities.MembershipStatusSuspended, entities.MembershipStatusActive, input.Reason)
}

func (s *MembershipService) transition(
	ctx context.Context,
	auth authorization.AuthContext,
	clubID valueobjects.ClubID,
	targetUserID string,
	from, to entities.MembershipStatus,
	reason string,
) (*entities.Membership, error) {
	if err := s.authz.RequireAuthenticated(auth); err != nil {
		return nil, err
	}

	target, err := s.memberships.Get(ctx, clubID, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if target == nil || target.IsRemoved() {
		return nil, pkgerrors.NewMembershipNotFoundError(clubID.String(), targetUserID)
	}
	if target.Status() != from {
		return nil, pkgerrors.NewValidationErrorf("membership is %s, expected %s", target.Status(), from)
	}

	if err := s.authz.RequireClubCapability(ctx, auth, clubID, authorization.CapManageMembers); err != nil {
		return nil, err
	}
	if err := s.requireCanManage(ctx, auth, clubID, target); err != nil {
		return nil, err
	}

	next, err := target.ChangeStatus(to, auth.UserID, reason, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, target, next); err != nil {
		return nil, err
	}

	s.logger.Info("Membership status changed",
		zap.String("clubID", clubID.String()),
		zap.String("userID", targetUserID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actorID", auth.UserID),
	)
	s.authz.Invalidate(targetUserID)
	s.events.emit(ctx, membershipStatusEvent(next, auth.UserID, s.clock))
	return next, nil
}

func membershipStatusEvent(m *entities.Membership, actorID string, clock utils.Clock) events.DomainEvent {
	switch m.Status() {
	case entities.MembershipStatusActive:
		return events.NewMembershipActivated(m, actorID, clock.Now())
	case entities.MembershipStatusSuspended:
		return events.NewMembershipSuspended(m, actorID, clock.Now())
	default:
		return events.NewMembershipRemoved(m, actorID, clock.Now())
	}
}

func (s *MembershipService) activeMembership(ctx context.Context, clubID valueobjects.ClubID, userID string) (*entities.Membership, error) {
	membership, err := s.memberships.Get(ctx, clubID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if membership == nil || !membership.IsActive() {
		return nil, pkgerrors.NewMembershipNotFoundError(clubID.String(), userID)
	}
	return membership, nil
}

func (s *MembershipService) requireCanManage(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, target *entities.Membership) error {
	ok, err := s.authz.CanManageMember(ctx, auth, clubID, target.Role())
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.NewInsufficientPrivilegesError(string(authorization.CapManageMembers))
	}
	return nil
}

func (s *MembershipService) save(ctx context.Context, before, after *entities.Membership) error {
	if err := s.memberships.Update(ctx, before, after); err != nil {
		switch {
		case ports.IsNotFound(err):
			return pkgerrors.NewMembershipNotFoundError(before.ClubID().String(), before.UserID())
		case ports.IsConflict(err):
			return pkgerrors.NewConflictError("membership was modified concurrently; retry the operation")
		default:
			return fmt.Errorf("failed to update membership: %w", err)
		}
	}
	return nil
}

func mapListError(err error, message string) error {
	if ports.IsInvalidCursor(err) {
		return pkgerrors.NewValidationError(err.Error())
	}
	return fmt.Errorf("%s: %w", message, err)
}

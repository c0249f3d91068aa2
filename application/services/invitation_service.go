package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"collective-rides/application/ports"
	"collective-rides/domain/authorization"
	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"
	"collective-rides/domain/events"
	pkgerrors "collective-rides/pkg/errors"
	"collective-rides/pkg/utils"
	"go.uber.org/zap"
)

const (
	expirySweepBatchSize  = 25
	expirySweepMaxBatches = 40
)

// CreateInvitationInput is the body of an invitation request
type CreateInvitationInput struct {
	Type           entities.InvitationType `json:"type" validate:"required,oneof=email user"`
	Email          string                  `json:"email,omitempty" validate:"required_if=Type email,omitempty,email"`
	UserID         string                  `json:"userId,omitempty" validate:"required_if=Type user"`
	Role           entities.MembershipRole `json:"role,omitempty" validate:"omitempty,oneof=member admin"`
	Message        string                  `json:"message,omitempty" validate:"max=500"`
	ExpiresInDays  int                     `json:"expiresInDays,omitempty" validate:"omitempty,min=1,max=30"`
	DeliveryMethod entities.DeliveryMethod `json:"deliveryMethod,omitempty" validate:"omitempty,oneof=email in_app"`
}

// ProcessInvitationInput is the invitee's response
type ProcessInvitationInput struct {
	Action entities.InvitationAction `json:"action" validate:"required,oneof=accept decline"`
}

// InvitationService manages the invitation lifecycle
type InvitationService struct {
	clubs             ports.ClubRepository
	memberships       ports.MembershipRepository
	invitations       ports.InvitationRepository
	authz             *AuthorizationService
	events            eventEmitter
	clock             utils.Clock
	defaultExpiryDays int
	logger            *zap.Logger
}

// NewInvitationService creates a new invitation service. defaultExpiryDays outside
// [1, 30] falls back to seven days.
func NewInvitationService(
	clubs ports.ClubRepository,
	memberships ports.MembershipRepository,
	invitations ports.InvitationRepository,
	authz *AuthorizationService,
	publisher ports.EventPublisher,
	clock utils.Clock,
	defaultExpiryDays int,
	logger *zap.Logger,
) *InvitationService {
	if defaultExpiryDays <= 0 || defaultExpiryDays > entities.MaxInvitationExpiryDays {
		defaultExpiryDays = entities.DefaultInvitationExpiryDays
	}
	return &InvitationService{
		clubs:             clubs,
		memberships:       memberships,
		invitations:       invitations,
		authz:             authz,
		events:            eventEmitter{publisher: publisher, logger: logger},
		clock:             clock,
		defaultExpiryDays: defaultExpiryDays,
		logger:            logger,
	}
}

// CreateInvitation invites an email address or an existing user to the club
func (s *InvitationService) CreateInvitation(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, input CreateInvitationInput) (*entities.Invitation, error) {
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

	if err := s.authz.RequireClubCapability(ctx, auth, clubID, authorization.CapInviteMembers); err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = entities.RoleMember
	}
	if err := s.authz.ValidateRoleAssignment(ctx, auth, clubID, role); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	days := input.ExpiresInDays
	if days == 0 {
		days = s.defaultExpiryDays
	}
	expiresAt := now.AddDate(0, 0, days)

	invitation, err := entities.NewInvitation(entities.NewInvitationInput{
		Type:           input.Type,
		ClubID:         clubID,
		Email:          input.Email,
		UserID:         input.UserID,
		Role:           role,
		InvitedBy:      auth.UserID,
		Message:        input.Message,
		ExpiresAt:      &expiresAt,
		DeliveryMethod: input.DeliveryMethod,
	}, now)
	if err != nil {
		return nil, err
	}

	if invitation.Type() == entities.InvitationTypeUser {
		existing, err := s.memberships.Get(ctx, clubID, invitation.UserID())
		if err != nil {
			return nil, fmt.Errorf("failed to get membership: %w", err)
		}
		if existing != nil && !existing.IsRemoved() {
			return nil, pkgerrors.NewCannotInviteExistingMemberError(clubID.String(), invitation.UserID())
		}
	}

	pending, err := s.invitations.HasPendingInvitation(ctx, clubID, invitation.Invitee(), now)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending invitations: %w", err)
	}
	if pending {
		return nil, pkgerrors.NewUserAlreadyInvitedError(clubID.String(), invitation.Invitee())
	}

	if err := s.invitations.Create(ctx, invitation); err != nil {
		if ports.IsConflict(err) {
			return nil, pkgerrors.NewUserAlreadyInvitedError(clubID.String(), invitation.Invitee())
		}
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.logger.Info("Invitation created",
		zap.String("invitationID", invitation.ID().String()),
		zap.String("clubID", clubID.String()),
		zap.String("type", string(invitation.Type())),
		zap.String("invitedBy", auth.UserID),
	)
	s.events.emit(ctx, events.NewInvitationCreated(invitation, now))
	return invitation, nil
}

// ProcessInvitation accepts or declines an invitation addressed to the caller.
// Accepting stores the invitation and an active membership with the invited role together.
func (s *InvitationService) ProcessInvitation(ctx context.Context, auth authorization.AuthContext, invitationID valueobjects.InvitationID, input ProcessInvitationInput) (*entities.Invitation, error) {
	if err := s.authz.RequireAuthenticated(auth); err != nil {
		return nil, err
	}

	invitation, err := s.pendingInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if !isAddressedTo(invitation, auth) {
		return nil, pkgerrors.NewOperationNotAllowedError("invitation is addressed to someone else")
	}
	if invitation.Type() == entities.InvitationTypeEmail && !auth.EmailVerified {
		return nil, pkgerrors.NewOperationNotAllowedError("email address must be verified to respond to this invitation")
	}

	var existing *entities.Membership
	if input.Action == entities.InvitationActionAccept {
		existing, err = s.memberships.Get(ctx, invitation.ClubID(), auth.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get membership: %w", err)
		}
		if existing != nil && existing.Status() != entities.MembershipStatusPending && !existing.IsRemoved() {
			return nil, pkgerrors.NewAlreadyMemberError(invitation.ClubID().String(), auth.UserID)
		}
	}

	now := s.clock.Now()
	processed, err := invitation.Process(input.Action, auth.UserID, now)
	if err != nil {
		return nil, err
	}
	if processed.Status() != entities.InvitationStatusAccepted {
		if err := s.saveInvitation(ctx, invitation, processed); err != nil {
			return nil, err
		}
		s.events.emit(ctx, events.NewInvitationProcessed(processed, auth.UserID, now))
		return processed, nil
	}

	membership, err := grantedMembership(processed, existing, auth.UserID, now)
	if err != nil {
		return nil, err
	}
	if err := s.invitations.Accept(ctx, invitation, processed, membership, existing); err != nil {
		if ports.IsConflictOn(err, ports.ResourceMembership) {
			return nil, pkgerrors.NewAlreadyMemberError(invitation.ClubID().String(), auth.UserID)
		}
		return nil, invitationWriteError(err, invitation, "failed to accept invitation")
	}
	s.authz.Invalidate(auth.UserID)

	s.events.emit(ctx,
		events.NewInvitationProcessed(processed, auth.UserID, now),
		events.NewMembershipActivated(membership, processed.InvitedBy(), now),
	)
	return processed, nil
}

// grantedMembership is the active membership an accepted invitation grants. A pending join
// request is activated in place; otherwise a new membership replaces any removed one.
func grantedMembership(invitation *entities.Invitation, existing *entities.Membership, userID string, now time.Time) (*entities.Membership, error) {
	if existing != nil && existing.Status() == entities.MembershipStatusPending {
		activated, err := existing.Activate(invitation.InvitedBy(), "Invitation accepted", now)
		if err != nil {
			return nil, err
		}
		if invitation.Role() != activated.Role() {
			return activated.UpdateRole(invitation.Role(), invitation.InvitedBy(), "Invitation accepted", now)
		}
		return activated, nil
	}

	return entities.NewMembership(entities.NewMembershipInput{
		ClubID:    invitation.ClubID(),
		UserID:    userID,
		Role:      invitation.Role(),
		Status:    entities.MembershipStatusActive,
		InvitedBy: invitation.InvitedBy(),
	}, now)
}

// CancelInvitation withdraws a pending invitation. Allowed for the inviter and for
// holders of invite_members in the club.
func (s *InvitationService) CancelInvitation(ctx context.Context, auth authorization.AuthContext, invitationID valueobjects.InvitationID) (*entities.Invitation, error) {
	if err := s.authz.RequireAuthenticated(auth); err != nil {
		return nil, err
	}

	invitation, err := s.pendingInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if invitation.InvitedBy() != auth.UserID {
		if err := s.authz.RequireClubCapability(ctx, auth, invitation.ClubID(), authorization.CapInviteMembers); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	cancelled, err := invitation.Cancel(now)
	if err != nil {
		return nil, err
	}
	if err := s.saveInvitation(ctx, invitation, cancelled); err != nil {
		return nil, err
	}

	s.events.emit(ctx, events.NewInvitationProcessed(cancelled, auth.UserID, now))
	return cancelled, nil
}

// ListMyInvitations pages through invitations addressed to the caller's user id, or to
// the caller's email when byEmail is set
func (s *InvitationService) ListMyInvitations(ctx context.Context, auth authorization.AuthContext, byEmail bool, opts ports.InvitationListOptions) (ports.Page[*entities.Invitation], error) {
	if err := s.authz.RequireAuthenticated(auth); err != nil {
		return ports.Page[*entities.Invitation]{}, err
	}

	invitee := ports.Invitee{UserID: auth.UserID}
	if byEmail {
		if auth.Email == "" {
			return ports.Page[*entities.Invitation]{}, pkgerrors.NewValidationError("caller has no email address")
		}
		if !auth.EmailVerified {
			return ports.Page[*entities.Invitation]{}, pkgerrors.NewOperationNotAllowedError("email address is not verified")
		}
		invitee = ports.Invitee{Email: strings.ToLower(auth.Email)}
	}

	opts.Limit = ports.ClampLimit(opts.Limit)
	page, err := s.invitations.ListByInvitee(ctx, invitee, opts)
	if err != nil {
		return ports.Page[*entities.Invitation]{}, mapListError(err, "failed to list invitations")
	}
	return page, nil
}

// ListClubInvitations pages through a club's invitations
func (s *InvitationService) ListClubInvitations(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, opts ports.InvitationListOptions) (ports.Page[*entities.Invitation], error) {
	club, err := s.clubs.GetByID(ctx, clubID)
	if err != nil {
		return ports.Page[*entities.Invitation]{}, fmt.Errorf("failed to get club: %w", err)
	}
	if club == nil {
		return ports.Page[*entities.Invitation]{}, pkgerrors.NewClubNotFoundError(clubID.String())
	}
	if err := s.authz.RequireClubCapability(ctx, auth, clubID, authorization.CapViewInvitations); err != nil {
		return ports.Page[*entities.Invitation]{}, err
	}

	opts.Limit = ports.ClampLimit(opts.Limit)
	page, err := s.invitations.ListByClub(ctx, clubID, opts)
	if err != nil {
		return ports.Page[*entities.Invitation]{}, mapListError(err, "failed to list club invitations")
	}
	return page, nil
}

// ExpireOverdueInvitations persists the expired status of pending invitations whose
// expiry has passed and returns how many were updated
func (s *InvitationService) ExpireOverdueInvitations(ctx context.Context) (int, error) {
	expired := 0
	for batch := 0; batch < expirySweepMaxBatches; batch++ {
		now := s.clock.Now()
		overdue, err := s.invitations.ListExpiredPending(ctx, now, expirySweepBatchSize)
		if err != nil {
			return expired, fmt.Errorf("failed to list overdue invitations: %w", err)
		}

		for _, invitation := range overdue {
			next, err := invitation.Expire(now)
			if err != nil {
				s.logger.Debug("Skipping invitation during expiry sweep",
					zap.String("invitationID", invitation.ID().String()),
					zap.Error(err),
				)
				continue
			}
			if err := s.invitations.Update(ctx, invitation, next); err != nil {
				if ports.IsConflict(err) || ports.IsNotFound(err) {
					continue
				}
				return expired, fmt.Errorf("failed to expire invitation %s: %w", invitation.ID(), err)
			}
			expired++
			s.events.emit(ctx, events.NewInvitationProcessed(next, "", now))
		}

		if len(overdue) < expirySweepBatchSize {
			break
		}
	}

	if expired > 0 {
		s.logger.Info("Expired overdue invitations", zap.Int("count", expired))
	}
	return expired, nil
}

func (s *InvitationService) pendingInvitation(ctx context.Context, id valueobjects.InvitationID) (*entities.Invitation, error) {
	invitation, err := s.invitations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	if invitation == nil {
		return nil, pkgerrors.NewInvitationNotFoundError(id.String())
	}
	if invitation.IsExpired(s.clock.Now()) {
		return nil, pkgerrors.NewInvitationExpiredError(id.String())
	}
	if invitation.Status().IsTerminal() {
		return nil, pkgerrors.NewInvitationAlreadyProcessedError(id.String(), string(invitation.Status()))
	}
	return invitation, nil
}

func (s *InvitationService) saveInvitation(ctx context.Context, before, after *entities.Invitation) error {
	if err := s.invitations.Update(ctx, before, after); err != nil {
		return invitationWriteError(err, before, "failed to update invitation")
	}
	return nil
}

// invitationWriteError maps a failed guarded invitation write to its domain error
func invitationWriteError(err error, before *entities.Invitation, message string) error {
	switch {
	case ports.IsNotFound(err):
		return pkgerrors.NewInvitationNotFoundError(before.ID().String())
	case ports.IsConflict(err):
		return pkgerrors.NewInvitationAlreadyProcessedError(before.ID().String(), "unknown")
	default:
		return fmt.Errorf("%s: %w", message, err)
	}
}

func isAddressedTo(invitation *entities.Invitation, auth authorization.AuthContext) bool {
	if invitation.Type() == entities.InvitationTypeEmail {
		return auth.Email != "" && strings.EqualFold(invitation.Email(), auth.Email)
	}
	return invitation.UserID() == auth.UserID
}
